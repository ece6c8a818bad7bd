package model

import "time"

// RunStatus is the lifecycle state of a pipeline run in the history store.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// RunRecord is one row of rig run history. Inserted when a run starts and
// finalized exactly once when it reaches a terminal outcome.
type RunRecord struct {
	ID            string // UUID assigned by the controller.
	HeadSHA       string
	TriggeredBy   string // GitHub login of the event sender.
	Status        RunStatus
	Conclusion    CheckConclusion
	FailureClass  FailureClass
	MeanAmps      float64
	Measured      bool // True when MeanAmps holds a real capture value.
	ThresholdAmps float64
	TraceURL      string
	ChartURL      string
	StartedAt     time.Time
	CompletedAt   time.Time // Zero until finalized.
}

// ShortSHA returns the abbreviated commit hash used in chart labels.
func (r RunRecord) ShortSHA() string {
	if len(r.HeadSHA) <= 7 {
		return r.HeadSHA
	}
	return r.HeadSHA[:7]
}
