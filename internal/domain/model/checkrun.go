// Package model contains the domain types for the power-regression gate.
package model

// CheckStatus is the lifecycle state of a check run on GitHub.
type CheckStatus string

const (
	CheckStatusQueued     CheckStatus = "queued"
	CheckStatusInProgress CheckStatus = "in_progress"
	CheckStatusCompleted  CheckStatus = "completed"
)

// CheckConclusion is the terminal verdict of a completed check run.
type CheckConclusion string

const (
	ConclusionSuccess   CheckConclusion = "success"
	ConclusionFailure   CheckConclusion = "failure"
	ConclusionNeutral   CheckConclusion = "neutral"
	ConclusionCancelled CheckConclusion = "cancelled"
	ConclusionTimedOut  CheckConclusion = "timed_out"
)

// CheckOutput is the human-readable report body attached to a check run.
type CheckOutput struct {
	Title   string
	Summary string
	Text    string
}

// CheckRun represents one GitHub-visible test attempt for a commit.
// Once completed it is never re-opened; the remote side owns its lifetime.
type CheckRun struct {
	RepoFullName string
	ID           int64
	HeadSHA      string
	Status       CheckStatus
	Conclusion   CheckConclusion // Set only when Status is completed.
	Output       CheckOutput
}
