package model

// JobStatus is the state of an upstream build-provider job.
type JobStatus string

const (
	JobStatusRunning  JobStatus = "running"
	JobStatusSuccess  JobStatus = "success"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCanceled JobStatus = "canceled"
	JobStatusBlocked  JobStatus = "blocked"
	JobStatusOther    JobStatus = "other"
)

// ParseJobStatus maps a raw provider status string onto the known set.
// Unrecognized statuses collapse to JobStatusOther, which is treated as
// not-ready by the fetcher.
func ParseJobStatus(raw string) JobStatus {
	switch JobStatus(raw) {
	case JobStatusRunning, JobStatusSuccess, JobStatusFailed, JobStatusCanceled, JobStatusBlocked:
		return JobStatus(raw)
	default:
		return JobStatusOther
	}
}

// Negative reports whether the status is terminal-negative: the build cannot
// resolve itself, so waiting it out is pointless.
func (s JobStatus) Negative() bool {
	return s == JobStatusFailed || s == JobStatusCanceled || s == JobStatusBlocked
}

// BuildJob is one upstream build-provider job record.
type BuildJob struct {
	BuildNum    int
	VCSRevision string
	JobName     string
	Status      JobStatus
}

// Artifact is a downloadable binary produced by a build job, identified by a
// provider-relative path and resolved to a download URL.
type Artifact struct {
	Path string
	URL  string
}
