package model

// TriggerKind identifies which webhook event triggered processing.
type TriggerKind string

const (
	TriggerCheckRunCreated     TriggerKind = "check_run_created"
	TriggerCheckRunRerequested TriggerKind = "check_run_rerequested"
	TriggerCheckSuiteRequested TriggerKind = "check_suite_requested"
	TriggerPullRequestOpened   TriggerKind = "pull_request_opened"
	TriggerPullRequestSync     TriggerKind = "pull_request_synchronize"
)

// TriggerEvent is the normalized form of an inbound webhook event, carrying
// only the fields the controller acts on.
type TriggerEvent struct {
	Kind         TriggerKind
	RepoFullName string
	HeadSHA      string
	AppID        int64 // App that owns the check run; only set for check_run events.
	CheckRunID   int64 // Only set for check_run events.
	Sender       string
}
