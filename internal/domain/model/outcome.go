package model

// FailureClass identifies why a pipeline stage failed terminally. The values
// are stable identifiers used in reports and the run-history store.
type FailureClass string

const (
	FailFirmwareNotReady FailureClass = "firmware-not-ready-timeout"
	FailUpstreamBuild    FailureClass = "upstream-build-failed"
	FailFlashHardware    FailureClass = "flash-hardware-unavailable"
	FailFlashUnknown     FailureClass = "flash-unknown-error"
	FailInstrument       FailureClass = "measurement-instrument-error"
)

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeTerminal
)

// Outcome is the tagged result of a pipeline stage. Retryable outcomes are
// absorbed inside the fetcher's retry budget and never surface past it.
type Outcome struct {
	Kind       OutcomeKind
	Class      FailureClass // Set when Kind is OutcomeTerminal.
	Reason     string
	Diagnostic string // Raw tool or provider output when available.
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Retryable returns a transient outcome that should be retried under the
// caller's time budget.
func Retryable(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

// Terminal returns a non-retryable failure outcome with an optional raw
// diagnostic attachment.
func Terminal(class FailureClass, reason, diagnostic string) Outcome {
	return Outcome{Kind: OutcomeTerminal, Class: class, Reason: reason, Diagnostic: diagnostic}
}

// IsSuccess reports whether the outcome is a success.
func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// IsTerminal reports whether the outcome is a terminal failure.
func (o Outcome) IsTerminal() bool { return o.Kind == OutcomeTerminal }
