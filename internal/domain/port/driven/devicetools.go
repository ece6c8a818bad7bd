package driven

import "context"

// Flasher defines the driven port for the external device-programming tool.
// It returns the tool's combined stdout+stderr; interpreting that text into a
// typed outcome is the device pipeline's job, not the adapter's. A non-zero
// tool exit is not an error here -- the diagnosis lives in the output text.
// Errors are reserved for invocation-level failures (tool missing, timeout).
type Flasher interface {
	Flash(ctx context.Context) (output string, err error)
}

// PowerMeter defines the driven port for the external measurement tool. The
// capture blocks for roughly captureSeconds; the returned text contains a
// parseable statistics record.
type PowerMeter interface {
	Measure(ctx context.Context, captureSeconds, sampleHz int) (output string, err error)
}
