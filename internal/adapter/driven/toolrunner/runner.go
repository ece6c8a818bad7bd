// Package toolrunner implements the Flasher and PowerMeter ports by invoking
// the rig's external executables. Every invocation runs under a configurable
// timeout so a wedged tool cannot hang a pipeline run forever.
package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Flasher    = (*Flasher)(nil)
	_ driven.PowerMeter = (*PowerMeter)(nil)
)

// Runner executes one external command to completion and returns its combined
// stdout+stderr. A non-zero exit is not treated as an error: the tools under
// this rig report their failures in output text, and interpreting that text
// is the device pipeline's job. Errors are reserved for invocation-level
// failures: missing executable, or the timeout expiring.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner applying the given per-invocation timeout.
func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{timeout: timeout, logger: logger}
}

// Run executes argv[0] with the remaining arguments and waits for it.
func (r *Runner) Run(ctx context.Context, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	output := string(out)

	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Error("external tool timed out", "cmd", argv[0], "timeout", r.timeout)
		return output, fmt.Errorf("%s timed out after %s", argv[0], r.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Fold the exit status into the output stream; the caller classifies.
		r.logger.Info("external tool exited non-zero",
			"cmd", argv[0], "code", exitErr.ExitCode(), "duration", time.Since(start).Round(time.Millisecond))
		return output, nil
	}
	if err != nil {
		return output, fmt.Errorf("running %s: %w", argv[0], err)
	}

	r.logger.Info("external tool finished", "cmd", argv[0], "duration", time.Since(start).Round(time.Millisecond))
	return output, nil
}

// Flasher invokes the device-programming executable. The full argv comes from
// configuration; the tool needs no per-run arguments.
type Flasher struct {
	runner *Runner
	argv   []string
}

// NewFlasher creates a Flasher for the configured flash command.
func NewFlasher(runner *Runner, argv []string) *Flasher {
	return &Flasher{runner: runner, argv: argv}
}

// Flash runs the flashing tool and returns its combined output.
func (f *Flasher) Flash(ctx context.Context) (string, error) {
	return f.runner.Run(ctx, f.argv...)
}

// PowerMeter invokes the measurement executable with the capture duration and
// sampling frequency appended as arguments.
type PowerMeter struct {
	runner *Runner
	argv   []string
}

// NewPowerMeter creates a PowerMeter for the configured measure command.
func NewPowerMeter(runner *Runner, argv []string) *PowerMeter {
	return &PowerMeter{runner: runner, argv: argv}
}

// Measure runs the capture and returns the tool's combined output.
func (m *PowerMeter) Measure(ctx context.Context, captureSeconds, sampleHz int) (string, error) {
	argv := append(append([]string{}, m.argv...),
		"--duration", strconv.Itoa(captureSeconds),
		"--frequency", strconv.Itoa(sampleHz),
	)
	return m.runner.Run(ctx, argv...)
}
