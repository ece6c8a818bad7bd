package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// flashDoneMarker is the substring the flashing tool prints on successful
// completion. Its absence means the flash did not finish.
const flashDoneMarker = "done."

// flashPattern maps a known substring of the flash tool's output to a failure
// classification. The tools only speak free text, so this table is the one
// place where that text is interpreted.
type flashPattern struct {
	substring string
	class     model.FailureClass
	reason    string
}

var flashPatterns = []flashPattern{
	{
		substring: "cannot open gdb interface",
		class:     model.FailFlashHardware,
		reason:    "debug interface unavailable: check that the cable is connected and the device is powered",
	},
}

// measurementRe extracts the statistics record the meter tool prints after a
// capture, e.g. "mean=3.20e-03,min=1.10e-03,max=9.80e-03". min and max are
// optional; mean is the verdict metric.
var (
	meanRe = regexp.MustCompile(`(?i)\bmean=([0-9.eE+-]+)`)
	minRe  = regexp.MustCompile(`(?i)\bmin=([0-9.eE+-]+)`)
	maxRe  = regexp.MustCompile(`(?i)\bmax=([0-9.eE+-]+)`)
)

// DevicePipeline drives the two hardware stages: programming the device and
// capturing a power measurement. Both are single blocking external-process
// calls with no streaming contract; interpretation of their output happens
// here, not in the tool adapters.
type DevicePipeline struct {
	flasher        driven.Flasher
	meter          driven.PowerMeter
	captureSeconds int
	sampleHz       int
	logger         *slog.Logger
}

// NewDevicePipeline creates a DevicePipeline with the given tool ports and
// capture parameters.
func NewDevicePipeline(flasher driven.Flasher, meter driven.PowerMeter, captureSeconds, sampleHz int, logger *slog.Logger) *DevicePipeline {
	return &DevicePipeline{
		flasher:        flasher,
		meter:          meter,
		captureSeconds: captureSeconds,
		sampleHz:       sampleHz,
		logger:         logger,
	}
}

// Flash programs the device and classifies the tool's combined output against
// the pattern table. Output lacking the completion marker is an unknown flash
// error with the raw text attached as the diagnostic.
func (p *DevicePipeline) Flash(ctx context.Context) model.Outcome {
	output, err := p.flasher.Flash(ctx)
	if err != nil {
		return model.Terminal(model.FailFlashUnknown, fmt.Sprintf("flash tool invocation failed: %v", err), output)
	}

	lower := strings.ToLower(output)
	for _, pat := range flashPatterns {
		if strings.Contains(lower, pat.substring) {
			p.logger.Error("flash failed", "class", pat.class, "reason", pat.reason)
			return model.Terminal(pat.class, pat.reason, output)
		}
	}
	if !strings.Contains(lower, flashDoneMarker) {
		p.logger.Error("flash output missing completion marker")
		return model.Terminal(model.FailFlashUnknown, "flash tool did not report completion", output)
	}

	p.logger.Info("device flashed")
	return model.Success()
}

// Measure runs the fixed-duration power capture and parses the statistics
// record out of the tool output. A case-insensitive "error" marker anywhere
// in the output means the instrument failed.
func (p *DevicePipeline) Measure(ctx context.Context) (model.Measurement, model.Outcome) {
	output, err := p.meter.Measure(ctx, p.captureSeconds, p.sampleHz)
	if err != nil {
		return model.Measurement{}, model.Terminal(model.FailInstrument,
			fmt.Sprintf("measurement tool invocation failed: %v", err), output)
	}

	if strings.Contains(strings.ToLower(output), "error") {
		p.logger.Error("instrument reported an error")
		return model.Measurement{}, model.Terminal(model.FailInstrument, "measurement instrument reported an error", output)
	}

	m, err := ParseMeasurement(output)
	if err != nil {
		return model.Measurement{}, model.Terminal(model.FailInstrument,
			fmt.Sprintf("unparseable measurement output: %v", err), output)
	}

	p.logger.Info("measurement complete", "mean_amps", m.MeanAmps, "capture_seconds", p.captureSeconds)
	return m, model.Success()
}

// ParseMeasurement extracts the mean/min/max current record from raw meter
// output. mean is required; min and max default to zero when absent.
func ParseMeasurement(raw string) (model.Measurement, error) {
	m := model.Measurement{Raw: raw}

	match := meanRe.FindStringSubmatch(raw)
	if match == nil {
		return model.Measurement{}, fmt.Errorf("no mean current record in output")
	}
	mean, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return model.Measurement{}, fmt.Errorf("parse mean current %q: %w", match[1], err)
	}
	m.MeanAmps = mean

	if match := minRe.FindStringSubmatch(raw); match != nil {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			m.MinAmps = v
		}
	}
	if match := maxRe.FindStringSubmatch(raw); match != nil {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			m.MaxAmps = v
		}
	}

	return m, nil
}
