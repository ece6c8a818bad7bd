package application

import (
	"fmt"

	"github.com/embedlab/powergate/internal/domain/model"
)

// Verdict is the terminal report content for a run: the check conclusion plus
// the human-readable output attached to it.
type Verdict struct {
	Conclusion model.CheckConclusion
	Title      string
	Summary    string
	Text       string
}

// conclusionByClass maps terminal failure classes to check conclusions.
// cancelled is reserved for operator-actionable conditions (hardware
// disconnected, upstream build failed) so it stays distinguishable from the
// genuine pass/fail verdict of the measurement.
var conclusionByClass = map[model.FailureClass]model.CheckConclusion{
	model.FailFirmwareNotReady: model.ConclusionTimedOut,
	model.FailUpstreamBuild:    model.ConclusionCancelled,
	model.FailFlashHardware:    model.ConclusionCancelled,
	model.FailFlashUnknown:     model.ConclusionFailure,
	model.FailInstrument:       model.ConclusionFailure,
}

// Classify maps a measurement against the pass threshold. The comparison is
// strict: a mean exactly equal to the threshold passes.
func Classify(m model.Measurement, thresholdAmps float64) Verdict {
	conclusion := model.ConclusionSuccess
	if m.MeanAmps > thresholdAmps {
		conclusion = model.ConclusionFailure
	}

	summary := fmt.Sprintf("Mean current over the capture window: **%.4f A** (threshold %.4f A).",
		m.MeanAmps, thresholdAmps)
	if m.MinAmps != 0 || m.MaxAmps != 0 {
		summary += fmt.Sprintf("\nRange: %.4f A to %.4f A.", m.MinAmps, m.MaxAmps)
	}

	return Verdict{
		Conclusion: conclusion,
		Title:      fmt.Sprintf("Idle power: %.4f A mean", m.MeanAmps),
		Summary:    summary,
		Text:       m.Raw,
	}
}

// FailureVerdict converts a terminal outcome into its report form, attaching
// the raw diagnostic output when the stage produced any.
func FailureVerdict(o model.Outcome) Verdict {
	conclusion, ok := conclusionByClass[o.Class]
	if !ok {
		conclusion = model.ConclusionCancelled
	}

	return Verdict{
		Conclusion: conclusion,
		Title:      string(o.Class),
		Summary:    o.Reason,
		Text:       o.Diagnostic,
	}
}
