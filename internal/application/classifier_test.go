package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/embedlab/powergate/internal/application"
	"github.com/embedlab/powergate/internal/domain/model"
)

func TestClassify_BelowThresholdPasses(t *testing.T) {
	v := application.Classify(model.Measurement{MeanAmps: 0.003}, 0.005)

	assert.Equal(t, model.ConclusionSuccess, v.Conclusion)
	assert.Contains(t, v.Title, "0.0030")
	assert.Contains(t, v.Summary, "0.0050")
}

func TestClassify_ExactlyAtThresholdPasses(t *testing.T) {
	// The comparison is strictly greater-than: equality is not a regression.
	v := application.Classify(model.Measurement{MeanAmps: 0.005}, 0.005)

	assert.Equal(t, model.ConclusionSuccess, v.Conclusion)
}

func TestClassify_AboveThresholdFails(t *testing.T) {
	v := application.Classify(model.Measurement{MeanAmps: 0.0051}, 0.005)

	assert.Equal(t, model.ConclusionFailure, v.Conclusion)
}

func TestClassify_CarriesRawOutput(t *testing.T) {
	v := application.Classify(model.Measurement{MeanAmps: 0.001, Raw: "instrument trace here"}, 0.005)

	assert.Equal(t, "instrument trace here", v.Text)
}

func TestFailureVerdict_ConclusionMapping(t *testing.T) {
	tests := []struct {
		class model.FailureClass
		want  model.CheckConclusion
	}{
		{model.FailFirmwareNotReady, model.ConclusionTimedOut},
		{model.FailUpstreamBuild, model.ConclusionCancelled},
		{model.FailFlashHardware, model.ConclusionCancelled},
		{model.FailFlashUnknown, model.ConclusionFailure},
		{model.FailInstrument, model.ConclusionFailure},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			v := application.FailureVerdict(model.Terminal(tt.class, "reason", "diag"))

			assert.Equal(t, tt.want, v.Conclusion)
			assert.Equal(t, string(tt.class), v.Title)
			assert.Equal(t, "reason", v.Summary)
			assert.Equal(t, "diag", v.Text)
		})
	}
}

func TestFailureVerdict_UnknownClassFallsBackToCancelled(t *testing.T) {
	v := application.FailureVerdict(model.Terminal("some-new-class", "reason", ""))

	assert.Equal(t, model.ConclusionCancelled, v.Conclusion)
}
