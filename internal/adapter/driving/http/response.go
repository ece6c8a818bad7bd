package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/embedlab/powergate/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// RunResponse is the JSON representation of one pipeline run.
type RunResponse struct {
	ID            string   `json:"id"`
	HeadSHA       string   `json:"head_sha"`
	TriggeredBy   string   `json:"triggered_by"`
	Status        string   `json:"status"`
	Conclusion    string   `json:"conclusion,omitempty"`
	FailureClass  string   `json:"failure_class,omitempty"`
	MeanAmps      *float64 `json:"mean_amps,omitempty"`
	ThresholdAmps float64  `json:"threshold_amps"`
	TraceURL      string   `json:"trace_url,omitempty"`
	ChartURL      string   `json:"chart_url,omitempty"`
	StartedAt     string   `json:"started_at"`
	CompletedAt   string   `json:"completed_at,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// toRunResponse converts a domain RunRecord to its JSON representation.
func toRunResponse(rec model.RunRecord) RunResponse {
	resp := RunResponse{
		ID:            rec.ID,
		HeadSHA:       rec.HeadSHA,
		TriggeredBy:   rec.TriggeredBy,
		Status:        string(rec.Status),
		Conclusion:    string(rec.Conclusion),
		FailureClass:  string(rec.FailureClass),
		ThresholdAmps: rec.ThresholdAmps,
		TraceURL:      rec.TraceURL,
		ChartURL:      rec.ChartURL,
		StartedAt:     rec.StartedAt.UTC().Format(time.RFC3339),
	}
	if rec.Measured {
		mean := rec.MeanAmps
		resp.MeanAmps = &mean
	}
	if !rec.CompletedAt.IsZero() {
		resp.CompletedAt = rec.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
