// Package httphandler is the HTTP driving adapter: the webhook receiver and
// the small REST API over run history.
package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	gh "github.com/google/go-github/v82/github"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// EventSink receives normalized trigger events. Implemented by the
// application controller; an interface here so handler tests can stub it.
type EventSink interface {
	HandleEvent(ctx context.Context, ev model.TriggerEvent) error
}

// Handler serves the webhook endpoint and the REST API.
type Handler struct {
	sink   EventSink
	runs   driven.RunStore
	secret []byte
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(sink EventSink, runs driven.RunStore, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		sink:   sink,
		runs:   runs,
		secret: []byte(webhookSecret),
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Webhook validates and parses a GitHub webhook delivery, normalizes it to a
// trigger event, and hands it to the controller. The controller never blocks
// here; pipeline work happens on its own worker.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gh.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Error("webhook signature validation failed", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := gh.ParseWebHook(gh.WebHookType(r), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unparseable payload")
		return
	}

	ev, ok := mapEvent(event)
	if !ok {
		// Deliveries we do not act on are acknowledged, not errored, so
		// GitHub does not mark the hook unhealthy.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.sink.HandleEvent(r.Context(), ev); err != nil {
		h.logger.Error("trigger handling failed", "kind", ev.Kind, "sha", ev.HeadSHA, "error", err)
		writeError(w, http.StatusBadGateway, "trigger handling failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// mapEvent normalizes the go-github event types the gate acts on. The second
// return is false for event/action combinations that are ignored.
func mapEvent(event any) (model.TriggerEvent, bool) {
	switch e := event.(type) {
	case *gh.CheckRunEvent:
		ev := model.TriggerEvent{
			RepoFullName: e.GetRepo().GetFullName(),
			HeadSHA:      e.GetCheckRun().GetHeadSHA(),
			AppID:        e.GetCheckRun().GetApp().GetID(),
			CheckRunID:   e.GetCheckRun().GetID(),
			Sender:       e.GetSender().GetLogin(),
		}
		switch e.GetAction() {
		case "created":
			ev.Kind = model.TriggerCheckRunCreated
		case "rerequested":
			ev.Kind = model.TriggerCheckRunRerequested
		default:
			return model.TriggerEvent{}, false
		}
		return ev, true

	case *gh.CheckSuiteEvent:
		if action := e.GetAction(); action != "requested" && action != "rerequested" {
			return model.TriggerEvent{}, false
		}
		return model.TriggerEvent{
			Kind:         model.TriggerCheckSuiteRequested,
			RepoFullName: e.GetRepo().GetFullName(),
			HeadSHA:      e.GetCheckSuite().GetHeadSHA(),
			Sender:       e.GetSender().GetLogin(),
		}, true

	case *gh.PullRequestEvent:
		ev := model.TriggerEvent{
			RepoFullName: e.GetRepo().GetFullName(),
			HeadSHA:      e.GetPullRequest().GetHead().GetSHA(),
			Sender:       e.GetSender().GetLogin(),
		}
		switch e.GetAction() {
		case "opened":
			ev.Kind = model.TriggerPullRequestOpened
		case "synchronize":
			ev.Kind = model.TriggerPullRequestSync
		default:
			return model.TriggerEvent{}, false
		}
		return ev, true

	default:
		return model.TriggerEvent{}, false
	}
}

// ListRuns returns recent pipeline runs, newest first. The optional "limit"
// query parameter defaults to 50.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, rec := range runs {
		resp = append(resp, toRunResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a single pipeline run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if rec == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(*rec))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
