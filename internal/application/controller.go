package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// Controller owns the check-run lifecycle: it turns webhook trigger events
// into pipeline runs and guarantees that every run that starts is reported
// exactly once as completed, whatever fails in between.
//
// Runs execute on a single worker goroutine fed by a bounded queue, so
// distinct commits serialize on the one physical rig instead of racing it.
// Duplicate triggers for the same commit are dropped by the run lock before
// they ever reach the queue.
type Controller struct {
	reporter      driven.CheckReporter
	fetcher       *ArtifactFetcher
	pipeline      *DevicePipeline
	publisher     driven.ResultPublisher
	runs          driven.RunStore
	lock          *RunLock
	history       *HistoryWindow
	workDir       string
	appID         int64
	thresholdAmps float64
	queue         chan model.TriggerEvent
	logger        *slog.Logger
}

// NewController creates a Controller with all required dependencies. appID is
// the GitHub App identifier whose check_run events this rig answers; events
// from other apps are ignored.
func NewController(
	reporter driven.CheckReporter,
	fetcher *ArtifactFetcher,
	pipeline *DevicePipeline,
	publisher driven.ResultPublisher,
	runs driven.RunStore,
	lock *RunLock,
	history *HistoryWindow,
	workDir string,
	appID int64,
	thresholdAmps float64,
	queueDepth int,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		reporter:      reporter,
		fetcher:       fetcher,
		pipeline:      pipeline,
		publisher:     publisher,
		runs:          runs,
		lock:          lock,
		history:       history,
		workDir:       workDir,
		appID:         appID,
		thresholdAmps: thresholdAmps,
		queue:         make(chan model.TriggerEvent, queueDepth),
		logger:        logger,
	}
}

// HandleEvent dispatches one normalized webhook event. Creation-class events
// (rerequest, check suite, pull request) ask GitHub for a fresh check run;
// the resulting check_run.created event is what actually starts a pipeline.
// HandleEvent never blocks on pipeline work.
func (c *Controller) HandleEvent(ctx context.Context, ev model.TriggerEvent) error {
	switch ev.Kind {
	case model.TriggerCheckRunRerequested, model.TriggerCheckSuiteRequested,
		model.TriggerPullRequestOpened, model.TriggerPullRequestSync:
		id, err := c.reporter.CreateCheckRun(ctx, ev.RepoFullName, ev.HeadSHA)
		if err != nil {
			return fmt.Errorf("create check run for %s: %w", ev.HeadSHA, err)
		}
		c.logger.Info("check run created", "sha", ev.HeadSHA, "check_run_id", id, "trigger", ev.Kind)
		return nil

	case model.TriggerCheckRunCreated:
		if ev.AppID != c.appID {
			c.logger.Info("ignoring check run for foreign app", "app_id", ev.AppID, "sha", ev.HeadSHA)
			return nil
		}
		if !c.lock.TryAcquire(ev.HeadSHA) {
			c.logger.Info("duplicate trigger dropped", "sha", ev.HeadSHA)
			return nil
		}
		select {
		case c.queue <- ev:
			c.logger.Info("run enqueued", "sha", ev.HeadSHA, "check_run_id", ev.CheckRunID)
		default:
			c.logger.Error("run queue full, dropping trigger", "sha", ev.HeadSHA)
		}
		return nil

	default:
		c.logger.Info("unhandled trigger kind", "kind", ev.Kind)
		return nil
	}
}

// Start drains the run queue on a single worker until the context is
// canceled. Start blocks; run it on its own goroutine.
func (c *Controller) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopped")
			return
		case ev := <-c.queue:
			c.execute(ctx, ev)
		}
	}
}

// execute runs one full pipeline for a trigger event and files exactly one
// completed report. Nothing escaping the pipeline may prevent the report:
// runPipeline converts panics and stage failures into a Verdict, and a report
// delivery failure is logged and the run abandoned (accepted limitation).
func (c *Controller) execute(ctx context.Context, ev model.TriggerEvent) {
	rec := model.RunRecord{
		ID:            uuid.NewString(),
		HeadSHA:       ev.HeadSHA,
		TriggeredBy:   ev.Sender,
		Status:        model.RunStatusRunning,
		ThresholdAmps: c.thresholdAmps,
		StartedAt:     time.Now(),
	}
	if err := c.runs.Insert(ctx, rec); err != nil {
		c.logger.Error("failed to record run start", "run_id", rec.ID, "error", err)
	}

	c.logger.Info("run started", "run_id", rec.ID, "sha", ev.HeadSHA)
	verdict := c.runPipeline(ctx, ev, &rec)

	output := &model.CheckOutput{Title: verdict.Title, Summary: verdict.Summary, Text: verdict.Text}
	if err := c.reporter.UpdateCheckRun(ctx, ev.RepoFullName, ev.CheckRunID,
		model.CheckStatusCompleted, verdict.Conclusion, output); err != nil {
		c.logger.Error("failed to file terminal report, abandoning run",
			"run_id", rec.ID, "sha", ev.HeadSHA, "conclusion", verdict.Conclusion, "error", err)
	}

	rec.Status = model.RunStatusCompleted
	rec.Conclusion = verdict.Conclusion
	rec.CompletedAt = time.Now()
	if err := c.runs.Finalize(ctx, rec); err != nil {
		c.logger.Error("failed to finalize run record", "run_id", rec.ID, "error", err)
	}

	c.logger.Info("run completed", "run_id", rec.ID, "sha", ev.HeadSHA,
		"conclusion", verdict.Conclusion, "duration", rec.CompletedAt.Sub(rec.StartedAt).Round(time.Second))
}

// runPipeline executes the ordered stages and always returns a Verdict. A
// panic in any stage is recovered into a cancelled verdict so the caller can
// still report.
func (c *Controller) runPipeline(ctx context.Context, ev model.TriggerEvent, rec *model.RunRecord) (verdict Verdict) {
	defer func() {
		if v := recover(); v != nil {
			c.logger.Error("pipeline panicked", "run_id", rec.ID, "panic", v)
			verdict = Verdict{
				Conclusion: model.ConclusionCancelled,
				Title:      "power gate internal error",
				Summary:    fmt.Sprintf("The pipeline crashed before producing a result: %v", v),
			}
		}
	}()

	if err := c.reporter.UpdateCheckRun(ctx, ev.RepoFullName, ev.CheckRunID,
		model.CheckStatusQueued, "", nil); err != nil {
		// Non-fatal: the terminal report at the end is what matters.
		c.logger.Error("failed to report queued status", "run_id", rec.ID, "error", err)
	}

	if _, outcome := c.fetchStage(ctx, ev, rec); outcome.IsTerminal() {
		rec.FailureClass = outcome.Class
		return FailureVerdict(outcome)
	}

	if outcome := c.pipeline.Flash(ctx); outcome.IsTerminal() {
		rec.FailureClass = outcome.Class
		return FailureVerdict(outcome)
	}

	m, outcome := c.pipeline.Measure(ctx)
	if outcome.IsTerminal() {
		rec.FailureClass = outcome.Class
		return FailureVerdict(outcome)
	}
	rec.MeanAmps = m.MeanAmps
	rec.Measured = true

	verdict = Classify(m, c.thresholdAmps)

	// Publishing is best effort: the measurement already succeeded, so a
	// failed upload degrades the report instead of aborting the run.
	if links := c.publishResults(ctx, rec, m); links != "" {
		verdict.Summary += "\n\n" + links
	}
	return verdict
}

// fetchStage wraps the fetcher so that the returned outcome is always either
// success or terminal; the fetcher absorbs retryables internally.
func (c *Controller) fetchStage(ctx context.Context, ev model.TriggerEvent, rec *model.RunRecord) ([]string, model.Outcome) {
	files, outcome := c.fetcher.FetchAll(ctx, ev.HeadSHA)
	if outcome.IsSuccess() {
		c.logger.Info("artifacts fetched", "run_id", rec.ID, "count", len(files))
	}
	return files, outcome
}

// publishResults uploads the measurement trace and the rolling chart CSV,
// returning a markdown link block for the report summary. Each upload failure
// is logged and its link omitted.
func (c *Controller) publishResults(ctx context.Context, rec *model.RunRecord, m model.Measurement) string {
	var links string

	tracePath := filepath.Join(c.workDir, fmt.Sprintf("trace-%s.txt", rec.ShortSHA()))
	if err := os.WriteFile(tracePath, []byte(m.Raw), 0o644); err != nil {
		c.logger.Error("failed to write trace file", "run_id", rec.ID, "error", err)
	} else if url, err := c.publisher.Publish(ctx, tracePath); err != nil {
		c.logger.Error("trace publish failed, omitting link", "run_id", rec.ID, "error", err)
	} else {
		rec.TraceURL = url
		links += fmt.Sprintf("- [Measurement trace](%s)\n", url)
	}

	if err := c.history.Append(*rec, m.MeanAmps); err != nil {
		c.logger.Error("failed to update history window", "run_id", rec.ID, "error", err)
	} else if url, err := c.publisher.Publish(ctx, c.history.Path()); err != nil {
		c.logger.Error("history publish failed, omitting link", "run_id", rec.ID, "error", err)
	} else {
		rec.ChartURL = url
		links += fmt.Sprintf("- [Recent runs chart data](%s)\n", url)
	}

	return links
}
