package application_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedlab/powergate/internal/application"
	"github.com/embedlab/powergate/internal/domain/model"
)

const (
	testAppID      = int64(4242)
	testRepo       = "embedlab/firmware"
	testCheckRunID = int64(555)
)

// fixture assembles a Controller around the mock ports with a fast retry
// budget and starts its worker.
type fixture struct {
	reporter  *mockReporter
	provider  *mockProvider
	flasher   *fakeFlasher
	meter     *fakeMeter
	publisher *mockPublisher
	store     *mockRunStore
	ctrl      *application.Controller
}

func newFixture(t *testing.T, provider *mockProvider, flasher *fakeFlasher, meter *fakeMeter, publisher *mockPublisher) *fixture {
	t.Helper()

	workDir := t.TempDir()
	reporter := newMockReporter()
	store := &mockRunStore{}

	fetcher := application.NewArtifactFetcher(
		provider, "pack_images",
		[]string{"build/app_image.bin", "build/bootloader.bin"},
		workDir, 50*time.Millisecond, 5*time.Millisecond, slog.Default(),
	)
	pipeline := application.NewDevicePipeline(flasher, meter, 90, 1000, slog.Default())
	history := application.NewHistoryWindow(filepath.Join(workDir, "first_few_seconds.csv"))

	ctrl := application.NewController(
		reporter, fetcher, pipeline, publisher, store,
		application.NewRunLock(), history,
		workDir, testAppID, 0.005, 8, slog.Default(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Start(ctx)
	t.Cleanup(cancel)

	return &fixture{
		reporter:  reporter,
		provider:  provider,
		flasher:   flasher,
		meter:     meter,
		publisher: publisher,
		store:     store,
		ctrl:      ctrl,
	}
}

func triggerEvent(sha string) model.TriggerEvent {
	return model.TriggerEvent{
		Kind:         model.TriggerCheckRunCreated,
		RepoFullName: testRepo,
		HeadSHA:      sha,
		AppID:        testAppID,
		CheckRunID:   testCheckRunID,
		Sender:       "alice",
	}
}

// waitCompleted blocks until the reporter sees a completed-status update.
func waitCompleted(t *testing.T, reporter *mockReporter) updateCall {
	t.Helper()

	select {
	case call := <-reporter.completed:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no completed report filed within 2s")
		return updateCall{}
	}
}

func TestController_SuccessScenario(t *testing.T) {
	// Upstream job invisible for the first two polls, then succeeds; flash
	// completes; measured mean 0.003 A against a 0.005 A threshold.
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{nil, nil, {packJob(model.JobStatusSuccess)}},
		artifacts:  testArtifacts(),
	}
	flasher := &fakeFlasher{output: "Flashing...\ndone.\n"}
	meter := &fakeMeter{output: "mean=3.00e-03,min=1.00e-03,max=4.00e-03\n"}
	f := newFixture(t, provider, flasher, meter, &mockPublisher{})

	require.NoError(t, f.ctrl.HandleEvent(context.Background(), triggerEvent(testSHA)))

	call := waitCompleted(t, f.reporter)
	assert.Equal(t, model.ConclusionSuccess, call.Conclusion)
	assert.Equal(t, testCheckRunID, call.ID)
	require.NotNil(t, call.Output)
	assert.Contains(t, call.Output.Title, "0.0030")
	assert.Contains(t, call.Output.Summary, "Measurement trace")

	// The queued report precedes the completed one.
	f.reporter.mu.Lock()
	require.NotEmpty(t, f.reporter.updates)
	assert.Equal(t, model.CheckStatusQueued, f.reporter.updates[0].Status)
	f.reporter.mu.Unlock()

	require.Len(t, f.reporter.completedUpdates(), 1, "exactly one terminal report")

	f.store.mu.Lock()
	require.Len(t, f.store.finalized, 1)
	assert.Equal(t, model.RunStatusCompleted, f.store.finalized[0].Status)
	assert.True(t, f.store.finalized[0].Measured)
	assert.InDelta(t, 0.003, f.store.finalized[0].MeanAmps, 1e-9)
	f.store.mu.Unlock()
}

func TestController_DuplicateTriggerDropped(t *testing.T) {
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{packJob(model.JobStatusSuccess)}},
		artifacts:  testArtifacts(),
	}
	flasher := &fakeFlasher{output: "done.\n"}
	meter := &fakeMeter{output: "mean=0.0010\n"}
	f := newFixture(t, provider, flasher, meter, &mockPublisher{})

	ctx := context.Background()
	require.NoError(t, f.ctrl.HandleEvent(ctx, triggerEvent(testSHA)))
	require.NoError(t, f.ctrl.HandleEvent(ctx, triggerEvent(testSHA)))

	waitCompleted(t, f.reporter)
	time.Sleep(50 * time.Millisecond) // give a hypothetical second run time to start

	assert.Equal(t, 1, f.flasher.callCount(), "back-to-back duplicates must run the pipeline once")
	assert.Len(t, f.reporter.completedUpdates(), 1)
}

func TestController_DistinctSHAsSerialize(t *testing.T) {
	otherSHA := "def456"
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{
			packJob(model.JobStatusSuccess),
			{BuildNum: 78, VCSRevision: otherSHA, JobName: "pack_images", Status: model.JobStatusSuccess},
		}},
		artifacts: testArtifacts(),
	}
	flasher := &fakeFlasher{output: "done.\n"}
	meter := &fakeMeter{output: "mean=0.0010\n"}
	f := newFixture(t, provider, flasher, meter, &mockPublisher{})

	ctx := context.Background()
	require.NoError(t, f.ctrl.HandleEvent(ctx, triggerEvent(testSHA)))
	require.NoError(t, f.ctrl.HandleEvent(ctx, triggerEvent(otherSHA)))

	waitCompleted(t, f.reporter)
	waitCompleted(t, f.reporter)

	assert.Equal(t, 2, f.flasher.callCount(), "distinct commits queue and both run")
}

func TestController_HardwareUnavailableReportsCancelled(t *testing.T) {
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{packJob(model.JobStatusSuccess)}},
		artifacts:  testArtifacts(),
	}
	flasher := &fakeFlasher{output: "ERROR: cannot open gdb interface\n"}
	f := newFixture(t, provider, flasher, &fakeMeter{}, &mockPublisher{})

	require.NoError(t, f.ctrl.HandleEvent(context.Background(), triggerEvent(testSHA)))

	call := waitCompleted(t, f.reporter)
	assert.Equal(t, model.ConclusionCancelled, call.Conclusion)
	require.NotNil(t, call.Output)
	assert.Equal(t, string(model.FailFlashHardware), call.Output.Title)
}

func TestController_UpstreamBlockedReportsCancelled(t *testing.T) {
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{packJob(model.JobStatusBlocked)}},
	}
	f := newFixture(t, provider, &fakeFlasher{}, &fakeMeter{}, &mockPublisher{})

	require.NoError(t, f.ctrl.HandleEvent(context.Background(), triggerEvent(testSHA)))

	call := waitCompleted(t, f.reporter)
	assert.Equal(t, model.ConclusionCancelled, call.Conclusion)
	require.NotNil(t, call.Output)
	assert.Equal(t, string(model.FailUpstreamBuild), call.Output.Title)
	assert.Equal(t, 1, f.provider.jobCalls, "negative build must not be retried")
	assert.Equal(t, 0, f.flasher.callCount(), "pipeline short-circuits before flashing")
}

func TestController_FirmwareTimeoutReportsTimedOut(t *testing.T) {
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{packJob(model.JobStatusRunning)}},
	}
	f := newFixture(t, provider, &fakeFlasher{}, &fakeMeter{}, &mockPublisher{})

	require.NoError(t, f.ctrl.HandleEvent(context.Background(), triggerEvent(testSHA)))

	call := waitCompleted(t, f.reporter)
	assert.Equal(t, model.ConclusionTimedOut, call.Conclusion)
}

func TestController_PublishFailureDegradesReport(t *testing.T) {
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{packJob(model.JobStatusSuccess)}},
		artifacts:  testArtifacts(),
	}
	flasher := &fakeFlasher{output: "done.\n"}
	meter := &fakeMeter{output: "mean=0.0010\n"}
	f := newFixture(t, provider, flasher, meter, &mockPublisher{fail: true})

	require.NoError(t, f.ctrl.HandleEvent(context.Background(), triggerEvent(testSHA)))

	call := waitCompleted(t, f.reporter)
	assert.Equal(t, model.ConclusionSuccess, call.Conclusion, "measurement already succeeded; publish failure is non-fatal")
	require.NotNil(t, call.Output)
	assert.NotContains(t, call.Output.Summary, "Measurement trace")
}

func TestController_PanicStillFilesTerminalReport(t *testing.T) {
	provider := &mockProvider{
		jobsByCall: [][]model.BuildJob{{packJob(model.JobStatusSuccess)}},
		artifacts:  testArtifacts(),
	}
	f := newFixture(t, provider, &fakeFlasher{doomed: true}, &fakeMeter{}, &mockPublisher{})

	require.NoError(t, f.ctrl.HandleEvent(context.Background(), triggerEvent(testSHA)))

	call := waitCompleted(t, f.reporter)
	assert.Equal(t, model.ConclusionCancelled, call.Conclusion)
}

func TestController_CreateEventsCreateCheckRun(t *testing.T) {
	f := newFixture(t, &mockProvider{}, &fakeFlasher{}, &fakeMeter{}, &mockPublisher{})

	ev := model.TriggerEvent{
		Kind:         model.TriggerCheckSuiteRequested,
		RepoFullName: testRepo,
		HeadSHA:      testSHA,
		Sender:       "alice",
	}
	require.NoError(t, f.ctrl.HandleEvent(context.Background(), ev))

	f.reporter.mu.Lock()
	assert.Equal(t, []string{testSHA}, f.reporter.created)
	f.reporter.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.flasher.callCount(), "creation events do not start the pipeline")
}

func TestController_ForeignAppEventIgnored(t *testing.T) {
	f := newFixture(t, &mockProvider{}, &fakeFlasher{}, &fakeMeter{}, &mockPublisher{})

	ev := triggerEvent(testSHA)
	ev.AppID = 9999
	require.NoError(t, f.ctrl.HandleEvent(context.Background(), ev))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.flasher.callCount())
	assert.Empty(t, f.reporter.completedUpdates())
}
