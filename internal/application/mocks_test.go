package application_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/embedlab/powergate/internal/domain/model"
)

// --- Mock implementations of the driven ports ---

// mockProvider scripts the build-provider responses per call.
type mockProvider struct {
	mu sync.Mutex

	// jobsByCall returns the job list for the nth ListJobs call; the last
	// entry repeats once exhausted.
	jobsByCall [][]model.BuildJob
	jobsErr    error
	jobCalls   int

	artifacts     []model.Artifact
	artifactsErr  error
	artifactCalls int

	downloadErrs  map[string]error // one-shot error per artifact path
	downloadCalls map[string]int
}

func (m *mockProvider) ListJobs(_ context.Context) ([]model.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.jobsErr != nil {
		return nil, m.jobsErr
	}
	idx := m.jobCalls
	m.jobCalls++
	if idx >= len(m.jobsByCall) {
		idx = len(m.jobsByCall) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	return m.jobsByCall[idx], nil
}

func (m *mockProvider) ListArtifacts(_ context.Context, _ int) ([]model.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.artifactCalls++
	if m.artifactsErr != nil {
		return nil, m.artifactsErr
	}
	return m.artifacts, nil
}

func (m *mockProvider) Download(_ context.Context, artifact model.Artifact, destDir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.downloadCalls == nil {
		m.downloadCalls = make(map[string]int)
	}
	m.downloadCalls[artifact.Path]++

	if err, ok := m.downloadErrs[artifact.Path]; ok && err != nil {
		delete(m.downloadErrs, artifact.Path)
		return "", err
	}
	return destDir + "/" + artifact.Path, nil
}

// updateCall records one UpdateCheckRun invocation.
type updateCall struct {
	RepoFullName string
	ID           int64
	Status       model.CheckStatus
	Conclusion   model.CheckConclusion
	Output       *model.CheckOutput
}

// mockReporter records check-run reporting calls and signals completion.
type mockReporter struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	created   []string // head SHAs
	updates   []updateCall
	nextID    int64

	// completed receives one value per completed-status update.
	completed chan updateCall
}

func newMockReporter() *mockReporter {
	return &mockReporter{nextID: 1000, completed: make(chan updateCall, 16)}
}

func (m *mockReporter) CreateCheckRun(_ context.Context, _, headSHA string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return 0, m.createErr
	}
	m.created = append(m.created, headSHA)
	m.nextID++
	return m.nextID, nil
}

func (m *mockReporter) UpdateCheckRun(_ context.Context, repoFullName string, id int64, status model.CheckStatus, conclusion model.CheckConclusion, output *model.CheckOutput) error {
	m.mu.Lock()
	call := updateCall{RepoFullName: repoFullName, ID: id, Status: status, Conclusion: conclusion, Output: output}
	err := m.updateErr
	if err == nil {
		m.updates = append(m.updates, call)
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if status == model.CheckStatusCompleted {
		m.completed <- call
	}
	return nil
}

func (m *mockReporter) completedUpdates() []updateCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []updateCall
	for _, u := range m.updates {
		if u.Status == model.CheckStatusCompleted {
			out = append(out, u)
		}
	}
	return out
}

// mockPublisher returns a canned URL per file, or fails every call.
type mockPublisher struct {
	mu    sync.Mutex
	fail  bool
	calls []string
}

func (m *mockPublisher) Publish(_ context.Context, localPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, localPath)
	if m.fail {
		return "", fmt.Errorf("upload refused")
	}
	return "https://bucket.s3.test/" + localPath, nil
}

// mockRunStore records inserts and finalizes in memory.
type mockRunStore struct {
	mu        sync.Mutex
	inserts   []model.RunRecord
	finalized []model.RunRecord
}

func (m *mockRunStore) Insert(_ context.Context, rec model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts = append(m.inserts, rec)
	return nil
}

func (m *mockRunStore) Finalize(_ context.Context, rec model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, rec)
	return nil
}

func (m *mockRunStore) GetByID(_ context.Context, _ string) (*model.RunRecord, error) {
	return nil, nil
}

func (m *mockRunStore) ListRecent(_ context.Context, _ int) ([]model.RunRecord, error) {
	return nil, nil
}

// fakeFlasher returns scripted output, counts invocations, and can panic.
type fakeFlasher struct {
	mu     sync.Mutex
	output string
	err    error
	doomed bool // panic on invocation
	calls  int
}

func (f *fakeFlasher) Flash(_ context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.doomed {
		panic("flash tool wedged the process")
	}
	return f.output, f.err
}

func (f *fakeFlasher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeMeter returns scripted output.
type fakeMeter struct {
	output string
	err    error
}

func (f *fakeMeter) Measure(_ context.Context, _, _ int) (string, error) {
	return f.output, f.err
}
