package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// ArtifactFetcher polls the upstream build provider until the firmware images
// for a commit are downloaded locally, or a single end-to-end time budget is
// exhausted. The provider is eventually consistent: the job for a commit may
// not exist yet when the webhook fires, and build completion races webhook
// delivery, so everything short of a negative build result is retried.
type ArtifactFetcher struct {
	provider    driven.BuildProvider
	jobName     string
	paths       []string
	workDir     string
	maxWait     time.Duration
	retryPeriod time.Duration
	logger      *slog.Logger
}

// NewArtifactFetcher creates an ArtifactFetcher. jobName selects the
// artifact-producing job; paths are the provider-relative artifact paths that
// must all be downloaded into workDir for success.
func NewArtifactFetcher(
	provider driven.BuildProvider,
	jobName string,
	paths []string,
	workDir string,
	maxWait time.Duration,
	retryPeriod time.Duration,
	logger *slog.Logger,
) *ArtifactFetcher {
	return &ArtifactFetcher{
		provider:    provider,
		jobName:     jobName,
		paths:       paths,
		workDir:     workDir,
		maxWait:     maxWait,
		retryPeriod: retryPeriod,
		logger:      logger,
	}
}

// FetchAll drives the retry loop for one commit. On success it returns the
// local file paths of all required artifacts in the order configured. Job
// lookup, artifact resolution, and downloads all draw from the same elapsed
// budget; the budget never resets mid-run.
func (f *ArtifactFetcher) FetchAll(ctx context.Context, sha string) ([]string, model.Outcome) {
	var elapsed time.Duration
	downloaded := make(map[string]string, len(f.paths))

	for {
		files, outcome := f.attempt(ctx, sha, downloaded)
		switch outcome.Kind {
		case model.OutcomeSuccess:
			return files, outcome
		case model.OutcomeTerminal:
			return nil, outcome
		}

		if elapsed >= f.maxWait {
			f.logger.Error("firmware wait budget exhausted",
				"sha", sha, "elapsed", elapsed, "reason", outcome.Reason)
			return nil, model.Terminal(model.FailFirmwareNotReady,
				fmt.Sprintf("firmware not ready after %s: %s", elapsed, outcome.Reason), "")
		}

		f.logger.Info("firmware not ready, retrying",
			"sha", sha, "reason", outcome.Reason, "elapsed", elapsed, "max_wait", f.maxWait)

		select {
		case <-ctx.Done():
			return nil, model.Terminal(model.FailFirmwareNotReady,
				fmt.Sprintf("wait aborted: %v", ctx.Err()), "")
		case <-time.After(f.retryPeriod):
			elapsed += f.retryPeriod
		}
	}
}

// attempt runs one pass of job lookup, artifact resolution, and download.
// downloaded carries completed downloads across attempts so a retried pass
// only fetches what is still missing.
func (f *ArtifactFetcher) attempt(ctx context.Context, sha string, downloaded map[string]string) ([]string, model.Outcome) {
	jobs, err := f.provider.ListJobs(ctx)
	if err != nil {
		return nil, model.Retryable(fmt.Sprintf("list jobs: %v", err))
	}

	var packJob *model.BuildJob
	for i := range jobs {
		job := jobs[i]
		if job.VCSRevision != sha {
			continue
		}
		// A negative result for this commit cannot resolve itself. Any job for
		// the commit counts, not just the pack job: a failed upstream stage
		// blocks the artifacts just the same.
		if job.Status.Negative() {
			return nil, model.Terminal(model.FailUpstreamBuild,
				fmt.Sprintf("upstream job %q is %s for commit %s", job.JobName, job.Status, sha), "")
		}
		if job.JobName == f.jobName && job.Status == model.JobStatusSuccess && packJob == nil {
			packJob = &job
		}
	}
	if packJob == nil {
		return nil, model.Retryable(fmt.Sprintf("no successful %q job for commit %s yet", f.jobName, sha))
	}

	artifacts, err := f.provider.ListArtifacts(ctx, packJob.BuildNum)
	if err != nil {
		return nil, model.Retryable(fmt.Sprintf("list artifacts for build %d: %v", packJob.BuildNum, err))
	}
	byPath := make(map[string]model.Artifact, len(artifacts))
	for _, a := range artifacts {
		byPath[a.Path] = a
	}

	files := make([]string, 0, len(f.paths))
	for _, path := range f.paths {
		if local, ok := downloaded[path]; ok {
			files = append(files, local)
			continue
		}
		artifact, ok := byPath[path]
		if !ok {
			// Artifact listings can lag job completion; treat as not-ready.
			return nil, model.Retryable(fmt.Sprintf("artifact %q not listed for build %d yet", path, packJob.BuildNum))
		}
		local, err := f.provider.Download(ctx, artifact, f.workDir)
		if err != nil {
			return nil, model.Retryable(fmt.Sprintf("download %q: %v", path, err))
		}
		downloaded[path] = local
		files = append(files, local)
		f.logger.Info("artifact downloaded", "path", path, "local", local, "build", packJob.BuildNum)
	}

	return files, model.Success()
}
