// Package github implements the CheckReporter port using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CheckReporter = (*Reporter)(nil)

// timeNow is a seam so tests can pin completion timestamps.
var timeNow = time.Now

// Reporter implements the driven.CheckReporter port using the go-github
// library. The check-run name is bound at construction; one rig reports one
// check.
type Reporter struct {
	gh        *gh.Client
	checkName string
}

// NewReporter creates a GitHub check-run reporter with the following
// transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewReporter(token, checkName string) *Reporter {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Reporter{
		gh:        client,
		checkName: checkName,
	}
}

// NewReporterWithHTTPClient creates a Reporter with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewReporterWithHTTPClient(httpClient *http.Client, baseURL, checkName string) (*Reporter, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Reporter{
		gh:        client,
		checkName: checkName,
	}, nil
}

// CreateCheckRun creates a new queued check run for the given head SHA and
// returns its GitHub identifier.
func (r *Reporter) CreateCheckRun(ctx context.Context, repoFullName, headSHA string) (int64, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	run, _, err := r.gh.Checks.CreateCheckRun(ctx, owner, repo, gh.CreateCheckRunOptions{
		Name:    r.checkName,
		HeadSHA: headSHA,
		Status:  gh.Ptr(string(model.CheckStatusQueued)),
	})
	if err != nil {
		return 0, fmt.Errorf("creating check run for %s@%s: %w", repoFullName, headSHA, err)
	}

	return run.GetID(), nil
}

// UpdateCheckRun mutates an existing check run. conclusion and output are
// only sent when non-empty/non-nil.
func (r *Reporter) UpdateCheckRun(ctx context.Context, repoFullName string, id int64, status model.CheckStatus, conclusion model.CheckConclusion, output *model.CheckOutput) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	opts := gh.UpdateCheckRunOptions{
		Name:   r.checkName,
		Status: gh.Ptr(string(status)),
	}
	if conclusion != "" {
		opts.Conclusion = gh.Ptr(string(conclusion))
		opts.CompletedAt = &gh.Timestamp{Time: timeNow()}
	}
	if output != nil {
		opts.Output = &gh.CheckRunOutput{
			Title:   gh.Ptr(output.Title),
			Summary: gh.Ptr(output.Summary),
			Text:    gh.Ptr(output.Text),
		}
	}

	if _, _, err := r.gh.Checks.UpdateCheckRun(ctx, owner, repo, id, opts); err != nil {
		return fmt.Errorf("updating check run %d for %s: %w", id, repoFullName, err)
	}

	return nil
}

// splitRepo parses "owner/name" into its parts.
func splitRepo(repoFullName string) (string, string, error) {
	parts := strings.SplitN(repoFullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository full name %q, expected owner/name", repoFullName)
	}
	return parts[0], parts[1], nil
}
