// Package circleci implements the BuildProvider port against the CircleCI
// v1.1 REST API.
package circleci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BuildProvider = (*Client)(nil)

const defaultBaseURL = "https://circleci.com/api/v1.1"

// jobListLimit bounds how many recent jobs one lookup fetches. The webhook
// fires close to the build, so the target commit is always near the head of
// the list.
const jobListLimit = 50

// Client implements the driven.BuildProvider port. The project ("owner/name")
// is bound at construction; authentication uses the circle-token query
// parameter as the v1.1 API expects.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	project string
}

// NewClient creates a CircleCI API client for the given project.
func NewClient(token, project string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: defaultBaseURL,
		token:   token,
		project: project,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token, project string) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
		project: project,
	}, nil
}

// jobJSON is the subset of a v1.1 build record the fetcher needs. The job
// name lives under the workflows object.
type jobJSON struct {
	BuildNum    int    `json:"build_num"`
	VCSRevision string `json:"vcs_revision"`
	Status      string `json:"status"`
	Workflows   struct {
		JobName string `json:"job_name"`
	} `json:"workflows"`
}

// artifactJSON is one entry of a build's artifact listing.
type artifactJSON struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ListJobs returns recent jobs for the configured project, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]model.BuildJob, error) {
	endpoint := fmt.Sprintf("%s/project/github/%s?circle-token=%s&limit=%d&shallow=true",
		c.baseURL, c.project, url.QueryEscape(c.token), jobListLimit)

	var raw []jobJSON
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("listing jobs for %s: %w", c.project, err)
	}

	jobs := make([]model.BuildJob, 0, len(raw))
	for _, j := range raw {
		jobs = append(jobs, model.BuildJob{
			BuildNum:    j.BuildNum,
			VCSRevision: j.VCSRevision,
			JobName:     j.Workflows.JobName,
			Status:      model.ParseJobStatus(j.Status),
		})
	}
	return jobs, nil
}

// ListArtifacts returns the artifact listing for a completed build.
func (c *Client) ListArtifacts(ctx context.Context, buildNum int) ([]model.Artifact, error) {
	endpoint := fmt.Sprintf("%s/project/github/%s/%d/artifacts?circle-token=%s",
		c.baseURL, c.project, buildNum, url.QueryEscape(c.token))

	var raw []artifactJSON
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("listing artifacts for build %d: %w", buildNum, err)
	}

	artifacts := make([]model.Artifact, 0, len(raw))
	for _, a := range raw {
		artifacts = append(artifacts, model.Artifact{Path: a.Path, URL: a.URL})
	}
	return artifacts, nil
}

// Download streams the artifact into destDir, named by the URL's last path
// segment. It writes to a temporary file and renames on completion, so a
// partial download is never visible at the returned path.
func (c *Client) Download(ctx context.Context, artifact model.Artifact, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.URL, nil)
	if err != nil {
		return "", fmt.Errorf("building download request for %s: %w", artifact.Path, err)
	}
	req.Header.Set("Circle-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", artifact.Path, err)
	}
	defer resp.Body.Close()

	// Anything but a plain 200 is an error page or a login redirect, never
	// artifact content.
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %d", artifact.Path, resp.StatusCode)
	}

	parsed, err := url.Parse(artifact.URL)
	if err != nil {
		return "", fmt.Errorf("parsing artifact URL %q: %w", artifact.URL, err)
	}
	dest := filepath.Join(destDir, path.Base(parsed.Path))

	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", artifact.Path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", artifact.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", artifact.Path, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("finalizing %s: %w", artifact.Path, err)
	}

	return dest, nil
}

// getJSON performs an authenticated GET and decodes the JSON response body.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
