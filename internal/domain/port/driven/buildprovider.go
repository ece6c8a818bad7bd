package driven

import (
	"context"

	"github.com/embedlab/powergate/internal/domain/model"
)

// BuildProvider defines the driven port for the upstream build service. The
// target project is bound at adapter construction; the provider is eventually
// consistent, so a job for a given commit may not exist yet when queried.
type BuildProvider interface {
	// ListJobs returns recent jobs for the configured project, newest first.
	ListJobs(ctx context.Context) ([]model.BuildJob, error)

	// ListArtifacts returns the artifact listing for a completed build.
	ListArtifacts(ctx context.Context, buildNum int) ([]model.Artifact, error)

	// Download streams the artifact to a file in destDir named by the URL's
	// last path segment and returns the local path. The file is fully written
	// before the call returns; partial content is never left at the returned
	// path.
	Download(ctx context.Context, artifact model.Artifact, destDir string) (string, error)
}
