// Package driven defines the driven ports: interfaces the application core
// depends on, implemented by outbound adapters.
package driven

import (
	"context"

	"github.com/embedlab/powergate/internal/domain/model"
)

// CheckReporter defines the driven port for reporting check-run state to the
// hosting platform. The remote check run is append-only from this side:
// created once, updated through queued to completed, never deleted.
type CheckReporter interface {
	// CreateCheckRun creates a new check run in queued status for the given
	// head SHA and returns its remote identifier. Duplicate creations for the
	// same SHA are acceptable; deduplication is the remote system's concern.
	CreateCheckRun(ctx context.Context, repoFullName, headSHA string) (int64, error)

	// UpdateCheckRun mutates an existing check run. Conclusion and output may
	// be empty/nil for non-terminal updates.
	UpdateCheckRun(ctx context.Context, repoFullName string, id int64, status model.CheckStatus, conclusion model.CheckConclusion, output *model.CheckOutput) error
}
