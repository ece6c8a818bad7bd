package driven

import (
	"context"

	"github.com/embedlab/powergate/internal/domain/model"
)

// RunStore defines the driven port for run-history persistence. Store errors
// are non-fatal to a pipeline run; the controller logs and continues.
type RunStore interface {
	// Insert records a newly started run.
	Insert(ctx context.Context, rec model.RunRecord) error
	// Finalize updates the run with its terminal fields (status, conclusion,
	// failure class, measurement, links, completion time).
	Finalize(ctx context.Context, rec model.RunRecord) error
	// GetByID returns the run with the given ID, or nil when absent.
	GetByID(ctx context.Context, id string) (*model.RunRecord, error)
	// ListRecent returns up to limit runs ordered by start time descending.
	ListRecent(ctx context.Context, limit int) ([]model.RunRecord, error)
}
