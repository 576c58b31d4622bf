package domain

import "context"

// GenerationRepository defines persistence for generation records. The
// worker-facing half (SelectNextQueued through MarkFailed) is the pipeline's
// entire contract with the store; claims must be atomic against concurrent
// callers.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Generation, error)

	// SelectNextQueued returns the oldest queued generation without
	// mutating it, or ErrNoWork.
	SelectNextQueued(ctx context.Context) (*Generation, error)
	// Claim transitions queued -> processing and stamps StartedAt, but
	// only if the record is still queued. Returns ErrClaimConflict when
	// another worker won the race.
	Claim(ctx context.Context, id string) (*Generation, error)
	// SavePartialResult stores the result payload without touching status.
	SavePartialResult(ctx context.Context, id string, result *GenerationResult) error
	// MarkSucceeded transitions to succeeded, stamping FinishedAt.
	MarkSucceeded(ctx context.Context, id string, result *GenerationResult) error
	// MarkFailed transitions to failed with the proximate error text.
	MarkFailed(ctx context.Context, id string, errorMessage string) error
}
