package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adstudio/internal/domain"
)

// GenerationRepositoryPG implements domain.GenerationRepository on PostgreSQL.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

const generationColumns = `id, user_id, product_description, reference_image_url, style, status, result, error_message, created_at, started_at, finished_at`

// Create inserts a new queued generation record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	query := `
INSERT INTO generations (id, user_id, product_description, reference_image_url, style, status)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		gen.ID,
		gen.UserID,
		gen.ProductDescription,
		nullableText(gen.ReferenceImageURL),
		nullableText(gen.Style),
		gen.Status,
	)
	return err
}

// GetByID fetches a generation by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	query := `
SELECT ` + generationColumns + `
FROM generations
WHERE id = $1;
`
	return scanGeneration(r.pool.QueryRow(ctx, query, id))
}

// ListByUser returns the user's most recent generations.
func (r *GenerationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT ` + generationColumns + `
FROM generations
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gens []domain.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, *gen)
	}
	return gens, rows.Err()
}

// SelectNextQueued returns the oldest queued generation without mutating it.
func (r *GenerationRepositoryPG) SelectNextQueued(ctx context.Context) (*domain.Generation, error) {
	query := `
SELECT ` + generationColumns + `
FROM generations
WHERE status = $1
ORDER BY created_at ASC
LIMIT 1;
`
	gen, err := scanGeneration(r.pool.QueryRow(ctx, query, domain.GenerationStatusQueued))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoWork
	}
	return gen, err
}

// Claim conditionally transitions queued -> processing. The status predicate
// in the WHERE clause is the compare-and-swap that makes concurrent workers
// safe: only one UPDATE can match, the rest see zero rows and get
// ErrClaimConflict.
func (r *GenerationRepositoryPG) Claim(ctx context.Context, id string) (*domain.Generation, error) {
	query := `
UPDATE generations
SET status = $2, started_at = NOW()
WHERE id = $1 AND status = $3
RETURNING ` + generationColumns + `;
`
	gen, err := scanGeneration(r.pool.QueryRow(ctx, query, id, domain.GenerationStatusProcessing, domain.GenerationStatusQueued))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrClaimConflict
	}
	return gen, err
}

// SavePartialResult stores the result payload without changing status.
func (r *GenerationRepositoryPG) SavePartialResult(ctx context.Context, id string, result *domain.GenerationResult) error {
	payload, err := marshalResult(result)
	if err != nil {
		return err
	}
	query := `
UPDATE generations
SET result = $2
WHERE id = $1;
`
	_, err = r.pool.Exec(ctx, query, id, payload)
	return err
}

// MarkSucceeded transitions to succeeded with the final result.
func (r *GenerationRepositoryPG) MarkSucceeded(ctx context.Context, id string, result *domain.GenerationResult) error {
	payload, err := marshalResult(result)
	if err != nil {
		return err
	}
	query := `
UPDATE generations
SET status = $2, result = $3, finished_at = NOW()
WHERE id = $1;
`
	_, err = r.pool.Exec(ctx, query, id, domain.GenerationStatusSucceeded, payload)
	return err
}

// MarkFailed transitions to failed with the proximate error text.
func (r *GenerationRepositoryPG) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `
UPDATE generations
SET status = $2, error_message = $3, finished_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, domain.GenerationStatusFailed, errorMessage)
	return err
}

func marshalResult(result *domain.GenerationResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return payload, nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var gen domain.Generation
	var refImage, style, errMsg *string
	var resultJSON []byte
	if err := row.Scan(
		&gen.ID,
		&gen.UserID,
		&gen.ProductDescription,
		&refImage,
		&style,
		&gen.Status,
		&resultJSON,
		&errMsg,
		&gen.CreatedAt,
		&gen.StartedAt,
		&gen.FinishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if refImage != nil {
		gen.ReferenceImageURL = *refImage
	}
	if style != nil {
		gen.Style = *style
	}
	if errMsg != nil {
		gen.ErrorMessage = *errMsg
	}
	if len(resultJSON) > 0 {
		var result domain.GenerationResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		gen.Result = &result
	}
	return &gen, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
