package repo

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generations (
    id                  UUID PRIMARY KEY,
    user_id             UUID NOT NULL,
    product_description TEXT NOT NULL,
    reference_image_url TEXT,
    style               TEXT,
    status              TEXT NOT NULL DEFAULT 'queued',
    result              JSONB,
    error_message       TEXT,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at          TIMESTAMPTZ,
    finished_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_generations_queued
    ON generations (created_at) WHERE status = 'queued';

CREATE INDEX IF NOT EXISTS idx_generations_user
    ON generations (user_id, created_at DESC);
`

// EnsureSchema creates the generations table and its indexes if missing.
// Indexing only queued rows keeps the worker's oldest-first scan cheap as
// terminal rows accumulate.
func (r *GenerationRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
