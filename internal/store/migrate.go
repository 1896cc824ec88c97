package store

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_stages (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name             TEXT NOT NULL,
		company          TEXT NOT NULL DEFAULT '',
		owner            TEXT NOT NULL DEFAULT '',
		last_activity_at TIMESTAMPTZ,
		next_meeting_at  TIMESTAMPTZ,
		priority_score   DOUBLE PRECISION,
		priority_bucket  TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_bucket ON leads (priority_bucket, priority_score DESC)`,
	`CREATE TABLE IF NOT EXISTS deals (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title            TEXT NOT NULL,
		lead_id          UUID REFERENCES leads(id) ON DELETE SET NULL,
		owner            TEXT NOT NULL DEFAULT '',
		current_stage    TEXT NOT NULL,
		stage_entered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		sla_status       TEXT NOT NULL DEFAULT 'ok',
		closed           BOOLEAN NOT NULL DEFAULT false,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deals_open ON deals (current_stage) WHERE NOT closed`,
	`CREATE TABLE IF NOT EXISTS deal_stage_moves (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		deal_id    UUID NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
		from_stage TEXT NOT NULL,
		to_stage   TEXT NOT NULL,
		moved_by   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sla_policies (
		stage_id                TEXT PRIMARY KEY,
		max_hours               INTEGER NOT NULL DEFAULT 0,
		warning_threshold_hours INTEGER NOT NULL DEFAULT 0,
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transition_rules (
		id         BIGSERIAL PRIMARY KEY,
		from_stage TEXT NOT NULL,
		to_stage   TEXT NOT NULL,
		enabled    BOOLEAN NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (from_stage, to_stage)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_by TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the schema. Every statement is idempotent, so it is safe to
// run on each start.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
