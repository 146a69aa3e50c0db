package recordings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog is a Catalog stored in the recordings table.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

const upsertRecording = `
INSERT INTO recordings (target_id, name, state, event_spec, start_time, duration_ms, size_bytes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (target_id, name) DO UPDATE SET
    state       = EXCLUDED.state,
    event_spec  = EXCLUDED.event_spec,
    start_time  = EXCLUDED.start_time,
    duration_ms = EXCLUDED.duration_ms,
    size_bytes  = EXCLUDED.size_bytes,
    updated_at  = EXCLUDED.updated_at`

const selectRecordings = `
SELECT target_id, name, state, event_spec, start_time, duration_ms, size_bytes, updated_at
FROM recordings`

func upsertArgs(r Recording) []any {
	startTime := pgtype.Timestamptz{Time: r.StartTime, Valid: !r.StartTime.IsZero()}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return []any{
		r.TargetID, r.Name, string(r.State), r.EventSpec, startTime,
		r.Duration.Milliseconds(), r.SizeBytes, updatedAt,
	}
}

func (p *PostgresCatalog) Replace(ctx context.Context, targetID string, recs []Recording) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	names := make([]string, 0, len(recs))
	batch := &pgx.Batch{}
	for _, r := range recs {
		r.TargetID = targetID
		names = append(names, r.Name)
		batch.Queue(upsertRecording, upsertArgs(r)...)
	}
	batch.Queue(`DELETE FROM recordings WHERE target_id = $1 AND NOT (name = ANY($2))`, targetID, names)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to replace recordings for %s: %w", targetID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit recordings for %s: %w", targetID, err)
	}
	return nil
}

func (p *PostgresCatalog) Upsert(ctx context.Context, rec Recording) error {
	if rec.TargetID == "" || rec.Name == "" {
		return fmt.Errorf("recording needs a target id and a name")
	}
	if _, err := p.pool.Exec(ctx, upsertRecording, upsertArgs(rec)...); err != nil {
		return fmt.Errorf("failed to upsert recording: %w", err)
	}
	return nil
}

func scanRecording(row pgx.CollectableRow) (Recording, error) {
	var (
		r          Recording
		state      string
		startTime  pgtype.Timestamptz
		durationMS int64
	)
	if err := row.Scan(&r.TargetID, &r.Name, &state, &r.EventSpec, &startTime, &durationMS, &r.SizeBytes, &r.UpdatedAt); err != nil {
		return Recording{}, err
	}
	r.State = State(state)
	if startTime.Valid {
		r.StartTime = startTime.Time
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, nil
}

func (p *PostgresCatalog) List(ctx context.Context, targetID string) ([]Recording, error) {
	rows, err := p.pool.Query(ctx, selectRecordings+` WHERE target_id = $1 ORDER BY name`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecording)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recordings: %w", err)
	}
	return recs, nil
}

func (p *PostgresCatalog) Get(ctx context.Context, targetID, name string) (Recording, error) {
	rows, err := p.pool.Query(ctx, selectRecordings+` WHERE target_id = $1 AND name = $2`, targetID, name)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to get recording: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecording)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recording{}, ErrNotFound
	}
	if err != nil {
		return Recording{}, fmt.Errorf("failed to scan recording: %w", err)
	}
	return rec, nil
}

func (p *PostgresCatalog) DeleteTarget(ctx context.Context, targetID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM recordings WHERE target_id = $1`, targetID); err != nil {
		return fmt.Errorf("failed to delete recordings for %s: %w", targetID, err)
	}
	return nil
}
