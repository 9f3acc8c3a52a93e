package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	_ "github.com/lib/pq"
)

const editLogSchemaSQL = `
CREATE TABLE IF NOT EXISTS media_edit_logs (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	media_id TEXT NOT NULL,
	result_media_id TEXT NOT NULL,
	processed_locally BOOLEAN NOT NULL,
	fallback TEXT NOT NULL DEFAULT '',
	pixels_processed BIGINT NOT NULL DEFAULT 0,
	output_bytes BIGINT NOT NULL DEFAULT 0,
	compute_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS media_edit_logs_media_id_idx ON media_edit_logs (media_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS media_edit_logs_session_id_idx ON media_edit_logs (session_id);
`

type PostgresEditLogStore struct {
	db *sql.DB
}

func NewPostgresEditLogStore(ctx context.Context, dsn string) (*PostgresEditLogStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresEditLogStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresEditLogStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, editLogSchemaSQL); err != nil {
		return fmt.Errorf("ensure media_edit_logs schema: %w", err)
	}
	return nil
}

func (s *PostgresEditLogStore) Close() error {
	return s.db.Close()
}

func (s *PostgresEditLogStore) CreateEditLog(ctx context.Context, entry domain.EditLog) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_edit_logs (
			session_id, user_id, media_id, result_media_id, processed_locally,
			fallback, pixels_processed, output_bytes, compute_time_ms, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		entry.SessionID,
		entry.UserID,
		entry.MediaID,
		entry.ResultMediaID,
		entry.ProcessedLocally,
		entry.Fallback,
		entry.PixelsProcessed,
		entry.OutputBytes,
		entry.ComputeTimeMS,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert edit log: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert edit log: %w", err)
	}
	if inserted == 0 {
		return ErrEditLogExists
	}
	return nil
}

// ListByMedia returns the most recent saves for mediaID, newest first.
func (s *PostgresEditLogStore) ListByMedia(ctx context.Context, mediaID string, limit int) ([]domain.EditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, user_id, media_id, result_media_id, processed_locally,
		        fallback, pixels_processed, output_bytes, compute_time_ms, created_at
		 FROM media_edit_logs
		 WHERE media_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		mediaID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query edit logs: %w", err)
	}
	defer rows.Close()

	var out []domain.EditLog
	for rows.Next() {
		var e domain.EditLog
		if err := rows.Scan(
			&e.SessionID,
			&e.UserID,
			&e.MediaID,
			&e.ResultMediaID,
			&e.ProcessedLocally,
			&e.Fallback,
			&e.PixelsProcessed,
			&e.OutputBytes,
			&e.ComputeTimeMS,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan edit log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit logs: %w", err)
	}
	return out, nil
}
