package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"fileplacer/internal/util/jsonutil"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS scan_reports (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    model TEXT NOT NULL DEFAULT '',
    repository_root TEXT NOT NULL DEFAULT '',
    misplaced_count INTEGER NOT NULL DEFAULT 0,
    body JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_reports_root ON scan_reports(repository_root);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, r StoredReport) error {
	id, err := normalizeID(r.ID)
	if err != nil {
		return err
	}
	r.ID = id
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	body, err := jsonutil.MarshalNoEscape(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO scan_reports (id, created_at, model, repository_root, misplaced_count, body)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id)
DO UPDATE SET created_at=EXCLUDED.created_at, model=EXCLUDED.model,
    repository_root=EXCLUDED.repository_root, misplaced_count=EXCLUDED.misplaced_count, body=EXCLUDED.body
`, id, r.CreatedAt, r.Model, r.Report.RepositoryRoot, r.Report.MisplacedCount, body)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (StoredReport, error) {
	id, err := normalizeID(id)
	if err != nil {
		return StoredReport{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return StoredReport{}, err
	}
	var body []byte
	err = s.db.QueryRowContext(ctx, `SELECT body FROM scan_reports WHERE id=$1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredReport{}, ErrNotFound
	}
	if err != nil {
		return StoredReport{}, err
	}
	var r StoredReport
	if err := json.Unmarshal(body, &r); err != nil {
		return StoredReport{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM scan_reports ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
