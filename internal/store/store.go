// Package store persists processed documents in PostgreSQL. Only
// PHI-free fields are written: the original text is never stored and the
// summaries of unredacted runs are dropped.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
)

const table = "processed_documents"

// Schema creates the results table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS processed_documents (
		id               TEXT PRIMARY KEY,
		source           TEXT NOT NULL DEFAULT '',
		redacted         BOOLEAN NOT NULL,
		redacted_text    TEXT NOT NULL DEFAULT '',
		entity_count     INTEGER NOT NULL DEFAULT 0,
		entities_by_type JSONB NOT NULL DEFAULT '{}',
		summaries        JSONB NOT NULL DEFAULT '{}',
		key_points       JSONB NOT NULL DEFAULT '[]',
		degraded         BOOLEAN NOT NULL DEFAULT false,
		processed_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_processed_documents_processed_at
		ON processed_documents (processed_at DESC)`,
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"id", "source", "redacted", "redacted_text", "entity_count",
	"entities_by_type", "summaries", "key_points", "degraded", "processed_at",
}

// Filter narrows List.
type Filter struct {
	Limit  int
	Offset int
	// Redacted, when set, keeps only results with that redaction state.
	Redacted *bool
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "result-store"),
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

// Save upserts res.
func (s *Store) Save(ctx context.Context, res *pipeline.Result) error {
	query, args, err := saveQuery(res.WithoutPHI())
	if err != nil {
		return err
	}
	if _, err := s.db.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving result %s: %w", res.DocumentID, err)
	}
	s.logger.Debug("result saved", "document_id", res.DocumentID, "redacted", res.Redacted)
	return nil
}

// Get loads one result. A missing ID yields ErrDocumentNotFound.
func (s *Store) Get(ctx context.Context, id string) (*pipeline.Result, error) {
	query, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}
	res, err := scanResult(s.db.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading result %s: %w", id, err)
	}
	return res, nil
}

// List returns results newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*pipeline.Result, error) {
	query, args, err := listQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	results := make([]*pipeline.Result, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Count returns the number of stored results matching the filter's
// redaction state.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	b := psql.Select("COUNT(*)").From(table)
	if f.Redacted != nil {
		b = b.Where(sq.Eq{"redacted": *f.Redacted})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := s.db.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return n, nil
}

func saveQuery(res *pipeline.Result) (string, []any, error) {
	entities, err := json.Marshal(orEmpty(res.EntitiesByType))
	if err != nil {
		return "", nil, fmt.Errorf("encoding entity counts: %w", err)
	}
	summaries, err := json.Marshal(res.Summaries)
	if err != nil {
		return "", nil, fmt.Errorf("encoding summaries: %w", err)
	}
	keyPoints := res.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	points, err := json.Marshal(keyPoints)
	if err != nil {
		return "", nil, fmt.Errorf("encoding key points: %w", err)
	}
	processedAt := res.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	query, args, err := psql.Insert(table).
		Columns(columns...).
		Values(res.DocumentID, res.Source, res.Redacted, res.RedactedText, res.EntityCount,
			string(entities), string(summaries), string(points), res.Degraded(), processedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			redacted = EXCLUDED.redacted,
			redacted_text = EXCLUDED.redacted_text,
			entity_count = EXCLUDED.entity_count,
			entities_by_type = EXCLUDED.entities_by_type,
			summaries = EXCLUDED.summaries,
			key_points = EXCLUDED.key_points,
			degraded = EXCLUDED.degraded,
			processed_at = EXCLUDED.processed_at`).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building save query: %w", err)
	}
	return query, args, nil
}

func listQuery(f Filter) (string, []any, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	b := psql.Select(columns...).From(table).
		OrderBy("processed_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if f.Redacted != nil {
		b = b.Where(sq.Eq{"redacted": *f.Redacted})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building list query: %w", err)
	}
	return query, args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*pipeline.Result, error) {
	var (
		res                         pipeline.Result
		entities, summaries, points []byte
		degraded                    bool
	)
	err := row.Scan(&res.DocumentID, &res.Source, &res.Redacted, &res.RedactedText, &res.EntityCount,
		&entities, &summaries, &points, &degraded, &res.ProcessedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entities, &res.EntitiesByType); err != nil {
		return nil, fmt.Errorf("decoding entity counts: %w", err)
	}
	if err := json.Unmarshal(summaries, &res.Summaries); err != nil {
		return nil, fmt.Errorf("decoding summaries: %w", err)
	}
	if err := json.Unmarshal(points, &res.KeyPoints); err != nil {
		return nil, fmt.Errorf("decoding key points: %w", err)
	}
	return &res, nil
}

func orEmpty(m map[phi.Type]int) map[phi.Type]int {
	if m == nil {
		return map[phi.Type]int{}
	}
	return m
}
