package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hawkshop/hawker/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	ranked_by_ai BOOLEAN NOT NULL,
	fetch_time_ms INTEGER NOT NULL,
	top_price REAL NOT NULL,
	top_store TEXT,
	summary TEXT,
	sources TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.RunRecord) error {
	sourcesJSON, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	query := `
	INSERT INTO runs (
		id, query, item_count, ranked_by_ai, fetch_time_ms, top_price, top_store, summary, sources, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		record.ID,
		record.Query,
		record.ItemCount,
		record.RankedByAI,
		record.FetchTimeMs,
		record.TopPrice,
		record.TopStore,
		record.Summary,
		string(sourcesJSON),
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, query, item_count, ranked_by_ai, fetch_time_ms, top_price, top_store, summary, sources, created_at FROM runs WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.RankedByAI != nil {
		query += ` AND ranked_by_ai = ?`
		args = append(args, *filter.RankedByAI)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		var sourcesJSON string

		err := rows.Scan(
			&r.ID, &r.Query, &r.ItemCount, &r.RankedByAI, &r.FetchTimeMs,
			&r.TopPrice, &r.TopStore, &r.Summary, &sourcesJSON, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if err := json.Unmarshal([]byte(sourcesJSON), &r.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return records, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
