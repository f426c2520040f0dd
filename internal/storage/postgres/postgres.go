package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hawkshop/hawker/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	ranked_by_ai BOOLEAN NOT NULL,
	fetch_time_ms BIGINT NOT NULL,
	top_price DOUBLE PRECISION NOT NULL,
	top_store TEXT,
	summary TEXT,
	sources JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.RunRecord) error {
	sourcesJSON, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	query := `
	INSERT INTO runs (
		id, query, item_count, ranked_by_ai, fetch_time_ms, top_price, top_store, summary, sources, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = b.pool.Exec(ctx, query,
		record.ID,
		record.Query,
		record.ItemCount,
		record.RankedByAI,
		record.FetchTimeMs,
		record.TopPrice,
		record.TopStore,
		record.Summary,
		sourcesJSON,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, query, item_count, ranked_by_ai, fetch_time_ms, top_price, top_store, summary, sources, created_at FROM runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND query = $%d`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.RankedByAI != nil {
		query += fmt.Sprintf(` AND ranked_by_ai = $%d`, paramCount)
		args = append(args, *filter.RankedByAI)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		var sourcesJSON []byte

		err := rows.Scan(
			&r.ID, &r.Query, &r.ItemCount, &r.RankedByAI, &r.FetchTimeMs,
			&r.TopPrice, &r.TopStore, &r.Summary, &sourcesJSON, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
