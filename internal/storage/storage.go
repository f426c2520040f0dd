// Package storage persists a history of aggregation runs. Persistence is
// optional observability: the pipeline works identically with no backend
// configured.
package storage

import (
	"context"
	"time"

	"github.com/hawkshop/hawker/internal/product"
)

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID          string                 `json:"id"`
	Query       string                 `json:"query"`
	ItemCount   int                    `json:"item_count"`
	RankedByAI  bool                   `json:"ranked_by_ai"`
	FetchTimeMs int64                  `json:"fetch_time_ms"`
	TopPrice    float64                `json:"top_price"`
	TopStore    string                 `json:"top_store"`
	Summary     string                 `json:"summary"`
	Sources     []product.SourceReport `json:"sources"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Filter allows querying for specific RunRecords.
type Filter struct {
	Query      string
	RankedByAI *bool
	Since      *time.Time
	Limit      int
	Offset     int
}

// Backend defines the interface for storing and querying run history.
type Backend interface {
	Save(ctx context.Context, record *RunRecord) error
	Query(ctx context.Context, filter Filter) ([]*RunRecord, error)
	Close() error
}
