// Package pipeline orchestrates one aggregation run: fan out to sources,
// merge and deduplicate, rank, summarize, and persist. Every stage degrades
// instead of failing, so a run with a live query always yields a usable
// result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/fanout"
	"github.com/hawkshop/hawker/internal/merge"
	"github.com/hawkshop/hawker/internal/metrics"
	"github.com/hawkshop/hawker/internal/product"
	"github.com/hawkshop/hawker/internal/ranking"
	"github.com/hawkshop/hawker/internal/source"
	"github.com/hawkshop/hawker/internal/storage"
	"github.com/hawkshop/hawker/internal/verdict"
)

// storeLabeled is satisfied by adapters that can name the storefront they
// scrape; the label drives aggregator duplicate removal in the merger.
type storeLabeled interface {
	Store() string
}

// Deps bundles the collaborators a Pipeline needs. Store and Logger may be
// nil; everything else is required.
type Deps struct {
	Adapters []source.Adapter
	Executor *fanout.Executor
	Scorer   *ranking.Scorer
	Composer *ranking.Composer
	Verdict  *verdict.Generator
	Store    storage.Backend
	Logger   *slog.Logger
}

// Pipeline runs the full search-to-verdict flow for one query at a time.
// It is safe for concurrent use; all per-run state lives on the stack.
type Pipeline struct {
	ranking      config.RankingConfig
	redirectHost string
	aiEnabled    bool
	deps         Deps
}

// New creates a Pipeline. aiEnabled records whether a scoring provider is
// configured; it feeds the strategy metadata, not control flow, since the
// scorer reports its own availability per run.
func New(cfg *config.Config, aiEnabled bool, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		ranking:      cfg.Ranking,
		redirectHost: cfg.Sources.Aggregator.RedirectHost,
		aiEnabled:    aiEnabled,
		deps:         deps,
	}
}

// Run executes one aggregation for the query. The only error conditions are
// an empty query and a cancelled context; source failures, scoring failures
// and verdict failures all degrade into the returned result instead.
func (p *Pipeline) Run(ctx context.Context, query string) (*product.AggregationResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &product.AggregationResult{
		Query:     query,
		CreatedAt: time.Now().UTC(),
	}
	result.Metadata.Strategy = p.strategy()

	if len(p.deps.Adapters) == 0 {
		result.Summary = "No sources are configured. Add at least one site or enable the aggregator."
		metrics.RecordRun("no_sources")
		return result, nil
	}

	batches, fetchTime := p.deps.Executor.Run(ctx, p.deps.Adapters, query)
	result.Metadata.FetchTime = fetchTime.Milliseconds()
	for _, b := range batches {
		result.Metadata.Sources = append(result.Metadata.Sources, b.Report)
	}

	merged := merge.Merge(p.mergeBatches(batches))
	if len(merged) == 0 {
		result.Summary = fmt.Sprintf("No results found for %q. Try a broader query.", query)
		metrics.RecordRun("empty")
		p.save(ctx, result)
		return result, nil
	}

	// Rank the cheapest topN; the tail keeps price order below them.
	ranking.SortByPrice(merged)
	cut := p.ranking.TopN
	if cut > len(merged) {
		cut = len(merged)
	}
	slice, rest := merged[:cut], merged[cut:]
	ranking.Annotate(slice)

	scoring := p.deps.Scorer.Score(ctx, query, slice)
	if scoring.Failed() {
		p.deps.Logger.Info("ranking degraded to price sort", "query", query, "reason", scoring.Reason)
		metrics.ScoringFallbackTotal.WithLabelValues(fallbackReason(scoring.Reason)).Inc()
	}

	ranked := p.deps.Composer.Rank(query, slice, rest, scoring)
	rankedByAI := !scoring.Failed()

	note := ""
	if !rankedByAI {
		note = "Results are sorted by price; smart ranking was unavailable for this search."
	}
	summary, _ := p.deps.Verdict.Generate(ctx, query, ranked, note)

	result.Items = ranked
	result.Summary = summary
	result.Metadata.TotalResults = len(ranked)
	result.Metadata.RankedByAI = rankedByAI
	if len(ranked) > 0 {
		result.Metadata.TopPrice = ranked[0].Price
		result.Metadata.TopStore = ranked[0].Store
	}
	for _, item := range ranked {
		if item.LinkClass(p.redirectHost) == product.LinkRedirect {
			result.Metadata.RedirectLinks++
		} else {
			result.Metadata.DirectLinks++
		}
	}

	if rankedByAI {
		metrics.RecordRun("ok")
	} else {
		metrics.RecordRun("degraded")
	}
	p.save(ctx, result)

	return result, nil
}

// mergeBatches converts fan-out batches into merge input, preserving adapter
// order so direct sites keep priority over the aggregator.
func (p *Pipeline) mergeBatches(batches []fanout.Batch) []merge.Batch {
	out := make([]merge.Batch, 0, len(batches))
	for i, b := range batches {
		mb := merge.Batch{
			Kind:  b.Report.Kind,
			Items: b.Items,
		}
		if labeled, ok := p.deps.Adapters[i].(storeLabeled); ok {
			mb.Store = labeled.Store()
		}
		out = append(out, mb)
	}
	return out
}

func (p *Pipeline) strategy() product.Strategy {
	s := product.Strategy{AIRanking: p.aiEnabled}
	for _, a := range p.deps.Adapters {
		switch a.Kind() {
		case product.KindDirect:
			s.Sites = true
		case product.KindAggregator:
			s.Aggregator = true
		}
	}
	return s
}

// save persists the run record when a backend is configured. Persistence is
// observability; a failed save is logged and the result still returned.
func (p *Pipeline) save(ctx context.Context, result *product.AggregationResult) {
	if p.deps.Store == nil {
		return
	}

	record := &storage.RunRecord{
		ID:          uuid.New().String(),
		Query:       result.Query,
		ItemCount:   result.Metadata.TotalResults,
		RankedByAI:  result.Metadata.RankedByAI,
		FetchTimeMs: result.Metadata.FetchTime,
		TopPrice:    result.Metadata.TopPrice,
		TopStore:    result.Metadata.TopStore,
		Summary:     result.Summary,
		Sources:     result.Metadata.Sources,
		CreatedAt:   result.CreatedAt,
	}
	if err := p.deps.Store.Save(ctx, record); err != nil {
		p.deps.Logger.Warn("failed to save run record", "query", result.Query, "err", err)
	}
}

// fallbackReason maps a scoring failure onto a bounded metric label.
func fallbackReason(reason string) string {
	switch {
	case strings.Contains(reason, "not configured"):
		return "unconfigured"
	case strings.Contains(reason, "malformed"):
		return "malformed_payload"
	default:
		return "provider_error"
	}
}
