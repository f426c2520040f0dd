// Package fanout runs all enabled source adapters concurrently, each under
// its own timeout, and collects a per-source report regardless of outcome.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hawkshop/hawker/internal/metrics"
	"github.com/hawkshop/hawker/internal/product"
	"github.com/hawkshop/hawker/internal/source"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single adapter invocation.
const DefaultTimeout = 6 * time.Second

// Batch pairs one adapter's report with the items it returned. Batches come
// back in adapter order, so merge priority is stable regardless of which
// adapter finished first.
type Batch struct {
	Report product.SourceReport
	Items  []product.Product
}

// Executor invokes adapters concurrently with independent deadlines.
type Executor struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A zero timeout selects DefaultTimeout.
func NewExecutor(timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		timeout: timeout,
		logger:  logger,
	}
}

type fetchOutcome struct {
	items []product.Product
	err   error
}

// Run fans out to every adapter and waits for all of them to settle. A
// failed or timed-out adapter contributes zero items and an error report; it
// never aborts its siblings. Total wall time tracks the slowest adapter, not
// the sum, and is bounded by the configured timeout.
func (e *Executor) Run(ctx context.Context, adapters []source.Adapter, query string) ([]Batch, time.Duration) {
	start := time.Now()
	batches := make([]Batch, len(adapters))

	g := new(errgroup.Group)
	for i, a := range adapters {
		g.Go(func() error {
			batches[i] = e.runOne(ctx, a, query)
			return nil
		})
	}
	_ = g.Wait()

	return batches, time.Since(start)
}

func (e *Executor) runOne(ctx context.Context, a source.Adapter, query string) Batch {
	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	// The fetch runs in its own goroutine so a hung adapter can be abandoned
	// at deadline: the buffered channel lets its late write complete and be
	// discarded instead of merged.
	outcomeCh := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			// Adapters must not panic; if one does anyway, treat it as a
			// source error rather than taking the whole run down.
			if r := recover(); r != nil {
				outcomeCh <- fetchOutcome{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		items, err := a.Fetch(fetchCtx, query)
		outcomeCh <- fetchOutcome{items: items, err: err}
	}()

	report := product.SourceReport{
		Name: a.Name(),
		Kind: a.Kind(),
	}

	var items []product.Product
	select {
	case <-fetchCtx.Done():
		report.Status = product.StatusError
		report.Err = fmt.Sprintf("timed out after %s", e.timeout)
		e.logger.Warn("source timed out", "source", a.Name(), "timeout", e.timeout)
	case outcome := <-outcomeCh:
		switch {
		case outcome.err != nil:
			report.Status = product.StatusError
			report.Err = outcome.err.Error()
			e.logger.Warn("source failed", "source", a.Name(), "err", outcome.err)
		case len(outcome.items) == 0:
			report.Status = product.StatusEmpty
		default:
			report.Status = product.StatusOK
			items = outcome.items
		}
	}

	report.Count = len(items)
	metrics.RecordSourceFetch(a.Name(), string(report.Status), time.Since(start))

	return Batch{Report: report, Items: items}
}
