// Package metrics exposes prometheus instrumentation for the aggregation
// pipeline and a /metrics HTTP server for serve mode.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawker_source_fetch_total",
			Help: "Total number of source adapter invocations by outcome",
		},
		[]string{"source", "status"},
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hawker_source_fetch_duration_seconds",
			Help:    "Duration of source adapter invocations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 4, 6, 10},
		},
		[]string{"source"},
	)

	ScoringFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawker_scoring_fallback_total",
			Help: "Total number of runs that fell back to heuristic ranking",
		},
		[]string{"reason"},
	)

	VerdictFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawker_verdict_fallback_total",
			Help: "Total number of runs that used the template verdict",
		},
		[]string{"reason"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawker_runs_total",
			Help: "Total pipeline runs by terminal state",
		},
		[]string{"state"},
	)
)

// RecordSourceFetch updates the per-source counters for one adapter call.
func RecordSourceFetch(source, status string, d time.Duration) {
	SourceFetchTotal.WithLabelValues(source, status).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordRun counts a completed pipeline run by its terminal state.
func RecordRun(state string) {
	RunsTotal.WithLabelValues(state).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
