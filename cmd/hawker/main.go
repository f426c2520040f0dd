// Package main provides the hawker CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/fanout"
	"github.com/hawkshop/hawker/internal/genai"
	"github.com/hawkshop/hawker/internal/metrics"
	"github.com/hawkshop/hawker/internal/pipeline"
	"github.com/hawkshop/hawker/internal/ranking"
	"github.com/hawkshop/hawker/internal/report"
	"github.com/hawkshop/hawker/internal/scraper"
	"github.com/hawkshop/hawker/internal/server"
	"github.com/hawkshop/hawker/internal/source"
	"github.com/hawkshop/hawker/internal/storage"
	"github.com/hawkshop/hawker/internal/storage/jsonbackend"
	"github.com/hawkshop/hawker/internal/storage/postgres"
	"github.com/hawkshop/hawker/internal/storage/sqlite"
	"github.com/hawkshop/hawker/internal/verdict"
	"github.com/hawkshop/hawker/pkg/httpclient"
	"github.com/hawkshop/hawker/pkg/proxy"
	"github.com/hawkshop/hawker/pkg/ratelimit"
	"github.com/hawkshop/hawker/pkg/useragent"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the hawker CLI.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "hawker",
		Short:   "Aggregate and rank shopping results across storefronts",
		Long:    "Hawker searches configured storefronts and shopping APIs concurrently, merges and deduplicates the listings, and ranks them by relevance and value.",
		Version: version,
	}

	rootCmd.SetVersionTemplate("hawker version {{.Version}}\n")

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var configPath string
	var format string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one aggregation and print the ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			logger := newLogger(verbose)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.HasSources() {
				return fmt.Errorf("no sources configured: add sites or enable the aggregator in the config file")
			}

			pipe, store, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := pipe.Run(ctx, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return report.WriteJSON(out, result)
			case "csv":
				return report.WriteCSV(out, result)
			case "text":
				return report.WriteText(out, result)
			default:
				return fmt.Errorf("unknown format %q: must be text, json or csv", format)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, csv)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(verbose)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			pipe, store, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			metricsSrv := metrics.Start(cfg.Server.MetricsPort)
			srv := server.NewServer(pipe, store, cfg.Server, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx := context.Background()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn("server shutdown failed", "err", err)
			}
			return metricsSrv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// buildPipeline assembles the aggregation pipeline from configuration.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, storage.Backend, error) {
	var adapters []source.Adapter

	if len(cfg.Sources.Sites) > 0 {
		fetchCfg := scraper.FetchConfig{
			Timeout:      cfg.Fetch.Timeout,
			MaxRedirects: cfg.Fetch.MaxRedirects,
			UseCookieJar: true,
			UAPool:       useragent.NewPool(nil),
			Fingerprint:  httpclient.ParseProfile(cfg.Fetch.Fingerprint),
		}
		if len(cfg.Fetch.Proxies) > 0 {
			pool := proxy.NewPool(proxy.Config{})
			if err := pool.Add(cfg.Fetch.Proxies...); err != nil {
				return nil, nil, err
			}
			fetchCfg.ProxyPool = pool
		}
		if cfg.Fetch.RequestsPerSecond > 0 {
			fetchCfg.Limiter = ratelimit.NewLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Jitter)
		}

		fetcher, err := scraper.NewFetcher(fetchCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create fetcher: %w", err)
		}

		for _, site := range cfg.Sources.Sites {
			adapters = append(adapters, source.NewSiteAdapter(site, fetcher, logger))
		}
	}

	// Aggregator goes last so direct sites keep merge priority.
	if cfg.Sources.Aggregator.Enabled {
		agg := cfg.Sources.Aggregator
		adapters = append(adapters, source.NewSerpAdapter(agg.APIKey, agg.BaseURL, agg.RedirectHost, logger))
	}

	ai := genai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	pipe := pipeline.New(cfg, ai.Configured(), pipeline.Deps{
		Adapters: adapters,
		Executor: fanout.NewExecutor(cfg.Fetch.Timeout, logger),
		Scorer:   ranking.NewScorer(ai, cfg.Ranking.IrrelevancePenalty, logger),
		Composer: ranking.NewComposer(cfg.Ranking),
		Verdict:  verdict.NewGenerator(ai, cfg.Ranking.VerdictCandidates, logger),
		Store:    store,
		Logger:   logger,
	})

	return pipe, store, nil
}

// openStorage opens the configured run-history backend, or returns nil when
// history is disabled.
func openStorage(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "hawker.db"
		}
		return sqlite.New(dsn)
	case "postgres":
		return postgres.New(context.Background(), cfg.DSN)
	case "json":
		return jsonbackend.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
