package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/firas-apify/apify-facebook-ads-intel/config"
	"github.com/firas-apify/apify-facebook-ads-intel/extract"
	"github.com/firas-apify/apify-facebook-ads-intel/fetch"
	"github.com/firas-apify/apify-facebook-ads-intel/pipeline"
	"github.com/firas-apify/apify-facebook-ads-intel/seen"
	"github.com/firas-apify/apify-facebook-ads-intel/sink"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", getEnv("ADSINTEL_CONFIG", "adsintel.yaml"), "path to config file")
	dryRun := flag.Bool("dry-run", false, "validate configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if *dryRun {
		logger.Info("config OK", "targets", len(cfg.Queries()))
		return
	}

	store, err := seen.NewStore(cfg.StatePath)
	if err != nil {
		logger.Error("failed to open state store", "path", cfg.StatePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	fetcher := fetch.NewFetcher(fetch.NewHTTPSource(), &fetch.Config{
		MinInterval:  cfg.MinInterval(),
		MaxRetries:   cfg.Fetch.MaxRetries,
		RetryBackoff: fetch.DefaultConfig().RetryBackoff,
		MaxPages:     cfg.Fetch.MaxPages,
	})

	p := pipeline.New(
		fetcher,
		store,
		sink.New(cfg.OutputPath, store),
		pipeline.Config{
			Selectors:   extract.DefaultSelectors(),
			ClassifyAds: cfg.ClassifyAds,
		},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	failed := 0
	for _, q := range cfg.Queries() {
		summary, err := p.Run(ctx, q)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("run cancelled", "target", q.Target)
				break
			}
			logger.Error("run failed", "target", q.Target, "geo", q.Geo, "error", err)
			failed++
			continue
		}
		logger.Info("target done",
			"target", summary.Target,
			"new", summary.New,
			"updated", summary.Updated,
			"unchanged", summary.Unchanged,
			"parse_failures", summary.ParseFailures,
		)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
