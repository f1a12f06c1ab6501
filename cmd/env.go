package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/labelkit/zeroshot/internal/fetcher"
	"github.com/labelkit/zeroshot/internal/scorer"
	"github.com/labelkit/zeroshot/internal/store"
	anthropicpkg "github.com/labelkit/zeroshot/pkg/anthropic"
	"github.com/labelkit/zeroshot/pkg/huggingface"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "zeroshot.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initScorer builds the scoring backend selected by config. multiLabel only
// affects the Hugging Face backend; the LLM backend always scores labels
// independently.
func initScorer(multiLabel bool) (scorer.Scorer, error) {
	var backend scorer.Scorer
	switch cfg.Scorer.Backend {
	case "huggingface":
		client := huggingface.NewClient(cfg.HuggingFace.Key,
			huggingface.WithBaseURL(cfg.HuggingFace.BaseURL),
			huggingface.WithModel(cfg.HuggingFace.Model),
		)
		backend = scorer.NewHFScorer(client, multiLabel)
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic.key is required for the anthropic backend (ZEROSHOT_ANTHROPIC_KEY)")
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		backend = scorer.NewLLMScorer(client, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens))
	default:
		return nil, eris.Errorf("unsupported scorer backend: %s", cfg.Scorer.Backend)
	}
	return scorer.NewRetryScorer(backend, scorer.DefaultRetryConfig()), nil
}

func initFetchers() (*fetcher.HTTPFetcher, *fetcher.FTPFetcher) {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:    timeout,
		MaxRetries: cfg.Fetch.MaxRetries,
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Fetch.RateLimit), cfg.Fetch.Burst),
	})
	return httpFetcher, fetcher.NewFTPFetcher(timeout)
}
