package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/pipeline"
	"github.com/docpulse/docpulse/internal/social"
	"github.com/docpulse/docpulse/internal/store"
	"github.com/docpulse/docpulse/pkg/anthropic"
	"github.com/docpulse/docpulse/pkg/socialapi"
)

// env bundles the wired application components shared by all commands.
type env struct {
	Store     store.Store
	Ingestor  *pipeline.Ingestor
	Analyzer  *pipeline.Analyzer
	Fetcher   *social.Fetcher
	Scheduler *social.Scheduler
	Accounts  *social.AccountAnalyzer
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	ai := anthropic.NewClient(cfg.Anthropic.Key)

	apiOpts := []socialapi.Option{socialapi.WithRateLimit(cfg.Social.RatePerSec)}
	if cfg.Social.BaseURL != "" {
		apiOpts = append(apiOpts, socialapi.WithBaseURL(cfg.Social.BaseURL))
	}
	api := socialapi.NewClient(cfg.Social.BearerToken, apiOpts...)

	analyzer := pipeline.NewAnalyzer(st, ai, cfg.Anthropic, cfg.Analysis)
	fetcher := social.NewFetcher(st, api, social.EmbeddedSamples(), cfg.Social)

	return &env{
		Store:     st,
		Ingestor:  pipeline.NewIngestor(st, cfg.Ingest),
		Analyzer:  analyzer,
		Fetcher:   fetcher,
		Scheduler: social.NewScheduler(fetcher, time.Duration(cfg.Social.FetchIntervalMins)*time.Minute),
		Accounts:  social.NewAccountAnalyzer(st, analyzer, cfg.Social),
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
