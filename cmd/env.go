package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/adapter"
	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/fallback"
	"github.com/pricewaze/ingest-cli/internal/fetcher"
	"github.com/pricewaze/ingest-cli/internal/pipeline"
	"github.com/pricewaze/ingest-cli/internal/store"
)

// ingestEnv holds the store, rule tables, pipeline, resolver, and adapter
// registry shared by the ingest/serve/zones/import/status commands.
type ingestEnv struct {
	Store    store.Store
	Rules    *config.Rules
	Pipeline *pipeline.Pipeline
	Resolver *fallback.Resolver
	Adapters *adapter.Registry
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Driver == "postgres" && cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store database_url is required (PRICEWAZE_STORE_DATABASE_URL)")
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initEnv sets up the store, loads the market rules, and builds the
// pipeline, resolver, and adapter registry. Callers should defer env.Close().
func initEnv(ctx context.Context) (*ingestEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := config.LoadRules()
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load market rules")
	}

	reg := adapter.NewRegistry()
	reg.Register(adapter.NewUserAdapter(st))

	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second

	if cfg.Fetch.APIBaseURL != "" {
		client := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout: timeout,
			Headers: map[string]string{"Authorization": "Bearer " + cfg.Fetch.APIKey},
		})
		reg.Register(adapter.NewAPIAdapter(cfg.Fetch.APIBaseURL, cfg.Fetch.APIKey, client))
		zap.L().Info("paid api adapter enabled")
	}

	if cfg.Fetch.FTPAddr != "" {
		ftpClient := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			User:     cfg.Fetch.FTPUser,
			Password: cfg.Fetch.FTPPassword,
			Timeout:  timeout,
		})
		reg.Register(adapter.NewOpenDataAdapter(cfg.Fetch.FTPAddr, ftpClient))
		zap.L().Info("open data adapter enabled")
	}

	return &ingestEnv{
		Store:    st,
		Rules:    rules,
		Pipeline: pipeline.New(st, rules, cfg.Ingest),
		Resolver: fallback.New(rules, st),
		Adapters: reg,
	}, nil
}
