package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/opsdash/internal/dashboard"
	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
	"github.com/starford/opsdash/internal/snapshot"
	"github.com/starford/opsdash/internal/source"
)

// components is the object graph shared by every runner.
type components struct {
	logger   *slog.Logger
	provider source.Provider
	cache    *snapshot.Cache
	history  *history.DB
	service  *dashboard.Service
}

func (c *components) Close() {
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			c.logger.Error("history close failed", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup builds the logger, source, cache, history and service. Extra
// service options (such as an event publisher) are appended last.
func (a *application) setup(ctx context.Context, svcOpts ...dashboard.Option) (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_kind", cfg.Source.Kind),
		slog.Duration("cache_ttl", cfg.Cache.TTL),
		slog.String("history_driver", cfg.History.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	provider, err := newProvider(ctx, cfg.Source, logger)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}

	c := &components{logger: logger, provider: provider}

	cacheOpts := []snapshot.Option{}
	if cfg.Source.Timeout > 0 {
		cacheOpts = append(cacheOpts, snapshot.WithFetchTimeout(cfg.Source.Timeout))
	}
	c.cache = snapshot.New(provider, cfg.Cache.TTL, logger, cacheOpts...)

	opts := []dashboard.Option{dashboard.WithLogger(logger)}
	if cfg.History.Enabled() {
		db, err := history.Open(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		c.history = db
		opts = append(opts, dashboard.WithHistory(db, cfg.History.Retain))
	}
	opts = append(opts, svcOpts...)

	engine := metrics.New(metrics.WithOverdueDays(cfg.Metrics.OverdueAfterDays))
	c.service = dashboard.NewService(c.cache, engine, opts...)
	return c, nil
}

func newProvider(ctx context.Context, cfg SourceConfig, logger *slog.Logger) (source.Provider, error) {
	switch cfg.Kind {
	case SourceKindCSV:
		p, err := source.NewCSV(cfg.CSV.Path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case SourceKindSheets:
		p, err := source.NewSheets(ctx, source.SheetsOptions{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Worksheet:       cfg.Sheets.Worksheet,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			APIKey:          cfg.Sheets.APIKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
