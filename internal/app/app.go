// Package app wires configuration into concrete pipeline dependencies.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"leadwatch/internal/config"
	"leadwatch/internal/connector"
	"leadwatch/internal/lead"
	"leadwatch/internal/publisher"
	"leadwatch/internal/store/memory"
	"leadwatch/internal/store/postgres"
)

// App owns the process-wide dependencies selected by configuration.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	Store     lead.Store
	Publisher lead.Publisher
}

// New builds the store and publisher the configuration selects. The
// Postgres schema is applied on startup so a fresh database is usable
// without a migration step.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	switch cfg.Database.Provider {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.Store = store
	case "memory":
		a.Store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown database provider %q", cfg.Database.Provider)
	}

	switch cfg.Publisher.Provider {
	case "pubsub":
		pub, err := publisher.NewPubSub(ctx, cfg.Publisher.ProjectID, cfg.Publisher.TopicID, logger.Named("publisher"))
		if err != nil {
			a.Store.Close()
			return nil, fmt.Errorf("create publisher: %w", err)
		}
		a.Publisher = pub
	case "noop":
		a.Publisher = publisher.NewNoop()
	default:
		a.Store.Close()
		return nil, fmt.Errorf("unknown publisher provider %q", cfg.Publisher.Provider)
	}

	return a, nil
}

// Connectors returns the connector factory for scrape cycles.
func (a *App) Connectors() lead.ConnectorFactory {
	factory := connector.NewFactory(
		connector.BrowserConfig{
			Headless:    a.cfg.Browser.Headless,
			UserAgent:   a.cfg.Browser.UserAgent,
			PageTimeout: a.cfg.PageTimeout(),
		},
		credentials(a.cfg.Facebook),
		credentials(a.cfg.Nextdoor),
		a.logger.Named("connector"),
	)
	return factory.Connector
}

func credentials(c config.CredentialsConfig) connector.Credentials {
	return connector.Credentials{
		Email:       c.Email,
		Password:    c.Password,
		CookiesJSON: c.CookiesJSON,
	}
}

// Close releases the store and publisher.
func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		a.logger.Warn("close publisher", zap.Error(err))
	}
	a.Store.Close()
}
