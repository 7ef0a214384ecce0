package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vostroslava/teremok-platform/internal/export"
	"github.com/vostroslava/teremok-platform/internal/notify"
	"github.com/vostroslava/teremok-platform/internal/store"
	"github.com/vostroslava/teremok-platform/internal/web"
)

// appEnv holds the initialized store and side-effect sinks shared by
// the serve and backfill commands.
type appEnv struct {
	Store    store.Store
	Notifier notify.Notifier
	Checker  notify.SubscriptionChecker
	Exporter web.Exporter
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend. Postgres is the default;
// sqlite backs single-node deployments and local development.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv sets up the store, runs migrations, and wires the optional
// notification and export sinks. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st}

	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ManagerChatID, cfg.Telegram.RequiredChannel)
		if err != nil {
			zap.L().Warn("telegram init failed, notifications disabled", zap.Error(err))
		} else {
			env.Checker = tg
			if cfg.Telegram.SendNotifications {
				env.Notifier = tg
			}
		}
	} else {
		zap.L().Debug("TEREMOK_TELEGRAM_TOKEN not set, notifications disabled")
	}

	if cfg.Export.Enabled {
		exp, err := export.New(cfg.Export.Dir)
		if err != nil {
			zap.L().Warn("export init failed, export disabled", zap.Error(err))
		} else {
			env.Exporter = exp
		}
	}

	return env, nil
}
