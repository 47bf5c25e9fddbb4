// Package daemon composes the engine components into a running client-side
// sync daemon.
package daemon

import (
	"context"
	"time"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"github.com/omjaiswal45/Chat-App/internal/config"
	"github.com/omjaiswal45/Chat-App/internal/engine"
	"github.com/omjaiswal45/Chat-App/internal/loadstate"
	"github.com/omjaiswal45/Chat-App/internal/lock"
	"github.com/omjaiswal45/Chat-App/internal/logging"
	"github.com/omjaiswal45/Chat-App/internal/notify"
	"github.com/omjaiswal45/Chat-App/internal/outbox"
	"github.com/omjaiswal45/Chat-App/internal/profile"
	"github.com/omjaiswal45/Chat-App/internal/push"
	"github.com/omjaiswal45/Chat-App/internal/remote"
	"github.com/omjaiswal45/Chat-App/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRemote,
			provideMachine,
			provideSession,
			providePushSource,
			provideSyncer,
			provideActivitySignal,
			provideSink,
			provideDispatcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		logger.Warn("no config file, using defaults", zap.Error(err), zap.String("path", profile.ConfigPath()))
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(cfg *config.Config) remote.Client {
	return remote.NewHTTPClient(cfg.RemoteURL, cfg.AuthToken,
		time.Duration(cfg.FetchTimeoutMs)*time.Millisecond)
}

func provideMachine(b *bus.Bus) *loadstate.Machine {
	return loadstate.NewMachine(b)
}

func provideSession(db *store.DB, rc remote.Client, b *bus.Bus, m *loadstate.Machine, cfg *config.Config, logger *zap.Logger) *engine.Session {
	return engine.NewSession(db, rc, b, m, logger, engine.Options{
		UserID:       cfg.UserID,
		FetchTimeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond,
	})
}

func providePushSource(cfg *config.Config, b *bus.Bus, logger *zap.Logger) push.Source {
	if cfg.PushURL == "" {
		return push.NewManualSource(b)
	}
	return push.NewWSSource(cfg.PushURL, cfg.AuthToken, b, logger)
}

func provideSyncer(db *store.DB, rc remote.Client, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Syncer {
	return outbox.NewSyncer(db, rc, b, logger,
		time.Duration(cfg.SyncIntervalMs)*time.Millisecond)
}

func provideActivitySignal() notify.ActivitySignal {
	// The daemon starts without a focused surface; focus arrives as
	// surface.* bus events from the UI layer.
	return notify.NewManualSignal(false)
}

func provideSink(logger *zap.Logger) notify.Sink {
	return notify.NewLogSink(logger)
}

func provideDispatcher(sink notify.Sink, signal notify.ActivitySignal, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(sink, signal, b,
		time.Duration(cfg.NotifyCooldownMs)*time.Millisecond, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, session *engine.Session, src push.Source, syncer *outbox.Syncer, dispatcher *notify.Dispatcher, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Warm the cache view of the world before anything connects.
			if stats, err := db.Stats(); err == nil {
				logger.Info("cache warm",
					zap.Int("messages", stats.TotalMessages),
					zap.Int("conversations", stats.UniqueConversations))
			} else {
				logger.Warn("cache warm failed", zap.Error(err))
			}

			session.StartLive(context.Background())
			dispatcher.Start(context.Background())
			syncer.Start(context.Background())

			if err := src.Start(context.Background()); err != nil {
				logger.Error("push source failed to start", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			src.Stop()
			syncer.Stop()
			dispatcher.Stop()
			session.StopLive()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
