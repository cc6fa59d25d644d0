// Package app assembles the engine from configuration: storage, the optional
// Redis layer, the cascade engine, its buses and the periodic jobs. Both
// binaries and embedding hosts build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/config"
	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/application/eventhandler"
	"github.com/rhythmofsigns/progress-engine/internal/application/query"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/messaging"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/scheduler"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/rhythmofsigns/progress-engine/pkg/circuitbreaker"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
	"github.com/rhythmofsigns/progress-engine/pkg/retry"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// Storage is what the engine needs from a backing store. Both the postgres
// and the memory store satisfy it.
type Storage interface {
	command.UnitOfWork
	command.Store
	Notifications() notification.Repository
	Ranking() points.RankingReader
}

// App is an assembled engine.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Clock   timeutil.Clock
	Storage Storage
	Catalog *badge.Catalog
	Engine  *command.Engine

	// Learning receives learning events; the router runs each through the
	// engine's dispatcher with retries.
	Learning *messaging.InMemoryEventBus
	Router   *messaging.Router

	// Progress carries events the engine raises after commit.
	Progress *messaging.InMemoryEventBus
	// Relay is nil without Redis.
	Relay *eventhandler.ProgressRelay

	Notifications *messaging.NotificationBus

	// Leaderboard and Rebuilder are nil without Redis.
	Leaderboard query.LeaderboardCache
	Rebuilder   *query.LeaderboardRebuilder

	Reset        *command.ResetPointsHandler
	MarkRead     *command.MarkNotificationsReadHandler
	Leaderboards *query.GetLeaderboardHandler
	Stats        *query.StatsQueries
	Reviews      *query.ReviewQueries
	Inbox        *query.NotificationQueries

	closers []func()
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTIONS
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}

// PostgresConfig maps database settings onto the pool config.
func PostgresConfig(cfg config.DatabaseConfig) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.Host = cfg.Host
	pg.Port = cfg.Port
	pg.Database = cfg.Name
	pg.User = cfg.User
	pg.Password = cfg.Password
	pg.SSLMode = cfg.SSLMode
	pg.MaxConns = int32(cfg.MaxConns)
	pg.MinConns = int32(cfg.MinConns)
	pg.MaxConnLifetime = cfg.ConnMaxLifetime
	pg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pg.ConnectTimeout = cfg.ConnectTimeout
	return pg
}

// RedisConfig maps redis settings onto the client config.
func RedisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.PoolSize = cfg.PoolSize
	rc.MinIdleConns = cfg.MinIdleConns
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout
	return rc
}

// ConnectPostgres opens the pool, retrying while the server comes up.
func ConnectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	pg := PostgresConfig(cfg.Database)
	retrier := retry.StartupRetrier(cfg.Database.StartupAttempts, func(attempt int, err error, delay time.Duration) {
		log.Warn("postgres not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})

	var conn *postgres.Connection
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		if cfg.Database.URL != "" {
			conn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL, pg)
		} else {
			conn, err = postgres.NewConnection(ctx, pg)
		}
		if shared.IsValidation(err) {
			// A malformed DSN will not parse on the next attempt either.
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ConnectRedis returns nil when Redis is disabled. An unreachable server is
// fatal only when Redis is required; otherwise the engine runs without it.
func ConnectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	if cfg.Redis.Disabled {
		log.Info("redis disabled")
		return nil, nil
	}
	cache, err := redis.NewCache(ctx, RedisConfig(cfg.Redis))
	if err != nil {
		if cfg.Redis.Required {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Warn("redis unavailable, running without cache", logger.Err(err))
		return nil, nil
	}
	log.Info("redis connected", logger.String("addr", RedisConfig(cfg.Redis).Addr()))
	return cache, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSEMBLY
// ══════════════════════════════════════════════════════════════════════════════

// Open connects to PostgreSQL and, if configured, Redis, applies migrations,
// seeds the badge catalog and assembles the engine.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	conn, err := ConnectPostgres(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	applied, err := postgres.NewMigrator(conn).Migrate(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database schema is up to date", logger.Int("applied", applied))

	cache, err := ConnectRedis(ctx, cfg, log)
	if err != nil {
		conn.Close()
		return nil, err
	}

	a, err := Assemble(ctx, cfg, log, postgres.NewStore(conn), cache)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		conn.Close()
		return nil, err
	}
	if cache != nil {
		a.closers = append(a.closers, func() { _ = cache.Close() })
	}
	a.closers = append(a.closers, conn.Close)
	return a, nil
}

// Assemble builds the engine over storage. cache may be nil.
func Assemble(ctx context.Context, cfg *config.Config, log *logger.Logger, storage Storage, cache *redis.Cache) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		Config:  cfg,
		Logger:  log,
		Clock:   timeutil.NewSystemClock(cfg.App.Location),
		Storage: storage,
	}

	catalog, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog

	// Notifications fan out asynchronously to the inbox and Redis pub/sub.
	a.Notifications = messaging.NewNotificationBus(messaging.NotificationBusConfig{
		QueueSize: cfg.Gamification.NotificationQueueSize,
		Workers:   cfg.Gamification.NotificationWorkers,
		Logger:    log,
	})
	a.closers = append(a.closers, func() { _ = a.Notifications.Close() })
	if cfg.Gamification.PersistNotifications {
		if err := a.Notifications.Subscribe(command.NewStoreSink(storage.Notifications())); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cache != nil && cfg.Gamification.PublishNotifications {
		if err := a.Notifications.Subscribe(redis.NewNotificationPublisher(cache)); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cfg.App.Debug {
		if err := a.Notifications.Subscribe(messaging.NewLogSink(log)); err != nil {
			a.Close()
			return nil, err
		}
	}

	progressCfg := messaging.DefaultInMemoryEventBusConfig()
	progressCfg.Logger = log
	a.Progress = messaging.NewInMemoryEventBus(progressCfg)
	a.closers = append(a.closers, func() { _ = a.Progress.Close() })
	if cache != nil && cfg.Gamification.RelayEvents {
		a.Relay = eventhandler.NewProgressRelay(redis.NewEventPublisher(cache), log, eventhandler.DefaultRelayConfig())
		if err := a.Relay.Subscribe(a.Progress); err != nil {
			a.Close()
			return nil, err
		}
	}

	opts := []command.RunnerOption{
		command.WithSink(a.Notifications),
		command.WithPublisher(a.Progress),
		command.WithLogger(log),
	}

	var uow command.UnitOfWork = storage
	var rebuilder command.LeaderboardRebuilder
	if cache != nil {
		guarded := redis.NewGuardedLeaderboardCache(
			redis.NewLeaderboardCache(cache, cfg.Redis.LeaderboardTTL),
			circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		)
		a.Leaderboard = guarded
		a.Rebuilder = query.NewLeaderboardRebuilder(storage.Ranking(), guarded)
		rebuilder = a.Rebuilder
		opts = append(opts, command.WithScoreUpdater(guarded))

		if cfg.Redis.UserLocks {
			uow = redis.NewLockedUnitOfWork(redis.NewUserLocker(cache, cfg.Redis.LockLease), storage)
		}
	}

	a.Engine = command.NewEngine(uow, a.Clock, catalog, opts...)
	a.Reset = command.NewResetPointsHandler(storage.Points(), a.Clock, a.Progress, rebuilder, log)
	a.MarkRead = command.NewMarkNotificationsReadHandler(storage.Notifications())
	a.Leaderboards = query.NewGetLeaderboardHandler(storage.Ranking(), storage.Points(), a.Leaderboard, log)
	a.Stats = query.NewStatsQueries(query.StatsDeps{
		Accounts: storage.Points(),
		Ranking:  storage.Ranking(),
		Streaks:  storage.Streaks(),
		Badges:   storage.Badges(),
		Catalog:  catalog,
		Facts:    storage.Facts(),
		Daily:    storage.Activity(),
		Clock:    a.Clock,
	})
	a.Reviews = query.NewReviewQueries(storage.Reviews(), a.Clock)
	a.Inbox = query.NewNotificationQueries(storage.Notifications())

	if err := a.wireLearning(log); err != nil {
		a.Close()
		return nil, err
	}

	log.Info("engine assembled",
		logger.Int("badges", catalog.ActiveCount()),
		logger.Bool("cache", cache != nil),
		logger.String("timezone", cfg.App.Timezone),
	)
	return a, nil
}

func (a *App) loadCatalog(ctx context.Context) (*badge.Catalog, error) {
	if a.Config.Gamification.SeedBadgesOnStart {
		seeded, err := command.NewSeedBadgesHandler(a.Storage.Badges()).Handle(ctx, nil)
		if err != nil {
			return nil, err
		}
		if seeded.Created > 0 {
			a.Logger.Info("badge catalog seeded", logger.Int("created", seeded.Created))
		}
		return seeded.Catalog, nil
	}
	defs, err := a.Storage.Badges().LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load badge catalog: %w", err)
	}
	return badge.NewCatalog(defs), nil
}

// wireLearning routes learning events through the dispatcher. The learning
// bus is synchronous, so Publish returns once the cascade has committed.
func (a *App) wireLearning(log *logger.Logger) error {
	a.Learning = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: log})

	routerCfg := messaging.DefaultRouterConfig(a.Learning)
	routerCfg.Logger = log
	a.Router = messaging.NewRouter(routerCfg)
	a.Router.Use(messaging.RecoveryMiddleware(log))
	a.Router.Use(messaging.LoggingMiddleware(log))

	// Router.Stop runs before the bus closes so pending retries are abandoned.
	a.closers = append(a.closers, func() { _ = a.Learning.Close() }, a.Router.Stop)

	dispatcher := a.Engine.Dispatcher
	if err := a.Router.RegisterAll(command.LearningEvents, messaging.Route{
		Name: "progress-cascade",
		Handler: func(e shared.Event) error {
			_, err := dispatcher.Handle(context.Background(), e)
			return err
		},
	}); err != nil {
		return err
	}
	return a.Router.Start()
}

// ══════════════════════════════════════════════════════════════════════════════
// JOBS
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler registers the periodic jobs in the configured location: the
// weekly and monthly resets and, with a cache, the leaderboard rebuild.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sc := a.Config.Scheduler
	s := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   a.Logger,
		Location: a.Config.App.Location,
	})

	var errs []error
	errs = append(errs,
		s.Register(jobs.NewWeeklyResetJob(a.Reset, a.Logger), scheduler.Weekly(sc.WeeklyResetDay, sc.WeeklyResetAt)),
		s.Register(jobs.NewMonthlyResetJob(a.Reset, a.Logger), scheduler.Monthly(sc.MonthlyResetDay, sc.MonthlyResetAt)),
	)
	if a.Rebuilder != nil {
		errs = append(errs, s.Register(
			jobs.NewRebuildLeaderboardJob(a.Rebuilder, sc.JobTimeout, a.Logger),
			scheduler.Every(sc.RebuildLeaderboardInterval),
		))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
