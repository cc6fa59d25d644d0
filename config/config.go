// Package config loads engine configuration from the environment. A .env file,
// when present, is read first; variables already set in the process win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
	Gamification  GamificationConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone defines day boundaries, badge hours and reset times.
	Timezone string
	Location *time.Location

	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. URL, when set, takes
// precedence over the individual fields.
type DatabaseConfig struct {
	URL string

	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration

	// StartupAttempts bounds connection retries when a binary starts.
	StartupAttempts int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Disabled runs without the leaderboard cache, user locks and pub/sub.
	Disabled bool

	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	LeaderboardTTL time.Duration

	// UserLocks serializes cascades per user across processes with a Redis
	// lease, for stores that lack their own cross-process lock.
	UserLocks bool
	LockLease time.Duration

	// Required makes a failed connection fatal instead of degrading.
	Required bool
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled bool

	WeeklyResetDay  time.Weekday
	WeeklyResetAt   string // HH:MM
	MonthlyResetDay int
	MonthlyResetAt  string // HH:MM

	RebuildLeaderboardInterval time.Duration
	JobTimeout                 time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console
}

// GamificationConfig holds engine behaviour switches.
type GamificationConfig struct {
	// SeedBadgesOnStart inserts missing default badge definitions.
	SeedBadgesOnStart bool

	// PersistNotifications stores notifications for the in-app inbox.
	PersistNotifications bool

	// PublishNotifications fans notifications out over Redis pub/sub.
	PublishNotifications bool

	// RelayEvents forwards progress events over Redis pub/sub.
	RelayEvents bool

	NotificationQueueSize int
	NotificationWorkers   int
}

// Load reads files (".env" when none are given) into the environment and
// builds the configuration. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from process environment variables. A
// variable that is set but malformed is an error, never a silent default.
func FromEnv() (*Config, error) {
	e := &env{}
	cfg := &Config{
		App:           e.app(),
		Database:      e.database(),
		Redis:         e.redis(),
		Scheduler:     e.scheduler(),
		Observability: e.observability(),
		Gamification:  e.gamification(),
	}
	if len(e.problems) > 0 {
		return nil, problemList("environment", e.problems)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (e *env) app() AppConfig {
	stage := Environment(e.str("APP_ENV", string(EnvDevelopment)))
	tz := e.str("APP_TIMEZONE", timeutil.DefaultLocationName)
	loc, err := timeutil.LoadLocation(tz)
	if err != nil {
		e.fail("APP_TIMEZONE", tz, err)
	}
	return AppConfig{
		Name:            e.str("APP_NAME", "progress-engine"),
		Environment:     stage,
		Debug:           e.boolean("APP_DEBUG", false) || stage == EnvDevelopment,
		Version:         e.str("APP_VERSION", "0.1.0"),
		Timezone:        tz,
		Location:        loc,
		ShutdownTimeout: e.duration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func (e *env) database() DatabaseConfig {
	return DatabaseConfig{
		URL:             e.str("DATABASE_URL", ""),
		Host:            e.str("DB_HOST", "localhost"),
		Port:            e.integer("DB_PORT", 5432),
		Name:            e.str("DB_NAME", "progress"),
		User:            e.str("DB_USER", "postgres"),
		Password:        e.str("DB_PASSWORD", ""),
		SSLMode:         e.str("DB_SSLMODE", "disable"),
		MaxConns:        e.integer("DB_MAX_CONNS", 25),
		MinConns:        e.integer("DB_MIN_CONNS", 2),
		ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: e.duration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		ConnectTimeout:  e.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
		StartupAttempts: e.integer("DB_STARTUP_ATTEMPTS", 5),
	}
}

func (e *env) redis() RedisConfig {
	return RedisConfig{
		Disabled:       e.boolean("REDIS_DISABLED", false),
		Host:           e.str("REDIS_HOST", "localhost"),
		Port:           e.integer("REDIS_PORT", 6379),
		Password:       e.str("REDIS_PASSWORD", ""),
		DB:             e.integer("REDIS_DB", 0),
		PoolSize:       e.integer("REDIS_POOL_SIZE", 10),
		MinIdleConns:   e.integer("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:    e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:    e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:   e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		LeaderboardTTL: e.duration("REDIS_LEADERBOARD_TTL", 15*time.Minute),
		UserLocks:      e.boolean("REDIS_USER_LOCKS", false),
		LockLease:      e.duration("REDIS_LOCK_LEASE", 30*time.Second),
		Required:       e.boolean("REDIS_REQUIRED", false),
	}
}

func (e *env) scheduler() SchedulerConfig {
	return SchedulerConfig{
		Enabled:                    e.boolean("SCHEDULER_ENABLED", true),
		WeeklyResetDay:             e.weekday("SCHEDULER_WEEKLY_RESET_DAY", time.Monday),
		WeeklyResetAt:              e.str("SCHEDULER_WEEKLY_RESET_AT", "00:00"),
		MonthlyResetDay:            e.integer("SCHEDULER_MONTHLY_RESET_DAY", 1),
		MonthlyResetAt:             e.str("SCHEDULER_MONTHLY_RESET_AT", "00:00"),
		RebuildLeaderboardInterval: e.duration("SCHEDULER_LEADERBOARD_INTERVAL", 10*time.Minute),
		JobTimeout:                 e.duration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
	}
}

func (e *env) observability() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),
	}
}

func (e *env) gamification() GamificationConfig {
	return GamificationConfig{
		SeedBadgesOnStart:     e.boolean("GAMIFICATION_SEED_BADGES", true),
		PersistNotifications:  e.boolean("GAMIFICATION_PERSIST_NOTIFICATIONS", true),
		PublishNotifications:  e.boolean("GAMIFICATION_PUBLISH_NOTIFICATIONS", true),
		RelayEvents:           e.boolean("GAMIFICATION_RELAY_EVENTS", true),
		NotificationQueueSize: e.integer("GAMIFICATION_NOTIFICATION_QUEUE", 256),
		NotificationWorkers:   e.integer("GAMIFICATION_NOTIFICATION_WORKERS", 2),
	}
}

// Validate checks cross-field rules and reports every violation at once.
func (c *Config) Validate() error {
	var p []string
	check := func(ok bool, msg string) {
		if !ok {
			p = append(p, msg)
		}
	}

	db, rd, sc, gm := c.Database, c.Redis, c.Scheduler, c.Gamification
	check(!c.IsProduction() || db.URL != "" || db.Password != "",
		"DATABASE_URL or DB_PASSWORD is required in production")
	check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
	check(db.MinConns >= 0 && db.MinConns <= db.MaxConns, "DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	check(db.StartupAttempts > 0, "DB_STARTUP_ATTEMPTS must be positive")

	check(rd.Disabled || (rd.Port > 0 && rd.Port <= 65535), "REDIS_PORT must be 1-65535")
	check(!(rd.Disabled && rd.Required), "REDIS_REQUIRED conflicts with REDIS_DISABLED")

	check(validClock(sc.WeeklyResetAt), "SCHEDULER_WEEKLY_RESET_AT must be HH:MM")
	check(validClock(sc.MonthlyResetAt), "SCHEDULER_MONTHLY_RESET_AT must be HH:MM")
	// Every month has a 28th.
	check(sc.MonthlyResetDay >= 1 && sc.MonthlyResetDay <= 28, "SCHEDULER_MONTHLY_RESET_DAY must be 1-28")
	check(sc.RebuildLeaderboardInterval >= time.Second, "SCHEDULER_LEADERBOARD_INTERVAL must be at least 1s")

	check(gm.NotificationQueueSize > 0, "GAMIFICATION_NOTIFICATION_QUEUE must be positive")
	check(gm.NotificationWorkers > 0, "GAMIFICATION_NOTIFICATION_WORKERS must be positive")

	if len(p) > 0 {
		return problemList("configuration", p)
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.App.Environment == EnvDevelopment }

func (c *Config) IsProduction() bool { return c.App.Environment == EnvProduction }

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func problemList(what string, problems []string) error {
	return fmt.Errorf("%s errors:\n  - %s", what, strings.Join(problems, "\n  - "))
}

// ═══════════════════════════════════════════════════════════════════════════
// ENVIRONMENT READER
// ═══════════════════════════════════════════════════════════════════════════

// env reads typed variables. Unset or empty variables take the default;
// malformed ones are recorded in problems and also take the default.
type env struct {
	problems []string
}

func (e *env) fail(key, raw string, err error) {
	e.problems = append(e.problems, fmt.Sprintf("%s=%q: %v", key, raw, err))
}

func lookup[T any](e *env, key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		e.fail(key, raw, err)
		return def
	}
	return v
}

func (e *env) str(key, def string) string {
	return lookup(e, key, def, func(s string) (string, error) { return s, nil })
}

func (e *env) boolean(key string, def bool) bool {
	return lookup(e, key, def, strconv.ParseBool)
}

func (e *env) integer(key string, def int) int {
	return lookup(e, key, def, strconv.Atoi)
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	return lookup(e, key, def, time.ParseDuration)
}

func (e *env) weekday(key string, def time.Weekday) time.Weekday {
	return lookup(e, key, def, parseWeekday)
}

// parseWeekday accepts full English day names and three-letter
// abbreviations in any case.
func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday")
}
