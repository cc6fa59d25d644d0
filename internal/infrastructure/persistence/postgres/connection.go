// Package postgres implements the engine's storage on PostgreSQL via pgx.
// Every per-user cascade runs in one transaction guarded by a transaction
// scoped advisory lock, so concurrent events for a user apply in sequence.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

var (
	ErrConnectionClosed  = errors.New("postgres: connection pool is closed")
	ErrMigrationFailed   = errors.New("postgres: migration failed")
	ErrTransactionFailed = errors.New("postgres: transaction failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config describes the server and the pool. Zero pool fields keep the pgx
// defaults.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		Port:              5432,
		Database:          "progress",
		User:              "postgres",
		SSLMode:           "disable",
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}
}

// DSN renders the keyword/value connection string. Empty settings are left
// out so libpq defaults and PG* environment variables still apply.
func (c Config) DSN() string {
	var parts []string
	add := func(key, value string) {
		if value == "" {
			return
		}
		if strings.ContainsAny(value, ` '\`) {
			value = "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value) + "'"
		}
		parts = append(parts, key+"="+value)
	}

	add("host", c.Host)
	if c.Port > 0 {
		add("port", strconv.Itoa(c.Port))
	}
	add("dbname", c.Database)
	add("user", c.User)
	add("password", c.Password)
	add("sslmode", c.SSLMode)
	if secs := int(c.ConnectTimeout.Seconds()); secs > 0 {
		add("connect_timeout", strconv.Itoa(secs))
	}
	return strings.Join(parts, " ")
}

func (c Config) tune(pc *pgxpool.Config) {
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = c.HealthCheckPeriod
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection is the shared pool. Repositories reach it through Querier.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewConnection dials using cfg and pings once.
func NewConnection(ctx context.Context, cfg Config) (*Connection, error) {
	return open(ctx, cfg.DSN(), cfg)
}

// NewConnectionFromURL dials a postgres:// URL. Pool settings in cfg win
// over the URL's pool_* parameters.
func NewConnectionFromURL(ctx context.Context, databaseURL string, cfg Config) (*Connection, error) {
	return open(ctx, databaseURL, cfg)
}

func open(ctx context.Context, connString string, cfg Config) (*Connection, error) {
	pc, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, shared.WrapError("storage", "Connect", shared.ErrInvalidFormat, "unparseable connection string", err)
	}
	cfg.tune(pc)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, storageError("Connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, shared.WrapError("storage", "Connect", shared.ErrServiceUnavailable, "failed to ping database", err)
	}
	return &Connection{pool: pool}, nil
}

// Close releases the pool. Later calls are no-ops.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERYING
// ══════════════════════════════════════════════════════════════════════════════

// Querier is satisfied by *Connection and pgx.Tx, so a repository works the
// same inside and outside a cascade transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.closed.Load() {
		return pgconn.CommandTag{}, ErrConnectionClosed
	}
	return c.pool.Exec(ctx, sql, args...)
}

func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.pool.Query(ctx, sql, args...)
}

func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// DefaultTxOptions is read committed, read write. The advisory lock taken
// by each cascade provides the per-user ordering.
func DefaultTxOptions() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
}

// WithTx runs fn in a transaction, committing on nil and rolling back on
// error or panic.
func (c *Connection) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) (err error) {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	tx, err := c.pool.BeginTx(ctx, opts)
	if err != nil {
		return storageError("Begin", fmt.Errorf("%w: %w", ErrTransactionFailed, err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, storageError("Rollback", rbErr))
		}
		return err
	}
	return storageError("Commit", tx.Commit(ctx))
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool { return sqlState(err) == codeUniqueViolation }

func IsCheckViolation(err error) bool { return sqlState(err) == codeCheckViolation }

func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// storageError classifies a driver error. Errors the server reported and
// caller cancellations pass through; a deadline becomes ErrTimeout and
// anything else ErrServiceUnavailable.
func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case sqlState(err) != "", errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("storage", op, shared.ErrTimeout, "storage call timed out", err)
	default:
		return shared.WrapError("storage", op, shared.ErrServiceUnavailable, "storage is unavailable", err)
	}
}
