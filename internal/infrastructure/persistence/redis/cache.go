// Package redis holds the optional Redis layer: the leaderboard sorted-set
// cache, a distributed per-user lock for multi-instance deployments, and a
// pub/sub notification publisher.
//
// Key components:
//   - Cache: connection wrapper shared by the components below
//   - LeaderboardCache: one sorted set per leaderboard period
//   - UserLocker: SET NX PX lock with token-checked release
//   - NotificationPublisher: notification.Sink over PUBLISH
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config is the subset of go-redis options the engine exposes.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// DefaultConfig targets a local Redis with short timeouts: the cache is
// optional, so a slow server should fail fast into the fallback path.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// Addr is host:port, bracketing IPv6 hosts.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolTimeout:  c.PoolTimeout,
	}
}

var (
	ErrCacheConnection    = errors.New("cache: connection failed")
	ErrCacheSerialization = errors.New("cache: serialization failed")
	ErrCacheKeyEmpty      = errors.New("cache: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes for namespacing Redis keys.
const (
	PrefixLeaderboard  = "progress:leaderboard:"
	PrefixLock         = "progress:lock:user:"
	PrefixNotification = "progress:notifications:"
	PrefixEvents       = "progress:events:"
)

// Default TTLs.
const (
	// TTLLeaderboardCache bounds how long a rebuilt period is served without
	// another rebuild.
	TTLLeaderboardCache = 15 * time.Minute

	// TTLDistributedLock is the default lock lease.
	TTLDistributedLock = 30 * time.Second
)

// LeaderboardKey is the sorted set for one period.
func LeaderboardKey(period points.Period) string {
	return PrefixLeaderboard + string(period)
}

// LeaderboardReadyKey marks a period as fully loaded.
func LeaderboardReadyKey(period points.Period) string {
	return PrefixLeaderboard + string(period) + ":ready"
}

// LeaderboardTotalsKey is the hash of all-time totals shown next to every row.
func LeaderboardTotalsKey() string {
	return PrefixLeaderboard + "totals"
}

// LockKey is the lock key for a user.
func LockKey(userID shared.UserID) string {
	return PrefixLock + userID.String()
}

// NotificationChannel is the per-user pub/sub channel.
func NotificationChannel(userID shared.UserID) string {
	return PrefixNotification + userID.String()
}

// NotificationBroadcastChannel receives every user's notifications.
func NotificationBroadcastChannel() string {
	return PrefixNotification + "all"
}

// EventChannel carries progress events of one type.
func EventChannel(eventType shared.EventType) string {
	return PrefixEvents + string(eventType)
}

// EventBroadcastChannel receives every progress event.
func EventBroadcastChannel() string {
	return PrefixEvents + "all"
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache owns the go-redis client the components in this package share.
type Cache struct {
	client *redis.Client
}

// NewCache dials and pings once, giving up after cfg.DialTimeout. The
// returned error matches both ErrCacheConnection and
// shared.ErrServiceUnavailable.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(cfg.options())

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, shared.WrapError("redis", "Connect", shared.ErrServiceUnavailable,
			"redis unreachable", fmt.Errorf("%w: %w", ErrCacheConnection, err))
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Client() *redis.Client { return c.client }

func (c *Cache) Close() error { return c.client.Close() }

// Publish JSON-encodes message once and sends it to every channel in a
// single pipeline.
func (c *Cache) Publish(ctx context.Context, message any, channels ...string) error {
	if len(channels) == 0 || slices.Contains(channels, "") {
		return ErrCacheKeyEmpty
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}
	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ch := range channels {
			pipe.Publish(ctx, ch, data)
		}
		return nil
	})
	return err
}

// unavailable maps a Redis failure to the shared unavailable kind.
func unavailable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapError("redis", op, shared.ErrTimeout, "redis operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return shared.WrapError("redis", op, shared.ErrServiceUnavailable, "redis unavailable", err)
}
