package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "s3cret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=progress user=postgres password=s3cret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg = Config{Host: "db", Password: "it's secret"}
	assert.Equal(t, `host=db password='it\'s secret'`, cfg.DSN())
}

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckViolation(check))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))
}

func TestStorageError(t *testing.T) {
	assert.NoError(t, storageError("Get", nil))

	pgErr := &pgconn.PgError{Code: "23514"}
	assert.Same(t, pgErr, storageError("Get", pgErr))
	assert.Equal(t, context.Canceled, storageError("Get", context.Canceled))

	timeout := storageError("Get", context.DeadlineExceeded)
	assert.ErrorIs(t, timeout, shared.ErrTimeout)
	assert.True(t, shared.IsRetryable(timeout))

	down := storageError("Get", errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, down, shared.ErrServiceUnavailable)
	assert.True(t, shared.IsUnavailable(down))
}

func TestConnection_ClosedRejectsCalls(t *testing.T) {
	c := &Connection{}
	c.closed.Store(true)

	_, err := c.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, err = c.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrConnectionClosed)
	err = c.WithTx(context.Background(), DefaultTxOptions(), func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrConnectionClosed)

	c.Close() // already closed: must not touch the nil pool
}

func TestMigrations_Ordered(t *testing.T) {
	migs := Migrations()
	assert.NoError(t, checkOrder(migs))
	for _, m := range migs {
		assert.NotEmpty(t, m.Down, m.Name)
	}

	bad := []Migration{{Version: 2, Up: "SELECT 1"}, {Version: 2, Up: "SELECT 1"}}
	assert.ErrorIs(t, checkOrder(bad), ErrMigrationFailed)
	assert.ErrorIs(t, checkOrder([]Migration{{Version: 1}}), ErrMigrationFailed)
}
