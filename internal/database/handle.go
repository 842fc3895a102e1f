package database

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
)

// ErrNotConnected is returned by Handle.PingContext once the handle was closed.
var ErrNotConnected = errors.New("database not connected")

// Handle owns the process-wide connection pool. It is opened before the server
// starts serving and closed on shutdown; it never reconnects on its own.
type Handle struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewHandle wraps an already verified pool.
func NewHandle(db *sql.DB) *Handle {
	return &Handle{db: db}
}

// DB returns the underlying pool for repositories.
func (h *Handle) DB() *sql.DB {
	return h.db
}

// Connected reports whether the pool is open.
func (h *Handle) Connected() bool {
	return h != nil && h.db != nil && !h.closed.Load()
}

// PingContext runs the liveness check against the pool.
func (h *Handle) PingContext(ctx context.Context) error {
	if !h.Connected() {
		return ErrNotConnected
	}
	return h.db.PingContext(ctx)
}

// Close closes the pool. Subsequent calls are no-ops.
func (h *Handle) Close() error {
	if h == nil || h.db == nil || !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.db.Close()
}
