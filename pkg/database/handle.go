// Package database exposes a SQLite connection as lazy, path-addressable
// values: the whole attached set, one schema, or one table. Nodes are cheap
// to clone and only read rows when materialized.
package database

import (
	"context"
	"sync"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/sqlite"
)

// handle is the connection shared by every node cloned from one system
// value. The mutex is held for a whole operation, so promotion can swap the
// connection underneath without a node observing a closed one.
type handle struct {
	mu   sync.Mutex
	conn *sqlite.Connection
	refs int
}

func newHandle(c *sqlite.Connection) *handle {
	return &handle{conn: c, refs: 1}
}

// acquire registers another owner.
func (h *handle) acquire() *handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
	return h
}

// release drops one owner and closes the connection with the last.
func (h *handle) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	return h.conn.Close()
}

func (h *handle) with(fn func(*sqlite.Connection) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return errors.Internal("database value used after it was closed").
			WithOp("database.handle").Err()
	}
	return fn(h.conn)
}

func (h *handle) storage() sqlite.Storage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.Storage()
}

// promote replaces a read-only file connection with a writable copy.
func (h *handle) promote(ctx context.Context) error {
	return h.with(func(c *sqlite.Connection) error {
		next, err := c.Promote(ctx)
		if err != nil {
			return err
		}
		h.conn = next
		return nil
	})
}

func (h *handle) logger(ctx context.Context) *log.Logger {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l := h.conn.Options().Logger; l != nil {
		return l
	}
	return log.FromContext(ctx)
}
