package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is one payload received on a LISTEN channel.
type Notification struct {
	Channel string
	Payload string
}

// Listener holds a dedicated connection subscribed to a single Postgres
// LISTEN channel. The connection is pinned out of the pool for the lifetime
// of the listener; Close returns it. Callers must Close when the owning
// session detaches or the connection leaks.
type Listener struct {
	conn    *pgxpool.Conn
	channel string
}

// Listen acquires a connection from the pool and subscribes it to channel.
func Listen(ctx context.Context, pool *pgxpool.Pool, channel string) (*Listener, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}
	return &Listener{conn: conn, channel: channel}, nil
}

// Wait blocks until a notification arrives on the channel or ctx is
// cancelled. Non-matching channels on the same connection are skipped.
func (l *Listener) Wait(ctx context.Context) (*Notification, error) {
	for {
		n, err := l.conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return nil, err
		}
		if n.Channel != l.channel {
			continue
		}
		return &Notification{Channel: n.Channel, Payload: n.Payload}, nil
	}
}

// Close unsubscribes and returns the connection to the pool. Safe to call
// once per listener.
func (l *Listener) Close(ctx context.Context) {
	_, _ = l.conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{l.channel}.Sanitize())
	l.conn.Release()
}
