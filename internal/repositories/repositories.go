// package repositories implements catalog persistence over SQLite.
//
// All writes go through a [UnitOfWork]: a scoped connection acquisition with
// one transaction, committed on normal exit and rolled back on any failure.
// Repositories obtained from the same unit-of-work share its connection.
package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spindle/internal/shared"
)

// AcquireTimeout bounds the wait for a pooled connection.
const AcquireTimeout = 30 * time.Second

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
// Repositories are constructed over either: a bare DB for read-only
// analysis paths, a transaction for execution paths.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UnitOfWork holds one pooled connection and one open transaction.
type UnitOfWork struct {
	conn *sql.Conn
	tx   *sql.Tx
	done bool
}

// Begin acquires a connection from the pool, waiting at most
// [AcquireTimeout], and opens a transaction on it.
func Begin(ctx context.Context, db *sql.DB) (*UnitOfWork, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, AcquireTimeout)
	defer cancel()

	conn, err := db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: connection acquisition exceeded %s", shared.ErrTimeout, AcquireTimeout)
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &UnitOfWork{conn: conn, tx: tx}, nil
}

// WithUnitOfWork runs fn inside a unit-of-work, committing on nil error and
// rolling back otherwise.
func WithUnitOfWork(ctx context.Context, db *sql.DB, fn func(u *UnitOfWork) error) error {
	u, err := Begin(ctx, db)
	if err != nil {
		return err
	}
	defer u.Rollback()

	if err := fn(u); err != nil {
		return err
	}
	return u.Commit()
}

// Commit commits the transaction and releases the connection.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Commit()
	u.release()
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction and releases the connection.
// Safe to defer; a no-op after Commit.
func (u *UnitOfWork) Rollback() {
	if u.done {
		return
	}
	u.done = true
	u.tx.Rollback()
	u.release()
}

// release validates the connection before returning it to the pool.
// A connection that fails the ping is discarded instead of reused.
func (u *UnitOfWork) release() {
	if err := u.conn.PingContext(context.Background()); err != nil {
		u.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	u.conn.Close()
}

// Tx exposes the open transaction for repository construction.
func (u *UnitOfWork) Tx() DBTX { return u.tx }

// Tracks returns a track repository bound to this unit-of-work.
func (u *UnitOfWork) Tracks() *TrackRepository { return NewTrackRepository(u.tx) }

// Playlists returns a playlist repository bound to this unit-of-work.
func (u *UnitOfWork) Playlists() *PlaylistRepository { return NewPlaylistRepository(u.tx) }

// Associations returns a membership repository bound to this unit-of-work.
func (u *UnitOfWork) Associations() *AssociationRepository { return NewAssociationRepository(u.tx) }

// Mappings returns a file-mapping repository bound to this unit-of-work.
func (u *UnitOfWork) Mappings() *MappingRepository { return NewMappingRepository(u.tx) }

// Runs returns a sync-run repository bound to this unit-of-work.
func (u *UnitOfWork) Runs() *RunRepository { return NewRunRepository(u.tx) }

// placeholders builds a "?, ?, ?" list for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// toAnySlice converts string args for variadic query parameters.
func toAnySlice(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
