package cache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// beginImmediateWithRetry starts a write transaction on the dedicated
// writer connection using BEGIN IMMEDIATE, retrying with exponential
// backoff while SQLite reports the database as busy or locked. BulkReplace's
// delete-and-insert transaction runs on this connection; the other writes
// (UpsertOne, DeleteOne, invalidation) use the shared pool.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), 8), ctx)

	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyError(err) {
			return err // retried
		}
		return backoff.Permanent(err)
	}, policy)
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

// rollbackQuietly is used in defers guarding a transaction that may already
// have committed; errors are intentionally discarded since ROLLBACK after a
// successful COMMIT is a harmless no-op failure.
func rollbackQuietly(conn *sql.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = conn.ExecContext(ctx, "ROLLBACK")
}
