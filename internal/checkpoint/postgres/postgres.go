// Package postgres implements a Postgres-backed checkpoint store for
// deployments where several collectors share one database host.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/wavefrontHQ/newrelic/internal/engine/retry"
	"github.com/wavefrontHQ/newrelic/internal/ports"
)

// Store persists watermarks in the checkpoints table with retryable
// operations.
type Store struct {
	db     *sql.DB
	policy retry.Policy
}

var _ ports.CheckpointStore = (*Store)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
}

// New returns a Postgres-backed store using the default retry policy.
func New(db *sql.DB) *Store {
	p := retry.Default
	p.Classify = IsRetryable
	return &Store{db: db, policy: p}
}

// Get reads the stream's watermark.
func (s *Store) Get(ctx context.Context, streamID string) (string, bool, error) {
	const q = `SELECT watermark FROM checkpoints WHERE stream_id=$1`
	var v string
	op := func() error {
		return s.db.QueryRowContext(ctx, q, streamID).Scan(&v)
	}
	if err := s.policy.Do(ctx, op); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("checkpoint get %s: %w", streamID, err)
	}
	return v, true, nil
}

// Set upserts the stream's watermark. The row is committed before Set
// returns, so durability follows the database's synchronous-commit setting.
func (s *Store) Set(ctx context.Context, streamID, value string) error {
	const q = `
INSERT INTO checkpoints (stream_id, watermark, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (stream_id)
DO UPDATE SET watermark=EXCLUDED.watermark, updated_at=now();`
	op := func() error {
		_, err := s.db.ExecContext(ctx, q, streamID, value)
		return err
	}
	if err := s.policy.Do(ctx, op); err != nil {
		return fmt.Errorf("checkpoint set %s: %w", streamID, err)
	}
	return nil
}

// Reset deletes the stream's watermark. Operator action only.
func (s *Store) Reset(ctx context.Context, streamID string) error {
	const q = `DELETE FROM checkpoints WHERE stream_id=$1`
	op := func() error {
		_, err := s.db.ExecContext(ctx, q, streamID)
		return err
	}
	if err := s.policy.Do(ctx, op); err != nil {
		return fmt.Errorf("checkpoint reset %s: %w", streamID, err)
	}
	return nil
}

// List returns all stream watermarks.
func (s *Store) List(ctx context.Context) (map[string]string, error) {
	const q = `SELECT stream_id, watermark FROM checkpoints`
	out := map[string]string{}
	op := func() error {
		rows, err := s.db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()
		marks := map[string]string{}
		var id, mark string
		for rows.Next() {
			if err := rows.Scan(&id, &mark); err != nil {
				return err
			}
			marks[id] = mark
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = marks
		return nil
	}
	if err := s.policy.Do(ctx, op); err != nil {
		return nil, fmt.Errorf("checkpoint list: %w", err)
	}
	return out, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not configured")
	}
	return s.policy.Do(ctx, func() error { return s.db.PingContext(ctx) })
}

// IsRetryable reports whether the error is transient per Postgres semantics.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	// Connection (08xxx) and transaction-rollback (40xxx) classes.
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
