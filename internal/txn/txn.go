// Package txn runs GORM transactions and retries them when the store reports
// a transient conflict.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

const (
	// DefaultAttempts is how many times a conflicting transaction is run.
	DefaultAttempts = 5
	// DefaultBackoff is the base pause between attempts; it doubles each time.
	DefaultBackoff = 10 * time.Millisecond
)

// MySQL error numbers for deadlock and lock wait timeout.
const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
)

// Runner executes functions inside a transaction with conflict retry.
type Runner struct {
	db       *gorm.DB
	attempts int
	backoff  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithAttempts sets the maximum number of attempts (at least 1).
func WithAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBackoff sets the base pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(r *Runner) { r.backoff = d }
}

// New returns a Runner over db.
func New(db *gorm.DB, opts ...Option) *Runner {
	r := &Runner{db: db, attempts: DefaultAttempts, backoff: DefaultBackoff}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes fn in a transaction. fn must be a pure function of what it
// reads through tx: a retried attempt starts from a rolled-back state.
//
// Retryable failures (see IsRetryable) are retried up to the configured
// attempt count; anything else aborts immediately. When the attempts run
// out, the last error is returned wrapped in ErrConflict.
func (r *Runner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	pause := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		pause *= 2
	}
	if errors.Is(err, svcErr.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", svcErr.ErrConflict, r.attempts, err)
}

// IsRetryable reports whether err is a transient write conflict: a MySQL
// deadlock or lock wait timeout, a busy/locked SQLite database, or an
// ErrConflict raised by the transaction body itself.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, svcErr.ErrConflict) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
