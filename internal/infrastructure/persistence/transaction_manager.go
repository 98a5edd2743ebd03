package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"
)

// TransactionManager handles database transactions with retry logic for conflicts
type TransactionManager struct {
	db      *sql.DB
	backoff time.Duration
}

// NewTransactionManager creates a new TransactionManager
func NewTransactionManager(db *sql.DB) *TransactionManager {
	return &TransactionManager{db: db, backoff: 100 * time.Millisecond}
}

// WithTransaction executes fn within a database transaction carried by the context
// passed to fn. The transaction is rolled back if fn returns an error or panics,
// and committed otherwise. A transaction already present in ctx is reused.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ExtractTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure rollback on panic
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(InjectTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithRetry executes fn within a transaction, retrying on deadlocks and on
// unique-key collisions (two writers computed the same next value).
// Attempts back off exponentially with jitter; other errors are returned immediately.
func (tm *TransactionManager) WithRetry(ctx context.Context, fn func(ctx context.Context) error, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := tm.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isDeadlock(err) && !IsUniqueViolation(err) {
			return err
		}

		if attempt < maxRetries-1 {
			backoff := retryDelay(tm.backoff, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// retryDelay is base*2^attempt plus up to the same amount again at random,
// so writers that collided do not retry in lockstep
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base * time.Duration(1<<uint(attempt))
	if d <= 0 {
		return 0
	}
	return d + rand.N(d)
}
