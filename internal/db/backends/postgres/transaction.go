package postgres

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// Transaction wraps a pgx transaction.
type Transaction struct {
	mu         sync.RWMutex
	tx         pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed || t.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	if err := t.tx.Commit(ctx); err != nil {
		return &interfaces.DatabaseError{Op: "commit", Err: err}
	}
	t.committed = true
	return nil
}

func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed || t.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return &interfaces.DatabaseError{Op: "rollback", Err: err}
	}
	t.rolledBack = true
	return nil
}

func (t *Transaction) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.committed || t.rolledBack
}
