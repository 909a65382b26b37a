package memory

import (
	"context"
	"sync"

	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// Transaction snapshots the database at creation; rollback restores the
// snapshot. Good enough for single-writer test scenarios.
type Transaction struct {
	mu         sync.RWMutex
	db         *Database
	snapshot   map[string]map[string]map[string]interface{}
	committed  bool
	rolledBack bool
}

// NewTransaction creates a transaction with a deep copy of current state.
func NewTransaction(db *Database) *Transaction {
	tx := &Transaction{
		db:       db,
		snapshot: make(map[string]map[string]map[string]interface{}),
	}

	db.mu.RLock()
	for tableName, table := range db.tables {
		tx.snapshot[tableName] = make(map[string]map[string]interface{}, len(table))
		for id, record := range table {
			tx.snapshot[tableName][id] = copyRecord(record)
		}
	}
	db.mu.RUnlock()

	return tx
}

func (tx *Transaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	tx.committed = true
	return nil
}

func (tx *Transaction) Rollback(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return interfaces.ErrTransactionCompleted
	}

	tx.db.mu.Lock()
	tx.db.tables = tx.snapshot
	tx.db.mu.Unlock()

	tx.rolledBack = true
	return nil
}

func (tx *Transaction) IsCompleted() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()

	return tx.committed || tx.rolledBack
}
