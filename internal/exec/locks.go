package exec

import (
	"sync"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// LockTable serializes executions per symbol. Acquisition is all-or-nothing
// across an attempt's symbols: if any symbol is already held, nothing is
// taken and the caller gets ErrAlreadyInFlight.
type LockTable struct {
	mu   sync.Mutex
	held map[string]string // symbol -> holding attempt ID
}

// NewLockTable creates an empty table.
func NewLockTable() *LockTable {
	return &LockTable{held: make(map[string]string)}
}

// Acquire takes the lock for every symbol on behalf of attemptID.
func (t *LockTable) Acquire(symbols []string, attemptID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range symbols {
		if _, taken := t.held[s]; taken {
			return domain.ErrAlreadyInFlight
		}
	}
	for _, s := range symbols {
		t.held[s] = attemptID
	}
	return nil
}

// Release frees the symbols held by attemptID. Symbols held by a different
// attempt are left alone, so a late double release cannot break a successor.
func (t *LockTable) Release(symbols []string, attemptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range symbols {
		if t.held[s] == attemptID {
			delete(t.held, s)
		}
	}
}

// Held reports whether any attempt currently holds the lock for symbol.
func (t *LockTable) Held(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, taken := t.held[symbol]
	return taken
}
