package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// MemoryStore is an in-process AttemptStore used by dry runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts []domain.ExecutionAttempt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(ctx context.Context, attempt domain.ExecutionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *MemoryStore) RecentAttempts(ctx context.Context, symbol string, window time.Duration) ([]domain.ExecutionAttempt, error) {
	cutoff := time.Now().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ExecutionAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := s.attempts[i]
		if a.StartedAt.Before(cutoff) {
			continue
		}
		for _, sym := range a.Symbols {
			if sym == symbol {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.attempts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ExecutionAttempt, 0, n)
	for i := len(s.attempts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.attempts[i])
	}
	return out, nil
}

var _ domain.AttemptStore = (*MemoryStore)(nil)
