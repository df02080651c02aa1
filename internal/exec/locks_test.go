package exec

import (
	"errors"
	"testing"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

func TestLockTableAcquireRelease(t *testing.T) {
	locks := NewLockTable()

	if err := locks.Acquire([]string{"BTCUSDT", "ETHUSDT"}, "a1"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !locks.Held("BTCUSDT") || !locks.Held("ETHUSDT") {
		t.Fatal("locks not held after acquire")
	}

	if err := locks.Acquire([]string{"BTCUSDT"}, "a2"); !errors.Is(err, domain.ErrAlreadyInFlight) {
		t.Fatalf("second acquire = %v, want ErrAlreadyInFlight", err)
	}

	locks.Release([]string{"BTCUSDT", "ETHUSDT"}, "a1")
	if locks.Held("BTCUSDT") || locks.Held("ETHUSDT") {
		t.Fatal("locks still held after release")
	}

	if err := locks.Acquire([]string{"BTCUSDT"}, "a2"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

// Acquisition is all-or-nothing: a conflict on one symbol leaves the others
// untaken.
func TestLockTableAtomicAcquire(t *testing.T) {
	locks := NewLockTable()

	if err := locks.Acquire([]string{"ETHUSDT"}, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := locks.Acquire([]string{"BTCUSDT", "ETHUSDT"}, "a2"); !errors.Is(err, domain.ErrAlreadyInFlight) {
		t.Fatalf("overlapping acquire = %v, want ErrAlreadyInFlight", err)
	}
	if locks.Held("BTCUSDT") {
		t.Fatal("failed acquire left a partial lock behind")
	}
}

// A stale release from a finished attempt must not free a successor's lock.
func TestLockTableReleaseOwnedOnly(t *testing.T) {
	locks := NewLockTable()

	if err := locks.Acquire([]string{"BTCUSDT"}, "a1"); err != nil {
		t.Fatal(err)
	}
	locks.Release([]string{"BTCUSDT"}, "a1")
	if err := locks.Acquire([]string{"BTCUSDT"}, "a2"); err != nil {
		t.Fatal(err)
	}

	locks.Release([]string{"BTCUSDT"}, "a1")
	if !locks.Held("BTCUSDT") {
		t.Fatal("stale release freed a lock owned by another attempt")
	}
}
