package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// lockTable is the per-account mutual exclusion primitive required by §5.
// It is a process-lifetime shared resource: entries are created lazily on
// first use and are never removed, which is simpler than reference
// counting and is bounded in practice by the number of accounts (§5, §9).
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (t *lockTable) entry(guid uuid.UUID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.locks[guid]
	if !ok {
		m = &sync.Mutex{}
		t.locks[guid] = m
	}
	return m
}

// acquire blocks until the per-account lock for guid is held or ctx is
// canceled. Lock acquisition is itself a suspension point (§5); the
// returned release func must always be called, exactly once, on success.
func (t *lockTable) acquire(ctx context.Context, guid uuid.UUID) (func(), error) {
	m := t.entry(guid)

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine above will still acquire the lock eventually and
		// release it would then panic on double-unlock; instead we let it
		// acquire and immediately release on our behalf once it does.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, wrapErr(KindTimeout, "lock acquisition canceled", ctx.Err())
	}
}
