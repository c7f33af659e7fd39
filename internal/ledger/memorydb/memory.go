// Package memorydb provides an in-memory implementation of
// ledger.Repository, used by the core's unit and concurrency test suites
// so invariants can be checked without a live database. It is grounded on
// the pack's in-memory store pattern (a single sync.RWMutex guarding plain
// Go maps, with a no-op transaction scope; see tx below).
package memorydb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netledger/netledger/internal/ledger"
)

// Store is the in-memory ledger.Repository implementation.
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]ledger.Account
	entries  map[uuid.UUID]ledger.Entry
	apikeys  map[uuid.UUID]ledger.ApiKey
}

func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]ledger.Account),
		entries:  make(map[uuid.UUID]ledger.Entry),
		apikeys:  make(map[uuid.UUID]ledger.ApiKey),
	}
}

func (s *Store) Accounts() ledger.AccountRepository { return &accountRepo{s} }
func (s *Store) Entries() ledger.EntryRepository    { return &entryRepo{s} }
func (s *Store) ApiKeys() ledger.ApiKeyRepository   { return &apiKeyRepo{s} }

// Ping always succeeds, satisfying the health handler's DatabasePinger
// interface for in-memory deployments (tests, local development).
func (s *Store) Ping(context.Context) error { return nil }

// tx is a no-op transactional scope: every mutation in this store takes
// the write lock directly, so a "transaction" here is just a marker that
// lets call sites use the same Begin/Commit/Rollback shape the Postgres
// adapter requires. Nothing is staged or rolled back in memory because
// every individual repository call is already atomic under s.mu.
type tx struct{}

func (tx) Commit(context.Context) error   { return nil }
func (tx) Rollback(context.Context) error { return nil }

func (s *Store) BeginTransaction(context.Context) (ledger.Tx, error) {
	return tx{}, nil
}

// --- accounts ---

type accountRepo struct{ s *Store }

func (r *accountRepo) Create(_ context.Context, a *ledger.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[a.Guid] = *a
	return nil
}

func (r *accountRepo) ReadByGuid(_ context.Context, guid uuid.UUID) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[guid]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *accountRepo) ReadByName(_ context.Context, name string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.Name == name {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *accountRepo) ReadAll(_ context.Context) ([]*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*ledger.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		cp := a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *accountRepo) SearchByName(_ context.Context, term string) ([]*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	term = strings.ToLower(term)
	var out []*ledger.Account
	for _, a := range r.s.accounts {
		if strings.Contains(strings.ToLower(a.Name), term) {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *accountRepo) Update(_ context.Context, a *ledger.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[a.Guid] = *a
	return nil
}

func (r *accountRepo) Delete(_ context.Context, guid uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.accounts, guid)
	return nil
}

func (r *accountRepo) ExistsByGuid(_ context.Context, guid uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.accounts[guid]
	return ok, nil
}

func (r *accountRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepo) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.accounts), nil
}

// --- entries ---

type entryRepo struct{ s *Store }

func (r *entryRepo) Create(_ context.Context, _ ledger.Tx, e *ledger.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.entries[e.Guid] = *e
	return nil
}

func (r *entryRepo) ReadByGuid(_ context.Context, guid uuid.UUID) (*ledger.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entries[guid]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *entryRepo) ReadByAccount(_ context.Context, accountGuid uuid.UUID, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*ledger.Entry
	for _, e := range r.s.entries {
		if e.AccountGuid != accountGuid {
			continue
		}
		if !matches(&e, filter) {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	return out, nil
}

func matches(e *ledger.Entry, f ledger.EntryFilter) bool {
	if f.CreatedAfterUtc != nil && e.CreatedUtc.Before(*f.CreatedAfterUtc) {
		return false
	}
	if f.CreatedBeforeUtc != nil && e.CreatedUtc.After(*f.CreatedBeforeUtc) {
		return false
	}
	if f.AmountMin != nil && e.Amount.LessThan(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && e.Amount.GreaterThan(*f.AmountMax) {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.IsCommitted != nil && e.IsCommitted != *f.IsCommitted {
		return false
	}
	return true
}

func (r *entryRepo) SumByType(_ context.Context, accountGuid uuid.UUID, entryType ledger.EntryType, isCommitted bool) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sum := decimal.NewFromInt(0)
	for _, e := range r.s.entries {
		if e.AccountGuid == accountGuid && e.Type == entryType && e.IsCommitted == isCommitted {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (r *entryRepo) LatestBalance(_ context.Context, accountGuid uuid.UUID) (*ledger.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *ledger.Entry
	for _, e := range r.s.entries {
		if e.AccountGuid != accountGuid || e.Type != ledger.EntryBalance {
			continue
		}
		cp := e
		if best == nil || cp.CreatedUtc.After(best.CreatedUtc) ||
			(cp.CreatedUtc.Equal(best.CreatedUtc) && cp.Guid.String() > best.Guid.String()) {
			best = &cp
		}
	}
	return best, nil
}

func (r *entryRepo) MarkCommitted(_ context.Context, _ ledger.Tx, accountGuid uuid.UUID, entryGuids []uuid.UUID, balanceGuid uuid.UUID, committedUtc time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, g := range entryGuids {
		e, ok := r.s.entries[g]
		if !ok || e.AccountGuid != accountGuid || !e.IsCreditOrDebit() || e.IsCommitted {
			return ledger.Conflict("entry not eligible for commit")
		}
	}
	for _, g := range entryGuids {
		e := r.s.entries[g]
		e.IsCommitted = true
		bg := balanceGuid
		e.CommittedByGuid = &bg
		cu := committedUtc
		e.CommittedUtc = &cu
		r.s.entries[g] = e
	}
	return nil
}

func (r *entryRepo) Delete(_ context.Context, _ uuid.UUID, entryGuid uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.entries, entryGuid)
	return nil
}

func (r *entryRepo) DeleteByAccount(_ context.Context, _ ledger.Tx, accountGuid uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for g, e := range r.s.entries {
		if e.AccountGuid == accountGuid {
			delete(r.s.entries, g)
		}
	}
	return nil
}

// --- api keys ---

type apiKeyRepo struct{ s *Store }

func (r *apiKeyRepo) Create(_ context.Context, k *ledger.ApiKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.apikeys[k.Guid] = *k
	return nil
}

func (r *apiKeyRepo) ReadByGuid(_ context.Context, guid uuid.UUID) (*ledger.ApiKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	k, ok := r.s.apikeys[guid]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

func (r *apiKeyRepo) ReadByKeyHash(_ context.Context, hash string) (*ledger.ApiKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, k := range r.s.apikeys {
		if k.KeyHash == hash {
			cp := k
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *apiKeyRepo) Delete(_ context.Context, guid uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.apikeys, guid)
	return nil
}
