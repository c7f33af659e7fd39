package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// AccountRegistry is the layer over the persistence adapter for account
// lifecycle and name/guid lookup (§4.2). Its balance-range filter needs
// each candidate's committed balance, so it holds a reference to the
// EntryStore purely for that read-only computation.
type AccountRegistry struct {
	repo    AccountRepository
	entries *EntryStore
	clock   Clock
}

func NewAccountRegistry(repo AccountRepository, entries *EntryStore, clock Clock) *AccountRegistry {
	return &AccountRegistry{repo: repo, entries: entries, clock: clock}
}

// Create inserts a new Account, failing with Conflict if the exact name is
// already taken.
func (r *AccountRegistry) Create(ctx context.Context, name, notes string) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, InvalidArgument("account name must not be empty")
	}

	exists, err := r.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, InternalWrap("checking account name uniqueness", err)
	}
	if exists {
		return nil, Conflict("an account with this name already exists")
	}

	account := &Account{
		Guid:       uuid.New(),
		Name:       name,
		Notes:      notes,
		CreatedUtc: r.clock.Now(),
	}
	if err := r.repo.Create(ctx, account); err != nil {
		return nil, InternalWrap("creating account", err)
	}
	return account, nil
}

func (r *AccountRegistry) ReadByGuid(ctx context.Context, guid uuid.UUID) (*Account, error) {
	a, err := r.repo.ReadByGuid(ctx, guid)
	if err != nil {
		return nil, InternalWrap("reading account", err)
	}
	if a == nil {
		return nil, NotFound("account not found")
	}
	return a, nil
}

func (r *AccountRegistry) ReadByName(ctx context.Context, name string) (*Account, error) {
	a, err := r.repo.ReadByName(ctx, name)
	if err != nil {
		return nil, InternalWrap("reading account", err)
	}
	if a == nil {
		return nil, NotFound("account not found")
	}
	return a, nil
}

// Enumerate returns paginated accounts matching an optional name substring
// and/or committed-balance range. Per §4.2, when a balance filter is in
// play every candidate's committed balance must be computed before the
// page can be sliced, since the predicate isn't expressible by the
// persistence layer alone.
func (r *AccountRegistry) Enumerate(ctx context.Context, q AccountQuery) (Page[*Account], error) {
	q.normalize()

	var candidates []*Account
	var err error
	if q.SearchTerm != "" {
		candidates, err = r.repo.SearchByName(ctx, q.SearchTerm)
	} else {
		candidates, err = r.repo.ReadAll(ctx)
	}
	if err != nil {
		return Page[*Account]{}, InternalWrap("listing accounts", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedUtc.Equal(candidates[j].CreatedUtc) {
			if q.Ordering == CreatedAscending {
				return candidates[i].CreatedUtc.Before(candidates[j].CreatedUtc)
			}
			return candidates[i].CreatedUtc.After(candidates[j].CreatedUtc)
		}
		return candidates[i].Guid.String() < candidates[j].Guid.String()
	})

	if q.BalanceMin != nil || q.BalanceMax != nil {
		filtered := candidates[:0]
		for _, a := range candidates {
			bal, err := r.entries.LatestBalance(ctx, a.Guid)
			if err != nil {
				return Page[*Account]{}, InternalWrap("computing balance for filter", err)
			}
			amount := zeroDecimal()
			if bal != nil {
				amount = bal.Amount
			}
			if q.BalanceMin != nil && amount.LessThan(*q.BalanceMin) {
				continue
			}
			if q.BalanceMax != nil && amount.GreaterThan(*q.BalanceMax) {
				continue
			}
			filtered = append(filtered, a)
		}
		candidates = filtered
	}

	skip := q.Skip
	if q.ContinuationToken != nil {
		for i, a := range candidates {
			if a.Guid == *q.ContinuationToken {
				skip = i + 1
				break
			}
		}
	}

	return newPage(candidates, skip, q.MaxResults, func(a *Account) uuid.UUID { return a.Guid }), nil
}

// Delete removes the account and every entry it owns in a single
// persistence transaction (§3's ownership rule, §4.2). The caller
// (LedgerCore) is responsible for holding the account lock for the
// duration of the cascade and for emitting the AccountDeleted
// notification afterward.
func (r *AccountRegistry) Delete(ctx context.Context, tx Tx, entryRepo EntryRepository, guid uuid.UUID) error {
	if err := entryRepo.DeleteByAccount(ctx, tx, guid); err != nil {
		return InternalWrap("deleting account entries", err)
	}
	if err := r.repo.Delete(ctx, guid); err != nil {
		return InternalWrap("deleting account", err)
	}
	return nil
}
