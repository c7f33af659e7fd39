package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStore is the layer over the persistence adapter that understands
// entry semantics: types, the committed/pending flag, and the replaces
// backlink used to form the balance chain (§4.1). It performs the decimal
// arithmetic balance derivation requires but holds no locks of its own —
// callers that need cross-call consistency acquire the account lock
// themselves (LedgerCore does this).
type EntryStore struct {
	repo EntryRepository
}

func NewEntryStore(repo EntryRepository) *EntryStore {
	return &EntryStore{repo: repo}
}

// Insert persists entry, rejecting it with InvalidArgument on a negative
// amount, an unknown type, or a breach of I2-I4's commit-field rules
// (Balance entries committed with no committed_by_guid; committed
// Credit/Debit entries carrying committed_by_guid and committed_utc;
// pending ones carrying neither). It does not check that Replaces or
// CommittedByGuid name an existing Balance entry on the same account, nor
// that Replaces is unset on Credit/Debit entries. Credit/Debit entries from external callers normally arrive
// pending; the already-committed seeding path (§4.3) is driven by the
// caller pre-populating IsCommitted/CommittedByGuid/CommittedUtc before
// calling Insert from within LedgerCore's synthetic-commit transaction.
func (s *EntryStore) Insert(ctx context.Context, tx Tx, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	return s.repo.Create(ctx, tx, entry)
}

func validateEntry(e *Entry) *Error {
	if e.Amount.IsNegative() {
		return InvalidArgument("amount cannot be negative")
	}
	if !e.Type.valid() {
		return InvalidArgument("invalid entry type")
	}

	switch e.Type {
	case EntryBalance:
		if !e.IsCommitted {
			return InvalidArgument("balance entries must be committed")
		}
		if e.CommittedByGuid != nil {
			return InvalidArgument("balance entries cannot have committed_by_guid")
		}
	case EntryCredit, EntryDebit:
		if e.IsCommitted {
			if e.CommittedByGuid == nil {
				return InvalidArgument("committed credit/debit entries require committed_by_guid")
			}
			if e.CommittedUtc == nil {
				return InvalidArgument("committed credit/debit entries require committed_utc")
			}
		} else {
			if e.CommittedByGuid != nil || e.CommittedUtc != nil {
				return InvalidArgument("pending credit/debit entries cannot carry commit fields")
			}
		}
	}
	return nil
}

// GetByGuid returns the entry or NotFound if it does not belong to
// accountGuid.
func (s *EntryStore) GetByGuid(ctx context.Context, accountGuid, entryGuid uuid.UUID) (*Entry, error) {
	e, err := s.repo.ReadByGuid(ctx, entryGuid)
	if err != nil {
		return nil, err
	}
	if e == nil || e.AccountGuid != accountGuid {
		return nil, NotFound("entry not found")
	}
	return e, nil
}

// ListByAccount returns entries matching filter, ordered by created_utc
// ascending then guid ascending for determinism.
func (s *EntryStore) ListByAccount(ctx context.Context, accountGuid uuid.UUID, filter EntryFilter) ([]*Entry, error) {
	entries, err := s.repo.ReadByAccount(ctx, accountGuid, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedUtc.Equal(entries[j].CreatedUtc) {
			return entries[i].CreatedUtc.Before(entries[j].CreatedUtc)
		}
		return entries[i].Guid.String() < entries[j].Guid.String()
	})
	return entries, nil
}

// Enumerate applies EntryQuery's pagination contract over ListByAccount's
// result, per §4.5.
func (s *EntryStore) Enumerate(ctx context.Context, accountGuid uuid.UUID, q EntryQuery) (Page[*Entry], error) {
	q.normalize()

	filter := EntryFilter{
		CreatedAfterUtc:  q.CreatedAfterUtc,
		CreatedBeforeUtc: q.CreatedBeforeUtc,
		AmountMin:        q.AmountMin,
		AmountMax:        q.AmountMax,
		Type:             q.Type,
		IsCommitted:      q.IsCommitted,
	}

	entries, err := s.repo.ReadByAccount(ctx, accountGuid, filter)
	if err != nil {
		return Page[*Entry]{}, err
	}

	sortEntries(entries, q.Ordering)

	skip := q.Skip
	if q.ContinuationToken != nil {
		for i, e := range entries {
			if e.Guid == *q.ContinuationToken {
				skip = i + 1
				break
			}
		}
	}

	return newPage(entries, skip, q.MaxResults, func(e *Entry) uuid.UUID { return e.Guid }), nil
}

func sortEntries(entries []*Entry, ordering Ordering) {
	less := func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch ordering {
		case CreatedAscending:
			if !a.CreatedUtc.Equal(b.CreatedUtc) {
				return a.CreatedUtc.Before(b.CreatedUtc)
			}
		case AmountAscending:
			if !a.Amount.Equal(b.Amount) {
				return a.Amount.LessThan(b.Amount)
			}
		case AmountDescending:
			if !a.Amount.Equal(b.Amount) {
				return a.Amount.GreaterThan(b.Amount)
			}
		default: // CreatedDescending
			if !a.CreatedUtc.Equal(b.CreatedUtc) {
				return a.CreatedUtc.After(b.CreatedUtc)
			}
		}
		return a.Guid.String() < b.Guid.String()
	}
	sort.SliceStable(entries, less)
}

// LatestBalance returns the Balance entry with the greatest created_utc,
// tiebroken by guid, or nil if the account has none (§4.1).
func (s *EntryStore) LatestBalance(ctx context.Context, accountGuid uuid.UUID) (*Entry, error) {
	return s.repo.LatestBalance(ctx, accountGuid)
}

// SumPending returns the decimal sum of pending amounts of the given type.
func (s *EntryStore) SumPending(ctx context.Context, accountGuid uuid.UUID, entryType EntryType) (decimal.Decimal, error) {
	return s.repo.SumByType(ctx, accountGuid, entryType, false)
}

// MarkCommitted tags each listed entry with balanceGuid/committedUtc,
// provided every one exists, belongs to the account, is Credit or Debit,
// and is currently pending (§4.1). The whole batch fails with Conflict
// otherwise.
func (s *EntryStore) MarkCommitted(ctx context.Context, tx Tx, accountGuid uuid.UUID, entryGuids []uuid.UUID, balanceGuid uuid.UUID, committedUtc time.Time) error {
	return s.repo.MarkCommitted(ctx, tx, accountGuid, entryGuids, balanceGuid, committedUtc)
}

// Delete removes a pending Credit/Debit entry. Committed entries and
// Balance entries may not be deleted individually (§4.1).
func (s *EntryStore) Delete(ctx context.Context, accountGuid, entryGuid uuid.UUID) error {
	entry, err := s.GetByGuid(ctx, accountGuid, entryGuid)
	if err != nil {
		return err
	}
	if entry.Type == EntryBalance {
		return Conflict("balance entries cannot be deleted individually")
	}
	if entry.IsCommitted {
		return Conflict("committed entries cannot be deleted")
	}
	return s.repo.Delete(ctx, accountGuid, entryGuid)
}
