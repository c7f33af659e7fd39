package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerCore is the orchestration component that composes EntryStore and
// AccountRegistry under a per-account mutual-exclusion discipline (§2,
// §5). All higher layers (HTTP handlers, CLI, tests) talk only to this.
type LedgerCore struct {
	repo     Repository
	accounts *AccountRegistry
	entries  *EntryStore
	locks    *lockTable
	clock    Clock
	notifier *Notifier
}

func NewLedgerCore(repo Repository, accounts *AccountRegistry, entries *EntryStore, clock Clock, notifier *Notifier) *LedgerCore {
	return &LedgerCore{
		repo:     repo,
		accounts: accounts,
		entries:  entries,
		locks:    newLockTable(),
		clock:    clock,
		notifier: notifier,
	}
}

func (c *LedgerCore) Accounts() *AccountRegistry { return c.accounts }
func (c *LedgerCore) Entries() *EntryStore       { return c.entries }

// CreateAccount delegates to the registry and emits AccountCreated.
func (c *LedgerCore) CreateAccount(ctx context.Context, name, notes string) (*Account, error) {
	a, err := c.accounts.Create(ctx, name, notes)
	if err != nil {
		return nil, err
	}
	c.notifier.publish(Event{Kind: EventAccountCreated, AccountGuid: a.Guid})
	return a, nil
}

// DeleteAccount acquires the account lock for the duration of the cascade
// delete, per §5.
func (c *LedgerCore) DeleteAccount(ctx context.Context, guid uuid.UUID) error {
	release, err := c.locks.acquire(ctx, guid)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.accounts.ReadByGuid(ctx, guid); err != nil {
		return err
	}

	tx, err := c.repo.BeginTransaction(ctx)
	if err != nil {
		return InternalWrap("beginning transaction", err)
	}
	if err := c.accounts.Delete(ctx, tx, c.repo.Entries(), guid); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return InternalWrap("committing account delete", err)
	}

	c.notifier.publish(Event{Kind: EventAccountDeleted, AccountGuid: guid})
	return nil
}

// AddCredit adds a single Credit entry; AddDebit is its symmetric twin.
// See §4.3 for the already_committed synthetic-commit semantics.
func (c *LedgerCore) AddCredit(ctx context.Context, accountGuid uuid.UUID, amount decimal.Decimal, notes string, alreadyCommitted bool) (*Entry, error) {
	return c.addEntry(ctx, accountGuid, EntryCredit, amount, notes, alreadyCommitted)
}

func (c *LedgerCore) AddDebit(ctx context.Context, accountGuid uuid.UUID, amount decimal.Decimal, notes string, alreadyCommitted bool) (*Entry, error) {
	return c.addEntry(ctx, accountGuid, EntryDebit, amount, notes, alreadyCommitted)
}

// BatchItem is one element of a batch AddCredits/AddDebits call.
type BatchItem struct {
	Amount decimal.Decimal
	Notes  string
}

// AddCredits/AddDebits perform the same inserts under a single per-account
// lock so the observable order within the batch matches the input order.
func (c *LedgerCore) AddCredits(ctx context.Context, accountGuid uuid.UUID, items []BatchItem, alreadyCommitted bool) ([]*Entry, error) {
	return c.addEntries(ctx, accountGuid, EntryCredit, items, alreadyCommitted)
}

func (c *LedgerCore) AddDebits(ctx context.Context, accountGuid uuid.UUID, items []BatchItem, alreadyCommitted bool) ([]*Entry, error) {
	return c.addEntries(ctx, accountGuid, EntryDebit, items, alreadyCommitted)
}

func (c *LedgerCore) addEntry(ctx context.Context, accountGuid uuid.UUID, entryType EntryType, amount decimal.Decimal, notes string, alreadyCommitted bool) (*Entry, error) {
	entries, err := c.addEntries(ctx, accountGuid, entryType, []BatchItem{{Amount: amount, Notes: notes}}, alreadyCommitted)
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

func (c *LedgerCore) addEntries(ctx context.Context, accountGuid uuid.UUID, entryType EntryType, items []BatchItem, alreadyCommitted bool) ([]*Entry, error) {
	for _, it := range items {
		if !it.Amount.IsPositive() {
			return nil, InvalidArgument("amount must be greater than zero")
		}
	}

	release, err := c.locks.acquire(ctx, accountGuid)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := c.accounts.ReadByGuid(ctx, accountGuid); err != nil {
		return nil, err
	}

	if !alreadyCommitted {
		return c.insertPending(ctx, accountGuid, entryType, items)
	}
	return c.insertAlreadyCommitted(ctx, accountGuid, entryType, items)
}

func (c *LedgerCore) insertPending(ctx context.Context, accountGuid uuid.UUID, entryType EntryType, items []BatchItem) ([]*Entry, error) {
	tx, err := c.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, InternalWrap("beginning transaction", err)
	}

	now := c.clock.Now()
	result := make([]*Entry, 0, len(items))
	for _, it := range items {
		entry := &Entry{
			Guid:        uuid.New(),
			AccountGuid: accountGuid,
			Type:        entryType,
			Amount:      it.Amount,
			Notes:       it.Notes,
			IsCommitted: false,
			CreatedUtc:  now,
		}
		if err := c.entries.Insert(ctx, tx, entry); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
		result = append(result, entry)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, InternalWrap("committing entry insert", err)
	}

	kind := EventCreditAdded
	if entryType == EntryDebit {
		kind = EventDebitAdded
	}
	for _, e := range result {
		c.notifier.publish(Event{Kind: kind, AccountGuid: accountGuid, EntryGuid: e.Guid})
	}
	return result, nil
}

// insertAlreadyCommitted synthesizes a full commit containing only the new
// entries, per §4.3's data-seeding path: it creates a new Balance entry
// and links the new Credit/Debit entries to it directly, without ever
// passing through the pending state. This keeps I5 intact and must never
// backfill into an existing Balance row (§9's open-question resolution).
func (c *LedgerCore) insertAlreadyCommitted(ctx context.Context, accountGuid uuid.UUID, entryType EntryType, items []BatchItem) ([]*Entry, error) {
	prev, err := c.entries.LatestBalance(ctx, accountGuid)
	if err != nil {
		return nil, err
	}
	prevAmount := zeroDecimal()
	var prevGuid *uuid.UUID
	if prev != nil {
		prevAmount = prev.Amount
		g := prev.Guid
		prevGuid = &g
	}

	delta := zeroDecimal()
	for _, it := range items {
		if entryType == EntryCredit {
			delta = delta.Add(it.Amount)
		} else {
			delta = delta.Sub(it.Amount)
		}
	}
	newAmount := prevAmount.Add(delta)

	tx, err := c.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, InternalWrap("beginning transaction", err)
	}

	now := c.clock.Now()
	balance := &Entry{
		Guid:         uuid.New(),
		AccountGuid:  accountGuid,
		Type:         EntryBalance,
		Amount:       newAmount,
		Replaces:     prevGuid,
		IsCommitted:  true,
		CommittedUtc: &now,
		CreatedUtc:   now,
	}
	if err := c.entries.Insert(ctx, tx, balance); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	result := make([]*Entry, 0, len(items))
	committedGuids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		entry := &Entry{
			Guid:            uuid.New(),
			AccountGuid:     accountGuid,
			Type:            entryType,
			Amount:          it.Amount,
			Notes:           it.Notes,
			IsCommitted:     true,
			CommittedByGuid: &balance.Guid,
			CommittedUtc:    &now,
			CreatedUtc:      now,
		}
		if err := c.entries.Insert(ctx, tx, entry); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
		result = append(result, entry)
		committedGuids = append(committedGuids, entry.Guid)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, InternalWrap("committing synthetic commit", err)
	}

	c.notifier.publish(Event{
		Kind:             EventEntriesCommitted,
		AccountGuid:      accountGuid,
		BalanceGuid:      balance.Guid,
		CommittedEntries: committedGuids,
		CommittedBalance: newAmount,
	})
	return result, nil
}

// Commit is the central algorithm of §4.4: it atomically converts a set of
// pending Credit/Debit entries into committed state while producing a new
// Balance entry that extends the per-account balance chain.
func (c *LedgerCore) Commit(ctx context.Context, accountGuid uuid.UUID, entryGuids []uuid.UUID) (*Balance, error) {
	release, err := c.locks.acquire(ctx, accountGuid)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := c.accounts.ReadByGuid(ctx, accountGuid); err != nil {
		return nil, err
	}

	candidates, err := c.resolveCommitCandidates(ctx, accountGuid, entryGuids)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return c.currentBalanceLocked(ctx, accountGuid)
	}

	prev, err := c.entries.LatestBalance(ctx, accountGuid)
	if err != nil {
		return nil, err
	}
	prevAmount := zeroDecimal()
	var prevGuid *uuid.UUID
	if prev != nil {
		prevAmount = prev.Amount
		g := prev.Guid
		prevGuid = &g
	}

	delta := zeroDecimal()
	for _, e := range candidates {
		if e.Type == EntryCredit {
			delta = delta.Add(e.Amount)
		} else {
			delta = delta.Sub(e.Amount)
		}
	}
	newAmount := prevAmount.Add(delta)

	tx, err := c.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, InternalWrap("beginning transaction", err)
	}

	now := c.clock.Now()
	balance := &Entry{
		Guid:         uuid.New(),
		AccountGuid:  accountGuid,
		Type:         EntryBalance,
		Amount:       newAmount,
		Replaces:     prevGuid,
		IsCommitted:  true,
		CommittedUtc: &now,
		CreatedUtc:   now,
	}
	if err := c.entries.Insert(ctx, tx, balance); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	guids := make([]uuid.UUID, len(candidates))
	for i, e := range candidates {
		guids[i] = e.Guid
	}
	if err := c.entries.MarkCommitted(ctx, tx, accountGuid, guids, balance.Guid, now); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, InternalWrap("committing", err)
	}

	c.notifier.publish(Event{
		Kind:             EventEntriesCommitted,
		AccountGuid:      accountGuid,
		BalanceGuid:      balance.Guid,
		CommittedEntries: guids,
		CommittedBalance: newAmount,
	})

	return c.currentBalanceLocked(ctx, accountGuid)
}

// resolveCommitCandidates selects the pending entries a Commit call will
// act on: either all currently pending entries, or an explicit list, which
// must each exist, belong to the account, be Credit/Debit, and be pending
// (§4.4 step 1). Duplicate guids collapse to a single occurrence.
func (c *LedgerCore) resolveCommitCandidates(ctx context.Context, accountGuid uuid.UUID, entryGuids []uuid.UUID) ([]*Entry, error) {
	if len(entryGuids) == 0 {
		return c.entries.ListByAccount(ctx, accountGuid, EntryFilter{IsCommitted: boolPtr(false)})
	}

	seen := make(map[uuid.UUID]bool, len(entryGuids))
	unique := make([]uuid.UUID, 0, len(entryGuids))
	for _, g := range entryGuids {
		if !seen[g] {
			seen[g] = true
			unique = append(unique, g)
		}
	}

	candidates := make([]*Entry, 0, len(unique))
	for _, g := range unique {
		e, err := c.entries.GetByGuid(ctx, accountGuid, g)
		if err != nil {
			return nil, Conflict("one or more entry guids are invalid for this commit")
		}
		if !e.IsCreditOrDebit() || e.IsCommitted {
			return nil, Conflict("one or more entries are not pending Credit/Debit entries")
		}
		candidates = append(candidates, e)
	}
	return candidates, nil
}

func boolPtr(b bool) *bool { return &b }

// currentBalanceLocked computes the derived Balance view under the
// assumption the caller already holds the account lock (or doesn't need
// to, for read-only callers).
func (c *LedgerCore) currentBalanceLocked(ctx context.Context, accountGuid uuid.UUID) (*Balance, error) {
	latest, err := c.entries.LatestBalance(ctx, accountGuid)
	if err != nil {
		return nil, err
	}

	pendingCredits, err := c.entries.ListByAccount(ctx, accountGuid, EntryFilter{Type: typePtr(EntryCredit), IsCommitted: boolPtr(false)})
	if err != nil {
		return nil, err
	}
	pendingDebits, err := c.entries.ListByAccount(ctx, accountGuid, EntryFilter{Type: typePtr(EntryDebit), IsCommitted: boolPtr(false)})
	if err != nil {
		return nil, err
	}

	committed := zeroDecimal()
	var entryGuid *uuid.UUID
	var committedEntries []uuid.UUID
	if latest != nil {
		committed = latest.Amount
		g := latest.Guid
		entryGuid = &g
		committedEntries, err = c.committedBy(ctx, accountGuid, g)
		if err != nil {
			return nil, err
		}
	}

	pendingBalance := committed
	for _, e := range pendingCredits {
		pendingBalance = pendingBalance.Add(e.Amount)
	}
	for _, e := range pendingDebits {
		pendingBalance = pendingBalance.Sub(e.Amount)
	}

	return &Balance{
		AccountGuid:        accountGuid,
		CommittedBalance:   committed,
		PendingBalance:     pendingBalance,
		PendingCreditCount: len(pendingCredits),
		PendingDebitCount:  len(pendingDebits),
		EntryGuid:          entryGuid,
		CommittedEntries:   committedEntries,
	}, nil
}

func (c *LedgerCore) committedBy(ctx context.Context, accountGuid, balanceGuid uuid.UUID) ([]uuid.UUID, error) {
	all, err := c.entries.ListByAccount(ctx, accountGuid, EntryFilter{IsCommitted: boolPtr(true)})
	if err != nil {
		return nil, err
	}
	var guids []uuid.UUID
	for _, e := range all {
		if e.IsCreditOrDebit() && e.CommittedByGuid != nil && *e.CommittedByGuid == balanceGuid {
			guids = append(guids, e.Guid)
		}
	}
	return guids, nil
}

func typePtr(t EntryType) *EntryType { return &t }

// GetBalance returns the derived Balance view. Read-only; does not take
// the account lock (§5).
func (c *LedgerCore) GetBalance(ctx context.Context, accountGuid uuid.UUID) (*Balance, error) {
	if _, err := c.accounts.ReadByGuid(ctx, accountGuid); err != nil {
		return nil, err
	}
	return c.currentBalanceLocked(ctx, accountGuid)
}

// BalanceAsOf returns the committed balance observed at UTC instant t
// (§4.6). Read-only; does not take the account lock.
func (c *LedgerCore) BalanceAsOf(ctx context.Context, accountGuid uuid.UUID, t time.Time) (decimal.Decimal, error) {
	if _, err := c.accounts.ReadByGuid(ctx, accountGuid); err != nil {
		return decimal.Decimal{}, err
	}

	balances, err := c.entries.ListByAccount(ctx, accountGuid, EntryFilter{Type: typePtr(EntryBalance)})
	if err != nil {
		return decimal.Decimal{}, err
	}

	var best *Entry
	for _, b := range balances {
		if b.CreatedUtc.After(t) {
			continue
		}
		if best == nil || b.CreatedUtc.After(best.CreatedUtc) {
			best = b
		}
	}
	if best == nil {
		return zeroDecimal(), nil
	}
	return best.Amount, nil
}

// VerifyBalanceChain walks the Balance chain from genesis forward,
// verifying both link integrity and per-Balance arithmetic (§4.6). It
// acquires the account lock to obtain a consistent snapshot.
func (c *LedgerCore) VerifyBalanceChain(ctx context.Context, accountGuid uuid.UUID) (bool, error) {
	release, err := c.locks.acquire(ctx, accountGuid)
	if err != nil {
		return false, err
	}
	defer release()

	balances, err := c.entries.ListByAccount(ctx, accountGuid, EntryFilter{Type: typePtr(EntryBalance)})
	if err != nil {
		return false, err
	}
	sort.Slice(balances, func(i, j int) bool {
		if !balances[i].CreatedUtc.Equal(balances[j].CreatedUtc) {
			return balances[i].CreatedUtc.Before(balances[j].CreatedUtc)
		}
		return balances[i].Guid.String() < balances[j].Guid.String()
	})

	var genesisCount int
	var chain []*Entry
	for _, b := range balances {
		if b.Replaces == nil {
			genesisCount++
		}
	}
	if genesisCount > 1 {
		return false, nil
	}

	// Walk forward from genesis following replaces backlinks.
	var genesis *Entry
	for _, b := range balances {
		if b.Replaces == nil {
			genesis = b
		}
	}
	if genesis == nil {
		return len(balances) == 0, nil
	}

	nextOf := make(map[uuid.UUID]*Entry)
	for _, b := range balances {
		if b.Replaces != nil {
			if _, dup := nextOf[*b.Replaces]; dup {
				return false, nil // branching chain
			}
			nextOf[*b.Replaces] = b
		}
	}

	cur := genesis
	for cur != nil {
		chain = append(chain, cur)
		cur = nextOf[cur.Guid]
	}
	if len(chain) != len(balances) {
		return false, nil // disconnected balance row
	}

	prevAmount := zeroDecimal()
	for _, b := range chain {
		committed, err := c.committedBy(ctx, accountGuid, b.Guid)
		if err != nil {
			return false, err
		}
		sum := zeroDecimal()
		for _, g := range committed {
			e, err := c.entries.GetByGuid(ctx, accountGuid, g)
			if err != nil {
				return false, err
			}
			if e.Type == EntryCredit {
				sum = sum.Add(e.Amount)
			} else {
				sum = sum.Sub(e.Amount)
			}
		}
		if !b.Amount.Equal(prevAmount.Add(sum)) {
			return false, nil
		}
		prevAmount = b.Amount
	}

	return true, nil
}

// CancelPending deletes a pending Credit/Debit entry (§4.7).
func (c *LedgerCore) CancelPending(ctx context.Context, accountGuid, entryGuid uuid.UUID) error {
	release, err := c.locks.acquire(ctx, accountGuid)
	if err != nil {
		return err
	}
	defer release()

	if err := c.entries.Delete(ctx, accountGuid, entryGuid); err != nil {
		return err
	}
	c.notifier.publish(Event{Kind: EventEntryCanceled, AccountGuid: accountGuid, EntryGuid: entryGuid})
	return nil
}

// EnumerateEntries is a read-only pass-through to EntryStore.Enumerate.
func (c *LedgerCore) EnumerateEntries(ctx context.Context, accountGuid uuid.UUID, q EntryQuery) (Page[*Entry], error) {
	if _, err := c.accounts.ReadByGuid(ctx, accountGuid); err != nil {
		return Page[*Entry]{}, err
	}
	return c.entries.Enumerate(ctx, accountGuid, q)
}

// EnumerateAccounts is a read-only pass-through to AccountRegistry.Enumerate.
func (c *LedgerCore) EnumerateAccounts(ctx context.Context, q AccountQuery) (Page[*Account], error) {
	return c.accounts.Enumerate(ctx, q)
}

