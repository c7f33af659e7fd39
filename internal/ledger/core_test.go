package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/internal/ledger/memorydb"
)

func newTestCore(t *testing.T) *ledger.LedgerCore {
	t.Helper()
	return newTestCoreWithClock(t, ledger.RealClock{})
}

func newTestCoreWithClock(t *testing.T, clock ledger.Clock) *ledger.LedgerCore {
	t.Helper()
	store := memorydb.New()
	entries := ledger.NewEntryStore(store.Entries())
	accounts := ledger.NewAccountRegistry(store.Accounts(), entries, clock)
	return ledger.NewLedgerCore(store, accounts, entries, clock, ledger.NewNotifier(nil))
}

func mustCreateAccount(t *testing.T, core *ledger.LedgerCore, name string) *ledger.Account {
	t.Helper()
	a, err := core.CreateAccount(context.Background(), name, "")
	require.NoError(t, err)
	return a
}

func TestCreateAccount_DuplicateNameRejected(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	_, err := core.CreateAccount(ctx, "checking", "")
	require.NoError(t, err)

	_, err = core.CreateAccount(ctx, "checking", "")
	require.Error(t, err)
	lerr, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindConflict, lerr.Kind)
}

func TestAddCredit_RejectsNonPositiveAmount(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	_, err := core.AddCredit(ctx, account.Guid, decimal.Zero, "", false)
	require.Error(t, err)
	lerr, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindInvalidArgument, lerr.Kind)

	_, err = core.AddCredit(ctx, account.Guid, decimal.NewFromInt(-5), "", false)
	require.Error(t, err)
}

func TestAddCreditThenCommit_ProducesExpectedBalance(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	credit, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(100), "deposit", false)
	require.NoError(t, err)
	assert.False(t, credit.IsCommitted)

	balance, err := core.Commit(ctx, account.Guid, []uuid.UUID{credit.Guid})
	require.NoError(t, err)
	assert.True(t, balance.CommittedBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, balance.PendingBalance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, balance.PendingCreditCount)
}

func TestCommit_WithNoExplicitGuids_CommitsAllPending(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	_, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(50), "", false)
	require.NoError(t, err)
	_, err = core.AddDebit(ctx, account.Guid, decimal.NewFromInt(20), "", false)
	require.NoError(t, err)

	balance, err := core.Commit(ctx, account.Guid, nil)
	require.NoError(t, err)
	assert.True(t, balance.CommittedBalance.Equal(decimal.NewFromInt(30)))
}

func TestCommit_RejectsEntryFromAnotherAccount(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	a1 := mustCreateAccount(t, core, "a1")
	a2 := mustCreateAccount(t, core, "a2")

	entry, err := core.AddCredit(ctx, a1.Guid, decimal.NewFromInt(10), "", false)
	require.NoError(t, err)

	_, err = core.Commit(ctx, a2.Guid, []uuid.UUID{entry.Guid})
	require.Error(t, err)
	lerr, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindConflict, lerr.Kind)
}

func TestCommit_RejectsAlreadyCommittedEntry(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	entry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(10), "", false)
	require.NoError(t, err)
	_, err = core.Commit(ctx, account.Guid, []uuid.UUID{entry.Guid})
	require.NoError(t, err)

	_, err = core.Commit(ctx, account.Guid, []uuid.UUID{entry.Guid})
	require.Error(t, err)
}

func TestAddCredit_AlreadyCommitted_SynthesizesBalanceWithoutBackfill(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	entry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(100), "opening balance", true)
	require.NoError(t, err)
	assert.True(t, entry.IsCommitted)
	require.NotNil(t, entry.CommittedByGuid)

	balance, err := core.GetBalance(ctx, account.Guid)
	require.NoError(t, err)
	assert.True(t, balance.CommittedBalance.Equal(decimal.NewFromInt(100)))

	// A second already-committed credit must create a new Balance row
	// that extends the chain, never rewrite the first.
	_, err = core.AddCredit(ctx, account.Guid, decimal.NewFromInt(50), "", true)
	require.NoError(t, err)

	balance, err = core.GetBalance(ctx, account.Guid)
	require.NoError(t, err)
	assert.True(t, balance.CommittedBalance.Equal(decimal.NewFromInt(150)))

	valid, err := core.VerifyBalanceChain(ctx, account.Guid)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestVerifyBalanceChain_EmptyAccountIsValid(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	valid, err := core.VerifyBalanceChain(ctx, account.Guid)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestCancelPending_RemovesEntryFromBalance(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	entry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(10), "", false)
	require.NoError(t, err)

	require.NoError(t, core.CancelPending(ctx, account.Guid, entry.Guid))

	balance, err := core.GetBalance(ctx, account.Guid)
	require.NoError(t, err)
	assert.True(t, balance.PendingBalance.IsZero())
	assert.Equal(t, 0, balance.PendingCreditCount)
}

func TestBalanceAsOf_ReturnsZeroBeforeFirstCommit(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	at := ledger.RealClock{}.Now()
	amount, err := core.BalanceAsOf(ctx, account.Guid, at)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestAddCredits_Batch_PreservesInputOrder(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	items := []ledger.BatchItem{
		{Amount: decimal.NewFromInt(1), Notes: "first"},
		{Amount: decimal.NewFromInt(2), Notes: "second"},
		{Amount: decimal.NewFromInt(3), Notes: "third"},
	}
	entries, err := core.AddCredits(ctx, account.Guid, items, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Notes)
	assert.Equal(t, "second", entries[1].Notes)
	assert.Equal(t, "third", entries[2].Notes)
}

func TestDeleteAccount_RemovesAccountAndEntries(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	_, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(10), "", false)
	require.NoError(t, err)

	require.NoError(t, core.DeleteAccount(ctx, account.Guid))

	_, err = core.GetBalance(ctx, account.Guid)
	require.Error(t, err)
	lerr, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindNotFound, lerr.Kind)
}

func TestEntryStore_Enumerate_PagesWithContinuationToken(t *testing.T) {
	clock := &ledger.SequenceClock{Start: time.Unix(0, 0).UTC(), Step: time.Second}
	core := newTestCoreWithClock(t, clock)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		entry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(int64(i+1)), "", false)
		require.NoError(t, err)
		created = append(created, entry.Guid)
	}

	page1, err := core.EnumerateEntries(ctx, account.Guid, ledger.EntryQuery{MaxResults: 2, Ordering: ledger.CreatedAscending})
	require.NoError(t, err)
	require.Len(t, page1.Objects, 2)
	assert.Equal(t, 5, page1.TotalRecords)
	assert.False(t, page1.EndOfResults)
	require.NotNil(t, page1.ContinuationToken)
	assert.Equal(t, created[0], page1.Objects[0].Guid)
	assert.Equal(t, created[1], page1.Objects[1].Guid)

	page2, err := core.EnumerateEntries(ctx, account.Guid, ledger.EntryQuery{
		MaxResults:        2,
		ContinuationToken: page1.ContinuationToken,
		Ordering:          ledger.CreatedAscending,
	})
	require.NoError(t, err)
	require.Len(t, page2.Objects, 2)
	assert.Equal(t, created[2], page2.Objects[0].Guid)
	assert.Equal(t, created[3], page2.Objects[1].Guid)
	assert.False(t, page2.EndOfResults)

	page3, err := core.EnumerateEntries(ctx, account.Guid, ledger.EntryQuery{
		MaxResults:        2,
		ContinuationToken: page2.ContinuationToken,
		Ordering:          ledger.CreatedAscending,
	})
	require.NoError(t, err)
	require.Len(t, page3.Objects, 1)
	assert.Equal(t, created[4], page3.Objects[0].Guid)
	assert.True(t, page3.EndOfResults)
	assert.Nil(t, page3.ContinuationToken)
	assert.Equal(t, 0, page3.RecordsRemaining)
}

func TestAccountRegistry_Enumerate_PagesWithContinuationToken(t *testing.T) {
	clock := &ledger.SequenceClock{Start: time.Unix(0, 0).UTC(), Step: time.Second}
	core := newTestCoreWithClock(t, clock)
	ctx := context.Background()

	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		account := mustCreateAccount(t, core, uuid.New().String())
		created = append(created, account.Guid)
	}

	page1, err := core.EnumerateAccounts(ctx, ledger.AccountQuery{MaxResults: 2, Ordering: ledger.CreatedAscending})
	require.NoError(t, err)
	require.Len(t, page1.Objects, 2)
	assert.Equal(t, 5, page1.TotalRecords)
	require.NotNil(t, page1.ContinuationToken)
	assert.Equal(t, created[0], page1.Objects[0].Guid)
	assert.Equal(t, created[1], page1.Objects[1].Guid)

	page2, err := core.EnumerateAccounts(ctx, ledger.AccountQuery{
		MaxResults:        2,
		ContinuationToken: page1.ContinuationToken,
		Ordering:          ledger.CreatedAscending,
	})
	require.NoError(t, err)
	require.Len(t, page2.Objects, 2)
	assert.Equal(t, created[2], page2.Objects[0].Guid)
	assert.Equal(t, created[3], page2.Objects[1].Guid)

	page3, err := core.EnumerateAccounts(ctx, ledger.AccountQuery{
		MaxResults:        2,
		ContinuationToken: page2.ContinuationToken,
		Ordering:          ledger.CreatedAscending,
	})
	require.NoError(t, err)
	require.Len(t, page3.Objects, 1)
	assert.Equal(t, created[4], page3.Objects[0].Guid)
	assert.True(t, page3.EndOfResults)
	assert.Nil(t, page3.ContinuationToken)
}

func TestVerifyBalanceChain_DetectsTamperedAmount(t *testing.T) {
	store := memorydb.New()
	clock := ledger.RealClock{}
	entries := ledger.NewEntryStore(store.Entries())
	accounts := ledger.NewAccountRegistry(store.Accounts(), entries, clock)
	core := ledger.NewLedgerCore(store, accounts, entries, clock, ledger.NewNotifier(nil))
	ctx := context.Background()

	account := mustCreateAccount(t, core, "checking")

	entry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(100), "", false)
	require.NoError(t, err)
	_, err = core.Commit(ctx, account.Guid, []uuid.UUID{entry.Guid})
	require.NoError(t, err)

	_, err = core.AddCredit(ctx, account.Guid, decimal.NewFromInt(50), "", false)
	require.NoError(t, err)
	latest, err := core.Commit(ctx, account.Guid, nil)
	require.NoError(t, err)

	valid, err := core.VerifyBalanceChain(ctx, account.Guid)
	require.NoError(t, err)
	require.True(t, valid, "untampered chain must verify")

	// Tamper with the latest Balance entry's stored amount through the
	// repository's Create (an upsert by guid in memorydb), simulating
	// corrupted or maliciously altered persisted data.
	require.NotNil(t, latest.EntryGuid)
	tampered, err := store.Entries().ReadByGuid(ctx, *latest.EntryGuid)
	require.NoError(t, err)
	require.NotNil(t, tampered)
	tampered.Amount = decimal.NewFromInt(999999)
	require.NoError(t, store.Entries().Create(ctx, nil, tampered))

	valid, err = core.VerifyBalanceChain(ctx, account.Guid)
	require.NoError(t, err)
	assert.False(t, valid, "tampering with a committed balance's amount must be detected")
}

func TestBalanceAsOf_ReturnsIntermediateHistoricalBalance(t *testing.T) {
	clock := &ledger.SequenceClock{Start: time.Unix(1000, 0).UTC(), Step: time.Minute}
	core := newTestCoreWithClock(t, clock)
	ctx := context.Background()
	account := mustCreateAccount(t, core, "checking")

	firstEntry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(100), "", false)
	require.NoError(t, err)
	_, err = core.Commit(ctx, account.Guid, []uuid.UUID{firstEntry.Guid})
	require.NoError(t, err)
	midpoint := clock.Now()

	secondEntry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(50), "", false)
	require.NoError(t, err)
	_, err = core.Commit(ctx, account.Guid, []uuid.UUID{secondEntry.Guid})
	require.NoError(t, err)

	amount, err := core.BalanceAsOf(ctx, account.Guid, midpoint)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(100)), "balance as of the midpoint must reflect only the first commit")

	finalAmount, err := core.BalanceAsOf(ctx, account.Guid, clock.Now())
	require.NoError(t, err)
	assert.True(t, finalAmount.Equal(decimal.NewFromInt(150)), "balance as of now must reflect both commits")
}
