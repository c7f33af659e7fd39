//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupTest(t *testing.T) (*Repository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))
	return New(testDB.Pool), ctx
}

func TestRepository_AccountCreateAndReadByGuid(t *testing.T) {
	repo, ctx := setupTest(t)

	account := &ledger.Account{
		Guid:       uuid.New(),
		Name:       "checking",
		Notes:      "primary account",
		CreatedUtc: ledger.RealClock{}.Now(),
	}
	require.NoError(t, repo.Accounts().Create(ctx, account))

	got, err := repo.Accounts().ReadByGuid(ctx, account.Guid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.Name, got.Name)
	assert.Equal(t, account.Notes, got.Notes)
}

func TestRepository_EntryCreateAndMarkCommitted(t *testing.T) {
	repo, ctx := setupTest(t)

	account := &ledger.Account{Guid: uuid.New(), Name: "savings", CreatedUtc: ledger.RealClock{}.Now()}
	require.NoError(t, repo.Accounts().Create(ctx, account))

	entry := &ledger.Entry{
		Guid:        uuid.New(),
		AccountGuid: account.Guid,
		Type:        ledger.EntryCredit,
		Amount:      decimal.NewFromInt(100),
		CreatedUtc:  ledger.RealClock{}.Now(),
	}

	tx, err := repo.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Entries().Create(ctx, tx, entry))
	require.NoError(t, tx.Commit(ctx))

	balance := &ledger.Entry{
		Guid:        uuid.New(),
		AccountGuid: account.Guid,
		Type:        ledger.EntryBalance,
		Amount:      decimal.NewFromInt(100),
		CreatedUtc:  ledger.RealClock{}.Now(),
	}
	tx, err = repo.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Entries().Create(ctx, tx, balance))
	require.NoError(t, repo.Entries().MarkCommitted(ctx, tx, account.Guid, []uuid.UUID{entry.Guid}, balance.Guid, balance.CreatedUtc))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.Entries().ReadByGuid(ctx, entry.Guid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsCommitted)
	require.NotNil(t, got.CommittedByGuid)
	assert.Equal(t, balance.Guid, *got.CommittedByGuid)
}

func TestRepository_ApiKeyCreateAndReadByKeyHash(t *testing.T) {
	repo, ctx := setupTest(t)

	key := &ledger.ApiKey{
		Guid:       uuid.New(),
		Name:       "ci",
		KeyHash:    "deadbeef",
		Active:     true,
		CreatedUtc: ledger.RealClock{}.Now(),
	}
	require.NoError(t, repo.ApiKeys().Create(ctx, key))

	got, err := repo.ApiKeys().ReadByKeyHash(ctx, "deadbeef")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, key.Name, got.Name)
}
