package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/internal/ledger/memorydb"
	"github.com/netledger/netledger/pkg/logger"
)

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, logger.NewDefault("test")), client
}

func TestCache_SetThenGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	balance := &ledger.Balance{
		AccountGuid:        uuid.New(),
		CommittedBalance:   decimal.NewFromInt(100),
		PendingBalance:     decimal.NewFromInt(20),
		PendingCreditCount: 1,
		PendingDebitCount:  0,
	}
	require.NoError(t, c.Set(ctx, balance))

	got, ok, err := c.Get(ctx, balance.AccountGuid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.CommittedBalance.Equal(balance.CommittedBalance))
	assert.True(t, got.PendingBalance.Equal(balance.PendingBalance))
	assert.Equal(t, balance.PendingCreditCount, got.PendingCreditCount)
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)
	got, ok, err := c.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	balance := &ledger.Balance{AccountGuid: uuid.New(), CommittedBalance: decimal.NewFromInt(5)}
	require.NoError(t, c.Set(ctx, balance))

	require.NoError(t, c.Invalidate(ctx, balance.AccountGuid))

	_, ok, err := c.Get(ctx, balance.AccountGuid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewWithTTL(client, time.Second, logger.NewDefault("test"))
	balance := &ledger.Balance{AccountGuid: uuid.New(), CommittedBalance: decimal.NewFromInt(1)}
	require.NoError(t, c.Set(context.Background(), balance))

	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(context.Background(), balance.AccountGuid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeInvalidation_DropsCacheOnCommit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	store := memorydb.New()
	notifier := ledger.NewNotifier(nil)
	SubscribeInvalidation(notifier, c)

	clock := ledger.RealClock{}
	entries := ledger.NewEntryStore(store.Entries())
	accounts := ledger.NewAccountRegistry(store.Accounts(), entries, clock)
	core := ledger.NewLedgerCore(store, accounts, entries, clock, notifier)

	account, err := core.CreateAccount(ctx, "checking", "")
	require.NoError(t, err)

	// Seed a stale cache entry as if a prior request had already read
	// this account's balance.
	stale := &ledger.Balance{AccountGuid: account.Guid, CommittedBalance: decimal.NewFromInt(999)}
	require.NoError(t, c.Set(ctx, stale))

	entry, err := core.AddCredit(ctx, account.Guid, decimal.NewFromInt(100), "", false)
	require.NoError(t, err)
	_, err = core.Commit(ctx, account.Guid, []uuid.UUID{entry.Guid})
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, account.Guid)
	require.NoError(t, err)
	assert.False(t, ok, "commit should have invalidated the stale cached balance")
}
