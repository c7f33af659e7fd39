// Package rediscache provides a cache-aside layer for account Balance
// views, grounded on the teacher's Redis price cache
// (internal/infra/redis/cache.go) and repurposed from asset-price TTL
// caching to ledger balance caching invalidated by event, not just TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/pkg/logger"
)

const (
	// DefaultTTL bounds staleness if an invalidation event is ever missed.
	DefaultTTL = 60 * time.Second

	keyPrefix = "balance:"
)

// Cache is a Redis-backed cache of each account's derived Balance view.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a balance cache with the default TTL.
func New(client *redis.Client, log *logger.Logger) *Cache {
	return NewWithTTL(client, DefaultTTL, log)
}

// NewWithTTL creates a balance cache with a custom TTL.
func NewWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "balance_cache"),
	}
}

// cachedBalance mirrors ledger.Balance for JSON (de)serialization; the
// core type itself is not tagged since it has no transport concerns of
// its own.
type cachedBalance struct {
	AccountGuid        uuid.UUID   `json:"account_guid"`
	CommittedBalance   string      `json:"committed_balance"`
	PendingBalance     string      `json:"pending_balance"`
	PendingCreditCount int         `json:"pending_credit_count"`
	PendingDebitCount  int         `json:"pending_debit_count"`
	EntryGuid          *uuid.UUID  `json:"entry_guid,omitempty"`
	CommittedEntries   []uuid.UUID `json:"committed_entries,omitempty"`
}

func toCached(b *ledger.Balance) cachedBalance {
	return cachedBalance{
		AccountGuid:        b.AccountGuid,
		CommittedBalance:   b.CommittedBalance.String(),
		PendingBalance:     b.PendingBalance.String(),
		PendingCreditCount: b.PendingCreditCount,
		PendingDebitCount:  b.PendingDebitCount,
		EntryGuid:          b.EntryGuid,
		CommittedEntries:   b.CommittedEntries,
	}
}

func fromCached(c cachedBalance) (*ledger.Balance, error) {
	committed, err := decimal.NewFromString(c.CommittedBalance)
	if err != nil {
		return nil, fmt.Errorf("parsing cached committed balance: %w", err)
	}
	pending, err := decimal.NewFromString(c.PendingBalance)
	if err != nil {
		return nil, fmt.Errorf("parsing cached pending balance: %w", err)
	}
	return &ledger.Balance{
		AccountGuid:        c.AccountGuid,
		CommittedBalance:   committed,
		PendingBalance:     pending,
		PendingCreditCount: c.PendingCreditCount,
		PendingDebitCount:  c.PendingDebitCount,
		EntryGuid:          c.EntryGuid,
		CommittedEntries:   c.CommittedEntries,
	}, nil
}

func key(accountGuid uuid.UUID) string {
	return keyPrefix + accountGuid.String()
}

// Get returns the cached Balance for an account, or (nil, false) on a
// cache miss.
func (c *Cache) Get(ctx context.Context, accountGuid uuid.UUID) (*ledger.Balance, bool, error) {
	val, err := c.client.Get(ctx, key(accountGuid)).Result()
	if err == redis.Nil {
		c.logger.Debug("balance cache miss", "account_guid", accountGuid)
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("balance cache error", "operation", "get", "account_guid", accountGuid, "error", err)
		return nil, false, fmt.Errorf("getting cached balance: %w", err)
	}

	var cb cachedBalance
	if err := json.Unmarshal([]byte(val), &cb); err != nil {
		return nil, false, fmt.Errorf("unmarshaling cached balance: %w", err)
	}
	balance, err := fromCached(cb)
	if err != nil {
		return nil, false, err
	}
	c.logger.Debug("balance cache hit", "account_guid", accountGuid)
	return balance, true, nil
}

// Set stores a Balance snapshot with the cache's default TTL.
func (c *Cache) Set(ctx context.Context, balance *ledger.Balance) error {
	data, err := json.Marshal(toCached(balance))
	if err != nil {
		return fmt.Errorf("marshaling balance: %w", err)
	}
	if err := c.client.Set(ctx, key(balance.AccountGuid), data, c.ttl).Err(); err != nil {
		c.logger.Error("balance cache error", "operation", "set", "account_guid", balance.AccountGuid, "error", err)
		return fmt.Errorf("setting cached balance: %w", err)
	}
	return nil
}

// Invalidate removes an account's cached balance.
func (c *Cache) Invalidate(ctx context.Context, accountGuid uuid.UUID) error {
	if err := c.client.Del(ctx, key(accountGuid)).Err(); err != nil {
		c.logger.Error("balance cache error", "operation", "invalidate", "account_guid", accountGuid, "error", err)
		return fmt.Errorf("invalidating cached balance: %w", err)
	}
	return nil
}

// Clear removes every cached balance.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("clearing balance cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}
	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("clearing balance cache: %w", err)
		}
	}
	return iter.Err()
}

// SubscribeInvalidation wires the cache into the ledger's Notifier so
// every commit, pending credit/debit added or canceled, or account
// deletion drops the stale snapshot instead of waiting out the TTL.
func SubscribeInvalidation(n *ledger.Notifier, c *Cache) {
	invalidate := func(ev ledger.Event) {
		// Best-effort: a failed invalidation only risks serving a stale
		// balance for up to DefaultTTL, never a lost write, since the
		// ledger's own storage is always the source of truth.
		_ = c.Invalidate(context.Background(), ev.AccountGuid)
	}
	n.Subscribe(ledger.EventEntriesCommitted, invalidate)
	n.Subscribe(ledger.EventAccountDeleted, invalidate)
	n.Subscribe(ledger.EventCreditAdded, invalidate)
	n.Subscribe(ledger.EventDebitAdded, invalidate)
	n.Subscribe(ledger.EventEntryCanceled, invalidate)
}
