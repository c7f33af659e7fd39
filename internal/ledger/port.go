package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tx represents a persistence-level transactional scope. The core opens
// one per Commit and per Account delete cascade (§4.4, §4.2) and never
// holds it across a non-persistence suspension point (§5).
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AccountRepository is the narrow persistence contract for accounts (§6).
// The core depends only on this interface plus EntryRepository and
// ApiKeyRepository; any relational engine satisfying them is acceptable.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	ReadByGuid(ctx context.Context, guid uuid.UUID) (*Account, error)
	ReadByName(ctx context.Context, name string) (*Account, error)
	ReadAll(ctx context.Context) ([]*Account, error)
	SearchByName(ctx context.Context, term string) ([]*Account, error)
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, guid uuid.UUID) error
	ExistsByGuid(ctx context.Context, guid uuid.UUID) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// EntryFilter mirrors §4.1's ListByAccount filter dimensions, all optional
// and AND-composed.
type EntryFilter struct {
	CreatedAfterUtc  *time.Time
	CreatedBeforeUtc *time.Time
	AmountMin        *decimal.Decimal
	AmountMax        *decimal.Decimal
	Type             *EntryType
	IsCommitted      *bool
}

// EntryRepository is the narrow persistence contract for entries (§6).
type EntryRepository interface {
	Create(ctx context.Context, tx Tx, entry *Entry) error
	ReadByGuid(ctx context.Context, guid uuid.UUID) (*Entry, error)
	ReadByAccount(ctx context.Context, accountGuid uuid.UUID, filter EntryFilter) ([]*Entry, error)
	SumByType(ctx context.Context, accountGuid uuid.UUID, entryType EntryType, isCommitted bool) (decimal.Decimal, error)
	LatestBalance(ctx context.Context, accountGuid uuid.UUID) (*Entry, error)
	MarkCommitted(ctx context.Context, tx Tx, accountGuid uuid.UUID, entryGuids []uuid.UUID, balanceGuid uuid.UUID, committedUtc time.Time) error
	Delete(ctx context.Context, accountGuid, entryGuid uuid.UUID) error
	DeleteByAccount(ctx context.Context, tx Tx, accountGuid uuid.UUID) error
}

// ApiKeyRepository is the narrow persistence contract for api keys (§6).
// Listed for completeness; not consumed by the ledger core.
type ApiKeyRepository interface {
	Create(ctx context.Context, key *ApiKey) error
	ReadByGuid(ctx context.Context, guid uuid.UUID) (*ApiKey, error)
	ReadByKeyHash(ctx context.Context, hash string) (*ApiKey, error)
	Delete(ctx context.Context, guid uuid.UUID) error
}

// Repository bundles the three entity-family adapters plus the
// transactional scope the core executes its per-commit path inside.
type Repository interface {
	Accounts() AccountRepository
	Entries() EntryRepository
	ApiKeys() ApiKeyRepository

	BeginTransaction(ctx context.Context) (Tx, error)
}
