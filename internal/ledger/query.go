package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ordering selects the sort key and direction for enumeration, per §4.5.
type Ordering string

const (
	CreatedAscending  Ordering = "CreatedAscending"
	CreatedDescending Ordering = "CreatedDescending"
	AmountAscending   Ordering = "AmountAscending"
	AmountDescending  Ordering = "AmountDescending"
)

const (
	defaultMaxResults = 100
	hardMaxResults    = 1000
)

// EntryQuery filters and paginates entries within a single account, per
// §4.1's ListByAccount filter dimensions and §4.5's pagination contract.
type EntryQuery struct {
	MaxResults        int
	Skip              int
	ContinuationToken *uuid.UUID
	CreatedAfterUtc   *time.Time
	CreatedBeforeUtc  *time.Time
	AmountMin         *decimal.Decimal
	AmountMax         *decimal.Decimal
	Type              *EntryType
	IsCommitted       *bool
	Ordering          Ordering
}

// normalize clamps MaxResults into [1, hardMaxResults] and fills in
// defaults, per §4.5's boundary-behavior note: both clamping and rejecting
// are acceptable as long as consistent — this implementation clamps.
func (q *EntryQuery) normalize() {
	if q.MaxResults <= 0 {
		q.MaxResults = defaultMaxResults
	}
	if q.MaxResults > hardMaxResults {
		q.MaxResults = hardMaxResults
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Ordering == "" {
		q.Ordering = CreatedDescending
	}
}

// AccountQuery filters and paginates accounts, per §4.2's Enumerate and
// §4.5's account-specific extensions (search_term, balance_min/max).
type AccountQuery struct {
	MaxResults        int
	Skip              int
	ContinuationToken *uuid.UUID
	SearchTerm        string
	BalanceMin        *decimal.Decimal
	BalanceMax        *decimal.Decimal
	Ordering          Ordering
}

func (q *AccountQuery) normalize() {
	if q.MaxResults <= 0 {
		q.MaxResults = defaultMaxResults
	}
	if q.MaxResults > hardMaxResults {
		q.MaxResults = hardMaxResults
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Ordering == "" {
		q.Ordering = CreatedDescending
	}
}

// Page is the paginated envelope every enumeration operation returns,
// matching §4.5's contract exactly.
type Page[T any] struct {
	TotalRecords      int
	Objects           []T
	RecordsRemaining  int
	EndOfResults      bool
	ContinuationToken *uuid.UUID
}

func newPage[T any](all []T, skip, maxResults int, guidOf func(T) uuid.UUID) Page[T] {
	total := len(all)
	end := skip + maxResults
	if end > total {
		end = total
	}
	start := skip
	if start > total {
		start = total
	}
	objects := all[start:end]

	remaining := total - skip - len(objects)
	if remaining < 0 {
		remaining = 0
	}

	p := Page[T]{
		TotalRecords:     total,
		Objects:          objects,
		RecordsRemaining: remaining,
		EndOfResults:     remaining == 0,
	}
	if !p.EndOfResults && len(objects) > 0 {
		g := guidOf(objects[len(objects)-1])
		p.ContinuationToken = &g
	}
	return p
}
