package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType distinguishes the three kinds of entry rows a ledger holds.
type EntryType string

const (
	EntryCredit  EntryType = "Credit"
	EntryDebit   EntryType = "Debit"
	EntryBalance EntryType = "Balance"
)

func (t EntryType) valid() bool {
	switch t {
	case EntryCredit, EntryDebit, EntryBalance:
		return true
	}
	return false
}

// Account is the owner of a set of Entries. Names are unique within the
// registry (§4.2); notes are free text.
type Account struct {
	Guid       uuid.UUID
	Name       string
	Notes      string
	CreatedUtc time.Time
}

// Entry is the atomic ledger record described in §3. Invariants I1-I5 are
// enforced by the components that create and mutate entries (EntryStore,
// LedgerCore), not by this struct itself.
type Entry struct {
	Guid            uuid.UUID
	AccountGuid     uuid.UUID
	Type            EntryType
	Amount          decimal.Decimal
	Description     string
	Notes           string
	Replaces        *uuid.UUID
	IsCommitted     bool
	CommittedByGuid *uuid.UUID
	CommittedUtc    *time.Time
	CreatedUtc      time.Time
}

// IsCreditOrDebit reports whether the entry is a movement rather than a
// Balance snapshot.
func (e *Entry) IsCreditOrDebit() bool {
	return e.Type == EntryCredit || e.Type == EntryDebit
}

// ApiKey is an opaque credential stored alongside ledger data, but outside
// ledger semantics (§3); see internal/apikey for the service that manages
// these.
type ApiKey struct {
	Guid       uuid.UUID
	Name       string
	KeyHash    string
	Active     bool
	IsAdmin    bool
	CreatedUtc time.Time
}

func zeroDecimal() decimal.Decimal {
	return decimal.NewFromInt(0)
}

// Balance is the derived, non-persisted view described in §3.
type Balance struct {
	AccountGuid        uuid.UUID
	CommittedBalance   decimal.Decimal
	PendingBalance     decimal.Decimal
	PendingCreditCount int
	PendingDebitCount  int
	EntryGuid          *uuid.UUID
	CommittedEntries   []uuid.UUID
}
