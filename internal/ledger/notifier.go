package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind enumerates the notifications the Event Notifier fires, per §2
// and §9's "narrow subscription interface" guidance.
type EventKind string

const (
	EventAccountCreated   EventKind = "AccountCreated"
	EventAccountDeleted   EventKind = "AccountDeleted"
	EventCreditAdded      EventKind = "CreditAdded"
	EventDebitAdded       EventKind = "DebitAdded"
	EventEntryCanceled    EventKind = "EntryCanceled"
	EventEntriesCommitted EventKind = "EntriesCommitted"
)

// Event is the payload delivered to subscribers. Fields not relevant to a
// given Kind are left zero.
type Event struct {
	Kind             EventKind
	AccountGuid      uuid.UUID
	EntryGuid        uuid.UUID
	BalanceGuid      uuid.UUID
	CommittedEntries []uuid.UUID
	CommittedBalance decimal.Decimal
}

// Subscriber receives post-operation notifications. It must never call
// back into the Ledger Core synchronously (§9) — that contract is
// documented, not enforced by the type system.
type Subscriber func(Event)

// Notifier is the fire-and-forget observer hook described in §2. A failing
// or panicking subscriber is isolated and logged; it never aborts the
// triggering ledger operation (§7's propagation policy).
type Notifier struct {
	log         slog
	subscribers map[EventKind][]Subscriber
}

// slog is a minimal logging seam so notifier.go doesn't import the
// project's logger package directly, keeping the core free of ambient
// dependencies; callers inject a concrete logger satisfying this.
type slog interface {
	Error(msg string, args ...any)
}

// NewNotifier constructs a Notifier. log may be nil, in which case
// subscriber failures are silently dropped after recovery.
func NewNotifier(log slog) *Notifier {
	return &Notifier{log: log, subscribers: make(map[EventKind][]Subscriber)}
}

// Subscribe registers fn to be invoked for every event of kind.
func (n *Notifier) Subscribe(kind EventKind, fn Subscriber) {
	n.subscribers[kind] = append(n.subscribers[kind], fn)
}

// publish delivers ev to every subscriber of ev.Kind, isolating panics and
// swallowing them after logging, per §9.
func (n *Notifier) publish(ev Event) {
	for _, sub := range n.subscribers[ev.Kind] {
		n.deliver(sub, ev)
	}
}

func (n *Notifier) deliver(sub Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil && n.log != nil {
			n.log.Error("event subscriber panicked", "kind", ev.Kind, "account", ev.AccountGuid, "recovered", r)
		}
	}()
	sub(ev)
}
