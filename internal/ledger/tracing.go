package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer names spans under the ledger package, letting operators see
// lock-wait time and persistence-call latency per operation without the
// full OTLP exporter plumbing a larger service would carry (see DESIGN.md
// for why this is intentionally lighter than a fully wired collector).
var tracer = otel.Tracer("netledger/internal/ledger")

// TracedCore wraps a *LedgerCore, opening a span around AddCredit,
// AddDebit, Commit, VerifyBalanceChain, CancelPending, BalanceAsOf,
// EnumerateEntries and EnumerateAccounts. Every other method (CreateAccount,
// DeleteAccount, AddCredits, AddDebits, GetBalance, ...) is the embedded
// LedgerCore's own and runs without a span. It is the version wired by
// cmd/server/main.go.
type TracedCore struct {
	*LedgerCore
}

func NewTracedCore(core *LedgerCore) *TracedCore {
	return &TracedCore{LedgerCore: core}
}

func (t *TracedCore) AddCredit(ctx context.Context, accountGuid uuid.UUID, amount decimal.Decimal, notes string, alreadyCommitted bool) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.AddCredit", trace.WithAttributes(attribute.String("account_guid", accountGuid.String())))
	defer span.End()
	return t.LedgerCore.AddCredit(ctx, accountGuid, amount, notes, alreadyCommitted)
}

func (t *TracedCore) AddDebit(ctx context.Context, accountGuid uuid.UUID, amount decimal.Decimal, notes string, alreadyCommitted bool) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.AddDebit", trace.WithAttributes(attribute.String("account_guid", accountGuid.String())))
	defer span.End()
	return t.LedgerCore.AddDebit(ctx, accountGuid, amount, notes, alreadyCommitted)
}

func (t *TracedCore) Commit(ctx context.Context, accountGuid uuid.UUID, entryGuids []uuid.UUID) (*Balance, error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.Commit", trace.WithAttributes(
		attribute.String("account_guid", accountGuid.String()),
		attribute.Int("entry_count", len(entryGuids)),
	))
	defer span.End()
	return t.LedgerCore.Commit(ctx, accountGuid, entryGuids)
}

func (t *TracedCore) VerifyBalanceChain(ctx context.Context, accountGuid uuid.UUID) (bool, error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.VerifyBalanceChain", trace.WithAttributes(attribute.String("account_guid", accountGuid.String())))
	defer span.End()
	ok, err := t.LedgerCore.VerifyBalanceChain(ctx, accountGuid)
	span.SetAttributes(attribute.Bool("valid", ok))
	return ok, err
}

func (t *TracedCore) CancelPending(ctx context.Context, accountGuid, entryGuid uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "LedgerCore.CancelPending", trace.WithAttributes(attribute.String("account_guid", accountGuid.String())))
	defer span.End()
	return t.LedgerCore.CancelPending(ctx, accountGuid, entryGuid)
}

func (t *TracedCore) BalanceAsOf(ctx context.Context, accountGuid uuid.UUID, at time.Time) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.BalanceAsOf", trace.WithAttributes(attribute.String("account_guid", accountGuid.String())))
	defer span.End()
	return t.LedgerCore.BalanceAsOf(ctx, accountGuid, at)
}

func (t *TracedCore) EnumerateEntries(ctx context.Context, accountGuid uuid.UUID, q EntryQuery) (Page[*Entry], error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.EnumerateEntries", trace.WithAttributes(attribute.String("account_guid", accountGuid.String())))
	defer span.End()
	return t.LedgerCore.EnumerateEntries(ctx, accountGuid, q)
}

func (t *TracedCore) EnumerateAccounts(ctx context.Context, q AccountQuery) (Page[*Account], error) {
	ctx, span := tracer.Start(ctx, "LedgerCore.EnumerateAccounts")
	defer span.End()
	return t.LedgerCore.EnumerateAccounts(ctx, q)
}
