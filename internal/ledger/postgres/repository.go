package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/netledger/netledger/internal/ledger"
)

// Repository implements ledger.Repository against a pgxpool.Pool.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Accounts() ledger.AccountRepository { return &accountRepo{r.pool} }
func (r *Repository) Entries() ledger.EntryRepository    { return &entryRepo{r.pool} }
func (r *Repository) ApiKeys() ledger.ApiKeyRepository   { return &apiKeyRepo{r.pool} }

// pgxTx adapts a pgx.Tx to ledger.Tx.
type pgxTx struct{ tx pgx.Tx }

func (t pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (r *Repository) BeginTransaction(ctx context.Context) (ledger.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTx{tx}, nil
}

// txQuerier unwraps a ledger.Tx back to the underlying pgx.Tx so a
// repository method can run its statement inside the caller's
// transaction instead of against the bare pool.
func txQuerier(tx ledger.Tx) (pgx.Tx, bool) {
	pt, ok := tx.(pgxTx)
	if !ok {
		return nil, false
	}
	return pt.tx, true
}

// --- accounts ---

type accountRepo struct{ pool *pgxpool.Pool }

func (r *accountRepo) Create(ctx context.Context, a *ledger.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (guid, name, notes, created_utc) VALUES ($1, $2, $3, $4)`,
		a.Guid, a.Name, nullableString(a.Notes), a.CreatedUtc)
	return err
}

func (r *accountRepo) scanOne(row pgx.Row) (*ledger.Account, error) {
	var a ledger.Account
	var notes *string
	if err := row.Scan(&a.Guid, &a.Name, &notes, &a.CreatedUtc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func (r *accountRepo) ReadByGuid(ctx context.Context, guid uuid.UUID) (*ledger.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT guid, name, notes, created_utc FROM accounts WHERE guid = $1`, guid)
	return r.scanOne(row)
}

func (r *accountRepo) ReadByName(ctx context.Context, name string) (*ledger.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT guid, name, notes, created_utc FROM accounts WHERE name = $1`, name)
	return r.scanOne(row)
}

func (r *accountRepo) readMany(ctx context.Context, sql string, args ...any) ([]*ledger.Account, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Account
	for rows.Next() {
		var a ledger.Account
		var notes *string
		if err := rows.Scan(&a.Guid, &a.Name, &notes, &a.CreatedUtc); err != nil {
			return nil, err
		}
		if notes != nil {
			a.Notes = *notes
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *accountRepo) ReadAll(ctx context.Context) ([]*ledger.Account, error) {
	return r.readMany(ctx, `SELECT guid, name, notes, created_utc FROM accounts`)
}

func (r *accountRepo) SearchByName(ctx context.Context, term string) ([]*ledger.Account, error) {
	return r.readMany(ctx, `SELECT guid, name, notes, created_utc FROM accounts WHERE name ILIKE $1`, "%"+term+"%")
}

func (r *accountRepo) Update(ctx context.Context, a *ledger.Account) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET notes = $2 WHERE guid = $1`, a.Guid, nullableString(a.Notes))
	return err
}

func (r *accountRepo) Delete(ctx context.Context, guid uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE guid = $1`, guid)
	return err
}

func (r *accountRepo) ExistsByGuid(ctx context.Context, guid uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE guid = $1)`, guid).Scan(&exists)
	return exists, err
}

func (r *accountRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (r *accountRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}

// --- entries ---

type entryRepo struct{ pool *pgxpool.Pool }

func (r *entryRepo) Create(ctx context.Context, tx ledger.Tx, e *ledger.Entry) error {
	sql := `INSERT INTO entries
		(guid, account_guid, type, amount, description, notes, replaces, is_committed, committed_by_guid, committed_utc, created_utc)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	args := []any{e.Guid, e.AccountGuid, string(e.Type), e.Amount, nullableString(e.Description), nullableString(e.Notes),
		e.Replaces, e.IsCommitted, e.CommittedByGuid, e.CommittedUtc, e.CreatedUtc}

	if pt, ok := txQuerier(tx); ok {
		_, err := pt.Exec(ctx, sql, args...)
		return err
	}
	_, err := r.pool.Exec(ctx, sql, args...)
	return err
}

func scanEntry(row interface {
	Scan(dest ...any) error
}) (*ledger.Entry, error) {
	var e ledger.Entry
	var typ string
	var description, notes *string
	if err := row.Scan(&e.Guid, &e.AccountGuid, &typ, &e.Amount, &description, &notes, &e.Replaces,
		&e.IsCommitted, &e.CommittedByGuid, &e.CommittedUtc, &e.CreatedUtc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Type = ledger.EntryType(typ)
	if description != nil {
		e.Description = *description
	}
	if notes != nil {
		e.Notes = *notes
	}
	return &e, nil
}

const entryColumns = `guid, account_guid, type, amount, description, notes, replaces, is_committed, committed_by_guid, committed_utc, created_utc`

func (r *entryRepo) ReadByGuid(ctx context.Context, guid uuid.UUID) (*ledger.Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE guid = $1`, guid)
	return scanEntry(row)
}

func (r *entryRepo) ReadByAccount(ctx context.Context, accountGuid uuid.UUID, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	var clauses []string
	args := []any{accountGuid}
	clauses = append(clauses, "account_guid = $1")

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.Replace(clause, "?", fmtArg(len(args)), 1))
	}
	if filter.CreatedAfterUtc != nil {
		add("created_utc >= ?", *filter.CreatedAfterUtc)
	}
	if filter.CreatedBeforeUtc != nil {
		add("created_utc <= ?", *filter.CreatedBeforeUtc)
	}
	if filter.AmountMin != nil {
		add("amount >= ?", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		add("amount <= ?", *filter.AmountMax)
	}
	if filter.Type != nil {
		add("type = ?", string(*filter.Type))
	}
	if filter.IsCommitted != nil {
		add("is_committed = ?", *filter.IsCommitted)
	}

	sql := `SELECT ` + entryColumns + ` FROM entries WHERE ` + strings.Join(clauses, " AND ")
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func fmtArg(n int) string {
	return "$" + strconv.Itoa(n)
}

func (r *entryRepo) SumByType(ctx context.Context, accountGuid uuid.UUID, entryType ledger.EntryType, isCommitted bool) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_guid = $1 AND type = $2 AND is_committed = $3`,
		accountGuid, string(entryType), isCommitted).Scan(&sum)
	return sum, err
}

func (r *entryRepo) LatestBalance(ctx context.Context, accountGuid uuid.UUID) (*ledger.Entry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE account_guid = $1 AND type = 'Balance'
		 ORDER BY created_utc DESC, guid DESC LIMIT 1`, accountGuid)
	return scanEntry(row)
}

func (r *entryRepo) MarkCommitted(ctx context.Context, tx ledger.Tx, accountGuid uuid.UUID, entryGuids []uuid.UUID, balanceGuid uuid.UUID, committedUtc time.Time) error {
	pt, ok := txQuerier(tx)
	if !ok {
		return errors.New("MarkCommitted requires a transaction")
	}

	tag, err := pt.Exec(ctx,
		`UPDATE entries SET is_committed = TRUE, committed_by_guid = $1, committed_utc = $2
		 WHERE account_guid = $3 AND guid = ANY($4) AND type IN ('Credit','Debit') AND is_committed = FALSE`,
		balanceGuid, committedUtc, accountGuid, entryGuids)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(entryGuids) {
		return ledger.Conflict("one or more entries were not eligible for commit")
	}
	return nil
}

func (r *entryRepo) Delete(ctx context.Context, accountGuid, entryGuid uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE account_guid = $1 AND guid = $2`, accountGuid, entryGuid)
	return err
}

func (r *entryRepo) DeleteByAccount(ctx context.Context, tx ledger.Tx, accountGuid uuid.UUID) error {
	if pt, ok := txQuerier(tx); ok {
		_, err := pt.Exec(ctx, `DELETE FROM entries WHERE account_guid = $1`, accountGuid)
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE account_guid = $1`, accountGuid)
	return err
}

// --- api keys ---

type apiKeyRepo struct{ pool *pgxpool.Pool }

func (r *apiKeyRepo) Create(ctx context.Context, k *ledger.ApiKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO apikeys (guid, name, apikey, active, is_admin, created_utc) VALUES ($1,$2,$3,$4,$5,$6)`,
		k.Guid, k.Name, k.KeyHash, k.Active, k.IsAdmin, k.CreatedUtc)
	return err
}

func scanApiKey(row pgx.Row) (*ledger.ApiKey, error) {
	var k ledger.ApiKey
	if err := row.Scan(&k.Guid, &k.Name, &k.KeyHash, &k.Active, &k.IsAdmin, &k.CreatedUtc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

func (r *apiKeyRepo) ReadByGuid(ctx context.Context, guid uuid.UUID) (*ledger.ApiKey, error) {
	row := r.pool.QueryRow(ctx, `SELECT guid, name, apikey, active, is_admin, created_utc FROM apikeys WHERE guid = $1`, guid)
	return scanApiKey(row)
}

func (r *apiKeyRepo) ReadByKeyHash(ctx context.Context, hash string) (*ledger.ApiKey, error) {
	row := r.pool.QueryRow(ctx, `SELECT guid, name, apikey, active, is_admin, created_utc FROM apikeys WHERE apikey = $1`, hash)
	return scanApiKey(row)
}

func (r *apiKeyRepo) Delete(ctx context.Context, guid uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM apikeys WHERE guid = $1`, guid)
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
