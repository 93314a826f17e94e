package repository

import (
	"context"
	"fmt"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, code, name, type, active, system, created_at, updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Active, &a.System, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) ListAccounts(ctx context.Context, includeInactive bool) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE ($1 OR active)
		ORDER BY code ASC
	`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return items, nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return domain.Account{}, wrap(fmt.Sprintf("get account %d", id), err)
	}
	return a, nil
}

func (r *Repository) GetAccountByCode(ctx context.Context, code string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, strings.TrimSpace(code)))
	if err != nil {
		return domain.Account{}, wrap(fmt.Sprintf("get account %s", code), err)
	}
	return a, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	created, err := scanAccount(r.db.QueryRow(ctx, `
		INSERT INTO accounts (code, name, type, active, system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns, a.Code, a.Name, a.Type, a.Active, a.System))
	if err != nil {
		return domain.Account{}, wrap("create account", err)
	}
	return created, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	updated, err := scanAccount(r.db.QueryRow(ctx, `
		UPDATE accounts
		SET name = $2, type = $3, active = $4, system = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns, a.ID, a.Name, a.Type, a.Active, a.System))
	if err != nil {
		return domain.Account{}, wrap(fmt.Sprintf("update account %d", a.ID), err)
	}
	return updated, nil
}

func (r *Repository) AccountHasEntries(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounting_entries WHERE account_id = $1)
	`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account entries: %w", err)
	}
	return exists, nil
}

const groupColumns = `
	id,
	date,
	description,
	source_type,
	source_id,
	status,
	reversal_of,
	reversed_by,
	total,
	actor,
	created_at`

func scanGroup(row pgx.Row) (domain.TransactionGroup, error) {
	var g domain.TransactionGroup
	if err := row.Scan(
		&g.ID,
		&g.Date,
		&g.Description,
		&g.SourceType,
		&g.SourceID,
		&g.Status,
		&g.ReversalOf,
		&g.ReversedBy,
		&g.Total,
		&g.Actor,
		&g.CreatedAt,
	); err != nil {
		return domain.TransactionGroup{}, err
	}
	return g, nil
}

// CreateTransactionGroup stores a validated group and its entries. Callers
// run it inside WithTx so the group and entries land together.
func (r *Repository) CreateTransactionGroup(ctx context.Context, g domain.TransactionGroup) (domain.TransactionGroup, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO transaction_groups (
			id,
			date,
			description,
			source_type,
			source_id,
			status,
			reversal_of,
			total,
			actor
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, g.ID, g.Date, g.Description, g.SourceType, g.SourceID, g.Status, g.ReversalOf, g.Total, g.Actor); err != nil {
		return domain.TransactionGroup{}, wrap("create transaction group", err)
	}

	for i, e := range g.Entries {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO accounting_entries (
				id,
				group_id,
				account_id,
				debit,
				credit,
				memo,
				line_no
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, g.ID, e.AccountID, e.Debit, e.Credit, e.Memo, i+1); err != nil {
			return domain.TransactionGroup{}, wrap("create accounting entry", err)
		}
	}
	return r.GetTransactionGroup(ctx, g.ID)
}

func (r *Repository) GetTransactionGroup(ctx context.Context, id uuid.UUID) (domain.TransactionGroup, error) {
	g, err := scanGroup(r.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM transaction_groups WHERE id = $1`, id))
	if err != nil {
		return domain.TransactionGroup{}, wrap(fmt.Sprintf("get transaction group %s", id), err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.group_id, e.account_id, a.code, e.debit, e.credit, e.memo
		FROM accounting_entries e
		JOIN accounts a ON a.id = e.account_id
		WHERE e.group_id = $1
		ORDER BY e.line_no ASC
	`, id)
	if err != nil {
		return domain.TransactionGroup{}, fmt.Errorf("list accounting entries: %w", err)
	}
	defer rows.Close()

	g.Entries = make([]domain.AccountingEntry, 0)
	for rows.Next() {
		var e domain.AccountingEntry
		if err := rows.Scan(&e.ID, &e.GroupID, &e.AccountID, &e.AccountCode, &e.Debit, &e.Credit, &e.Memo); err != nil {
			return domain.TransactionGroup{}, fmt.Errorf("scan accounting entry: %w", err)
		}
		e.Date = g.Date
		g.Entries = append(g.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.TransactionGroup{}, fmt.Errorf("iterate accounting entries: %w", err)
	}
	return g, nil
}

func (r *Repository) ListTransactionGroups(ctx context.Context, filter store.TransactionGroupFilter) ([]domain.TransactionGroup, error) {
	limit := store.NormalizeLimit(filter.Limit)
	offset := store.NormalizeOffset(filter.Offset)

	rows, err := r.db.Query(ctx, `
		SELECT `+groupColumns+`
		FROM transaction_groups g
		WHERE ($1 = '' OR g.source_type = $1)
			AND ($2::bigint IS NULL OR EXISTS (
				SELECT 1 FROM accounting_entries e WHERE e.group_id = g.id AND e.account_id = $2
			))
			AND ($3::timestamptz IS NULL OR g.date >= $3)
			AND ($4::timestamptz IS NULL OR g.date <= $4)
		ORDER BY g.date DESC, g.created_at DESC
		LIMIT $5 OFFSET $6
	`, strings.TrimSpace(filter.SourceType), filter.AccountID, filter.From, filter.To, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transaction groups: %w", err)
	}
	defer rows.Close()

	items := make([]domain.TransactionGroup, 0, limit)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction group: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction groups: %w", err)
	}
	return items, nil
}

// MarkTransactionGroupReversed flips a posted group to reversed. A group that
// is no longer posted yields store.ErrConflict.
func (r *Repository) MarkTransactionGroupReversed(ctx context.Context, id, reversedBy uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transaction_groups
		SET status = 'reversed', reversed_by = $2
		WHERE id = $1 AND status = 'posted'
	`, id, reversedBy)
	if err != nil {
		return wrap(fmt.Sprintf("mark transaction group %s reversed", id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark transaction group %s reversed: %w", id, store.ErrConflict)
	}
	return nil
}

func (r *Repository) SumEntriesByAccount(ctx context.Context, filter store.EntryFilter) ([]store.AccountTotals, error) {
	rows, err := r.db.Query(ctx, `
		SELECT e.account_id, COALESCE(SUM(e.debit), 0), COALESCE(SUM(e.credit), 0)
		FROM accounting_entries e
		JOIN transaction_groups g ON g.id = e.group_id
		WHERE ($1::bigint IS NULL OR e.account_id = $1)
			AND ($2::timestamptz IS NULL OR g.date >= $2)
			AND ($3::timestamptz IS NULL OR g.date <= $3)
		GROUP BY e.account_id
		ORDER BY e.account_id
	`, filter.AccountID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("sum entries by account: %w", err)
	}
	defer rows.Close()

	totals := make([]store.AccountTotals, 0)
	for rows.Next() {
		var t store.AccountTotals
		if err := rows.Scan(&t.AccountID, &t.Debit, &t.Credit); err != nil {
			return nil, fmt.Errorf("scan account totals: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account totals: %w", err)
	}
	return totals, nil
}

func (r *Repository) ListLedgerEntries(ctx context.Context, filter store.EntryFilter) ([]store.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			e.id,
			e.group_id,
			e.account_id,
			a.code,
			e.debit,
			e.credit,
			e.memo,
			g.date,
			g.description,
			g.source_type,
			g.created_at
		FROM accounting_entries e
		JOIN transaction_groups g ON g.id = e.group_id
		JOIN accounts a ON a.id = e.account_id
		WHERE ($1::bigint IS NULL OR e.account_id = $1)
			AND ($2::timestamptz IS NULL OR g.date >= $2)
			AND ($3::timestamptz IS NULL OR g.date <= $3)
		ORDER BY g.date ASC, g.created_at ASC, e.line_no ASC
	`, filter.AccountID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	items := make([]store.LedgerEntry, 0)
	for rows.Next() {
		var le store.LedgerEntry
		if err := rows.Scan(
			&le.ID,
			&le.GroupID,
			&le.AccountID,
			&le.AccountCode,
			&le.Debit,
			&le.Credit,
			&le.Memo,
			&le.Date,
			&le.Description,
			&le.SourceType,
			&le.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		items = append(items, le)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return items, nil
}
