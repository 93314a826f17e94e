package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/jackc/pgx/v5"
)

const saleColumns = `
	id,
	COALESCE(number, ''),
	status,
	payment_method,
	customer_name,
	prescription_ref,
	total,
	cost_total,
	transaction_group_id,
	void_group_id,
	actor,
	created_at,
	voided_at`

func scanSale(row pgx.Row) (domain.Sale, error) {
	var s domain.Sale
	if err := row.Scan(
		&s.ID,
		&s.Number,
		&s.Status,
		&s.PaymentMethod,
		&s.CustomerName,
		&s.PrescriptionRef,
		&s.Total,
		&s.CostTotal,
		&s.TransactionGroupID,
		&s.VoidGroupID,
		&s.Actor,
		&s.CreatedAt,
		&s.VoidedAt,
	); err != nil {
		return domain.Sale{}, err
	}
	return s, nil
}

func (r *Repository) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	limit := store.NormalizeLimit(filter.Limit)
	offset := store.NormalizeOffset(filter.Offset)

	rows, err := r.db.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = '' OR status = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, strings.TrimSpace(filter.Status), filter.From, filter.To, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Sale, 0, limit)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return items, nil
}

func (r *Repository) LockSale(ctx context.Context, id int64) (domain.Sale, error) {
	var locked int64
	if err := r.db.QueryRow(ctx, `SELECT id FROM sales WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return domain.Sale{}, wrap(fmt.Sprintf("lock sale %d", id), err)
	}
	return r.GetSale(ctx, id)
}

func (r *Repository) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	s, err := scanSale(r.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return domain.Sale{}, wrap(fmt.Sprintf("get sale %d", id), err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT
			l.id,
			l.sale_id,
			l.product_id,
			p.name,
			l.package_unit_id,
			l.unit_name,
			l.quantity,
			l.unit_price,
			l.base_quantity,
			l.line_total,
			l.unit_cost
		FROM sale_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.sale_id = $1
		ORDER BY l.id ASC
	`, id)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("list sale lines: %w", err)
	}
	defer rows.Close()

	s.Lines = make([]domain.SaleLine, 0)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(
			&line.ID,
			&line.SaleID,
			&line.ProductID,
			&line.ProductName,
			&line.PackageUnitID,
			&line.UnitName,
			&line.Quantity,
			&line.UnitPrice,
			&line.BaseQuantity,
			&line.LineTotal,
			&line.UnitCost,
		); err != nil {
			return domain.Sale{}, fmt.Errorf("scan sale line: %w", err)
		}
		s.Lines = append(s.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Sale{}, fmt.Errorf("iterate sale lines: %w", err)
	}
	return s, nil
}

func (r *Repository) CreateSale(ctx context.Context, s domain.Sale) (domain.Sale, error) {
	var (
		id        int64
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, `
		INSERT INTO sales (
			status,
			payment_method,
			customer_name,
			prescription_ref,
			total,
			cost_total,
			transaction_group_id,
			actor
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, s.Status, s.PaymentMethod, s.CustomerName, s.PrescriptionRef, s.Total, s.CostTotal, s.TransactionGroupID, s.Actor).Scan(&id, &createdAt); err != nil {
		return domain.Sale{}, wrap("create sale", err)
	}
	if _, err := r.db.Exec(ctx, `UPDATE sales SET number = $2 WHERE id = $1`, id, domain.SaleNumber(createdAt, id)); err != nil {
		return domain.Sale{}, wrap("number sale", err)
	}

	for _, line := range s.Lines {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO sale_lines (
				sale_id,
				product_id,
				package_unit_id,
				unit_name,
				quantity,
				unit_price,
				base_quantity,
				line_total,
				unit_cost
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, id, line.ProductID, line.PackageUnitID, line.UnitName, line.Quantity, line.UnitPrice, line.BaseQuantity, line.LineTotal, line.UnitCost); err != nil {
			return domain.Sale{}, wrap("insert sale line", err)
		}
	}
	return r.GetSale(ctx, id)
}

// UpdateSale writes the mutable sale fields: status, ledger links and the
// void timestamp.
func (r *Repository) UpdateSale(ctx context.Context, s domain.Sale) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sales
		SET
			status = $2,
			transaction_group_id = $3,
			void_group_id = $4,
			voided_at = $5
		WHERE id = $1
	`, s.ID, s.Status, s.TransactionGroupID, s.VoidGroupID, s.VoidedAt)
	if err != nil {
		return wrap(fmt.Sprintf("update sale %d", s.ID), err)
	}
	return affectedOne(tag)
}
