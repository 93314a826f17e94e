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

const purchaseOrderColumns = `
	id,
	COALESCE(number, ''),
	supplier_name,
	status,
	notes,
	total,
	ordered_at,
	received_at,
	paid_at,
	cancelled_at,
	receipt_group_id,
	payment_group_id,
	created_at,
	updated_at`

func scanPurchaseOrder(row pgx.Row) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	if err := row.Scan(
		&po.ID,
		&po.Number,
		&po.SupplierName,
		&po.Status,
		&po.Notes,
		&po.Total,
		&po.OrderedAt,
		&po.ReceivedAt,
		&po.PaidAt,
		&po.CancelledAt,
		&po.ReceiptGroupID,
		&po.PaymentGroupID,
		&po.CreatedAt,
		&po.UpdatedAt,
	); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return po, nil
}

func (r *Repository) ListPurchaseOrders(ctx context.Context, filter store.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	limit := store.NormalizeLimit(filter.Limit)
	offset := store.NormalizeOffset(filter.Offset)

	rows, err := r.db.Query(ctx, `
		SELECT `+purchaseOrderColumns+`
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
			AND ($2 = '' OR supplier_name ILIKE '%' || $2 || '%')
			AND ($3::timestamptz IS NULL OR created_at >= $3)
			AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6
	`, strings.TrimSpace(filter.Status), strings.TrimSpace(filter.Supplier), filter.From, filter.To, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	items := make([]domain.PurchaseOrder, 0, limit)
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		items = append(items, po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase orders: %w", err)
	}
	return items, nil
}

func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	po, err := scanPurchaseOrder(r.db.QueryRow(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		return domain.PurchaseOrder{}, wrap(fmt.Sprintf("get purchase order %d", id), err)
	}
	lines, err := r.purchaseOrderLines(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	po.Lines = lines
	return po, nil
}

// LockPurchaseOrder takes a row lock on the order header before reading it,
// so concurrent status changes queue behind each other.
func (r *Repository) LockPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	var locked int64
	if err := r.db.QueryRow(ctx, `SELECT id FROM purchase_orders WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return domain.PurchaseOrder{}, wrap(fmt.Sprintf("lock purchase order %d", id), err)
	}
	return r.GetPurchaseOrder(ctx, id)
}

func (r *Repository) purchaseOrderLines(ctx context.Context, poID int64) ([]domain.PurchaseOrderLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			l.id,
			l.purchase_order_id,
			l.product_id,
			p.name,
			l.package_unit_id,
			l.unit_name,
			l.quantity,
			l.unit_cost,
			l.base_quantity,
			l.line_total
		FROM purchase_order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.purchase_order_id = $1
		ORDER BY l.id ASC
	`, poID)
	if err != nil {
		return nil, fmt.Errorf("list purchase order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.PurchaseOrderLine, 0)
	for rows.Next() {
		var line domain.PurchaseOrderLine
		if err := rows.Scan(
			&line.ID,
			&line.PurchaseOrderID,
			&line.ProductID,
			&line.ProductName,
			&line.PackageUnitID,
			&line.UnitName,
			&line.Quantity,
			&line.UnitCost,
			&line.BaseQuantity,
			&line.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase order lines: %w", err)
	}
	return lines, nil
}

func (r *Repository) insertPurchaseOrderLines(ctx context.Context, poID int64, lines []domain.PurchaseOrderLine) error {
	for _, line := range lines {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO purchase_order_lines (
				purchase_order_id,
				product_id,
				package_unit_id,
				unit_name,
				quantity,
				unit_cost,
				base_quantity,
				line_total
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, poID, line.ProductID, line.PackageUnitID, line.UnitName, line.Quantity, line.UnitCost, line.BaseQuantity, line.LineTotal); err != nil {
			return wrap("insert purchase order line", err)
		}
	}
	return nil
}

// CreatePurchaseOrder inserts the header and lines and assigns the order
// number from the generated id.
func (r *Repository) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	var (
		id        int64
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier_name, status, notes, total)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, po.SupplierName, po.Status, po.Notes, po.Total).Scan(&id, &createdAt); err != nil {
		return domain.PurchaseOrder{}, wrap("create purchase order", err)
	}
	if _, err := r.db.Exec(ctx, `UPDATE purchase_orders SET number = $2 WHERE id = $1`,
		id, domain.PurchaseOrderNumber(createdAt, id)); err != nil {
		return domain.PurchaseOrder{}, wrap("number purchase order", err)
	}
	if err := r.insertPurchaseOrderLines(ctx, id, po.Lines); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return r.GetPurchaseOrder(ctx, id)
}

// UpdatePurchaseOrder writes the header. Lines are rewritten only while the
// order is a draft; after that they are frozen.
func (r *Repository) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE purchase_orders
		SET
			supplier_name = $2,
			status = $3,
			notes = $4,
			total = $5,
			ordered_at = $6,
			received_at = $7,
			paid_at = $8,
			cancelled_at = $9,
			receipt_group_id = $10,
			payment_group_id = $11,
			updated_at = NOW()
		WHERE id = $1
	`,
		po.ID,
		po.SupplierName,
		po.Status,
		po.Notes,
		po.Total,
		po.OrderedAt,
		po.ReceivedAt,
		po.PaidAt,
		po.CancelledAt,
		po.ReceiptGroupID,
		po.PaymentGroupID,
	)
	if err != nil {
		return domain.PurchaseOrder{}, wrap(fmt.Sprintf("update purchase order %d", po.ID), err)
	}
	if err := affectedOne(tag); err != nil {
		return domain.PurchaseOrder{}, err
	}

	if po.Status == domain.PurchaseOrderDraft {
		if _, err := r.db.Exec(ctx, `DELETE FROM purchase_order_lines WHERE purchase_order_id = $1`, po.ID); err != nil {
			return domain.PurchaseOrder{}, wrap("replace purchase order lines", err)
		}
		if err := r.insertPurchaseOrderLines(ctx, po.ID, po.Lines); err != nil {
			return domain.PurchaseOrder{}, err
		}
	}
	return r.GetPurchaseOrder(ctx, po.ID)
}

func (r *Repository) DeletePurchaseOrder(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return wrap(fmt.Sprintf("delete purchase order %d", id), err)
	}
	return affectedOne(tag)
}
