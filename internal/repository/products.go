package repository

import (
	"context"
	"fmt"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `
	id,
	name,
	barcode,
	category_id,
	description_id,
	base_unit,
	sell_price,
	avg_cost,
	last_cost,
	quantity,
	reorder_level,
	requires_prescription,
	active,
	created_at,
	updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Barcode,
		&p.CategoryID,
		&p.DescriptionID,
		&p.BaseUnit,
		&p.SellPrice,
		&p.AvgCost,
		&p.LastCost,
		&p.Quantity,
		&p.ReorderLevel,
		&p.RequiresPrescription,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func collectProducts(rows pgx.Rows, capacity int) ([]domain.Product, error) {
	defer rows.Close()
	products := make([]domain.Product, 0, capacity)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *Repository) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	limit := store.NormalizeLimit(filter.Limit)
	offset := store.NormalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)

	base := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR barcode = $1)
			AND ($2 OR active)
	`
	args := []any{search, filter.IncludeInactive}
	argIndex := 3
	if filter.CategoryID != nil {
		base += fmt.Sprintf(" AND category_id = $%d", argIndex)
		args = append(args, *filter.CategoryID)
		argIndex++
	}
	if filter.LowStock != nil {
		base += fmt.Sprintf(" AND quantity <= COALESCE(reorder_level, $%d)", argIndex)
		args = append(args, *filter.LowStock)
		argIndex++
	}
	base += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows, limit)
}

func (r *Repository) ListAllProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	return collectProducts(rows, 0)
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return domain.Product{}, wrap(fmt.Sprintf("get product %d", id), err)
	}
	return p, nil
}

// LockProduct reads a product with a row lock held until the surrounding
// transaction ends.
func (r *Repository) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Product{}, wrap(fmt.Sprintf("lock product %d", id), err)
	}
	return p, nil
}

func (r *Repository) GetProductByName(ctx context.Context, name string) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))
	`, name))
	if err != nil {
		return domain.Product{}, wrap("get product by name", err)
	}
	return p, nil
}

func (r *Repository) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE barcode = $1
			OR id = (SELECT product_id FROM package_units WHERE barcode = $1 LIMIT 1)
		LIMIT 1
	`, strings.TrimSpace(barcode)))
	if err != nil {
		return domain.Product{}, wrap("get product by barcode", err)
	}
	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	created, err := scanProduct(r.db.QueryRow(ctx, `
		INSERT INTO products (
			name,
			barcode,
			category_id,
			description_id,
			base_unit,
			sell_price,
			avg_cost,
			last_cost,
			quantity,
			reorder_level,
			requires_prescription,
			active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+productColumns,
		p.Name,
		p.Barcode,
		p.CategoryID,
		p.DescriptionID,
		p.BaseUnit,
		p.SellPrice,
		p.AvgCost,
		p.LastCost,
		p.Quantity,
		p.ReorderLevel,
		p.RequiresPrescription,
		p.Active,
	))
	if err != nil {
		return domain.Product{}, wrap("create product", err)
	}
	return created, nil
}

// UpdateProduct writes the editable product fields. Stock and cost columns
// only change through UpdateProductStock.
func (r *Repository) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	updated, err := scanProduct(r.db.QueryRow(ctx, `
		UPDATE products
		SET
			name = $2,
			barcode = $3,
			category_id = $4,
			description_id = $5,
			base_unit = $6,
			sell_price = $7,
			reorder_level = $8,
			requires_prescription = $9,
			active = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID,
		p.Name,
		p.Barcode,
		p.CategoryID,
		p.DescriptionID,
		p.BaseUnit,
		p.SellPrice,
		p.ReorderLevel,
		p.RequiresPrescription,
		p.Active,
	))
	if err != nil {
		return domain.Product{}, wrap(fmt.Sprintf("update product %d", p.ID), err)
	}
	return updated, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return wrap(fmt.Sprintf("delete product %d", id), err)
	}
	return affectedOne(tag)
}

func (r *Repository) UpdateProductStock(ctx context.Context, id int64, quantity int64, avgCost, lastCost decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET quantity = $2, avg_cost = $3, last_cost = $4, updated_at = NOW()
		WHERE id = $1
	`, id, quantity, avgCost, lastCost)
	if err != nil {
		return wrap(fmt.Sprintf("update stock for product %d", id), err)
	}
	return affectedOne(tag)
}

func (r *Repository) UpdateProductSellPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET sell_price = $2, updated_at = NOW() WHERE id = $1
	`, id, price)
	if err != nil {
		return wrap(fmt.Sprintf("update sell price for product %d", id), err)
	}
	return affectedOne(tag)
}

func (r *Repository) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	var summary domain.InventorySummary
	if err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*)::int,
			COALESCE(SUM(quantity), 0)::bigint,
			COALESCE(SUM(GREATEST(quantity, 0) * avg_cost), 0)
		FROM products
		WHERE active
	`).Scan(&summary.TotalProducts, &summary.TotalQuantity, &summary.InventoryValue); err != nil {
		return domain.InventorySummary{}, fmt.Errorf("inventory summary: %w", err)
	}
	return summary, nil
}

func (r *Repository) LowStock(ctx context.Context, threshold int64) ([]domain.LowStockRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			id,
			name,
			quantity,
			COALESCE(reorder_level, $1),
			avg_cost,
			sell_price
		FROM products
		WHERE active AND quantity <= COALESCE(reorder_level, $1)
		ORDER BY quantity ASC, name ASC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	defer rows.Close()

	items := make([]domain.LowStockRow, 0)
	for rows.Next() {
		var row domain.LowStockRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Quantity, &row.ReorderLevel, &row.AvgCost, &row.SellPrice); err != nil {
			return nil, fmt.Errorf("scan low stock row: %w", err)
		}
		row.Needed = row.ReorderLevel - row.Quantity
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate low stock: %w", err)
	}
	return items, nil
}

func (r *Repository) InsertStockMovement(ctx context.Context, m domain.StockMovement) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO stock_movements (
			product_id,
			delta,
			reason,
			reference_type,
			reference_id,
			unit_cost,
			note,
			actor
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ProductID, m.Delta, m.Reason, m.ReferenceType, m.ReferenceID, m.UnitCost, m.Note, m.Actor); err != nil {
		return wrap("insert stock movement", err)
	}
	return nil
}

func (r *Repository) ListStockMovements(ctx context.Context, productID int64, limit, offset int) ([]domain.StockMovement, error) {
	limit = store.NormalizeLimit(limit)
	offset = store.NormalizeOffset(offset)

	rows, err := r.db.Query(ctx, `
		SELECT
			id,
			product_id,
			delta,
			reason,
			reference_type,
			reference_id,
			unit_cost,
			note,
			actor,
			created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, productID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	items := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(
			&m.ID,
			&m.ProductID,
			&m.Delta,
			&m.Reason,
			&m.ReferenceType,
			&m.ReferenceID,
			&m.UnitCost,
			&m.Note,
			&m.Actor,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}
	return items, nil
}

func (r *Repository) CountStockMovements(ctx context.Context, productID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM stock_movements WHERE product_id = $1
	`, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stock movements: %w", err)
	}
	return count, nil
}

// CountProductReferences counts the rows that keep a product from being
// deleted: stock movements, purchase order lines and sale lines.
func (r *Repository) CountProductReferences(ctx context.Context, productID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM stock_movements WHERE product_id = $1)::int +
			(SELECT COUNT(*) FROM purchase_order_lines WHERE product_id = $1)::int +
			(SELECT COUNT(*) FROM sale_lines WHERE product_id = $1)::int
	`, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count product references: %w", err)
	}
	return count, nil
}

const packageUnitColumns = `id, product_id, name, ratio, barcode, sell_price, created_at, updated_at`

func scanPackageUnit(row pgx.Row) (domain.PackageUnit, error) {
	var u domain.PackageUnit
	err := row.Scan(&u.ID, &u.ProductID, &u.Name, &u.Ratio, &u.Barcode, &u.SellPrice, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *Repository) ListPackageUnits(ctx context.Context, productID int64) ([]domain.PackageUnit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+packageUnitColumns+`
		FROM package_units
		WHERE product_id = $1
		ORDER BY ratio ASC, id ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list package units: %w", err)
	}
	defer rows.Close()

	items := make([]domain.PackageUnit, 0)
	for rows.Next() {
		u, err := scanPackageUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package unit: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate package units: %w", err)
	}
	return items, nil
}

func (r *Repository) GetPackageUnit(ctx context.Context, id int64) (domain.PackageUnit, error) {
	u, err := scanPackageUnit(r.db.QueryRow(ctx, `SELECT `+packageUnitColumns+` FROM package_units WHERE id = $1`, id))
	if err != nil {
		return domain.PackageUnit{}, wrap(fmt.Sprintf("get package unit %d", id), err)
	}
	return u, nil
}

func (r *Repository) CreatePackageUnit(ctx context.Context, u domain.PackageUnit) (domain.PackageUnit, error) {
	created, err := scanPackageUnit(r.db.QueryRow(ctx, `
		INSERT INTO package_units (product_id, name, ratio, barcode, sell_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+packageUnitColumns, u.ProductID, u.Name, u.Ratio, u.Barcode, u.SellPrice))
	if err != nil {
		return domain.PackageUnit{}, wrap("create package unit", err)
	}
	return created, nil
}

func (r *Repository) UpdatePackageUnit(ctx context.Context, u domain.PackageUnit) (domain.PackageUnit, error) {
	updated, err := scanPackageUnit(r.db.QueryRow(ctx, `
		UPDATE package_units
		SET name = $2, ratio = $3, barcode = $4, sell_price = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+packageUnitColumns, u.ID, u.Name, u.Ratio, u.Barcode, u.SellPrice))
	if err != nil {
		return domain.PackageUnit{}, wrap(fmt.Sprintf("update package unit %d", u.ID), err)
	}
	return updated, nil
}

func (r *Repository) DeletePackageUnit(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM package_units WHERE id = $1`, id)
	if err != nil {
		return wrap(fmt.Sprintf("delete package unit %d", id), err)
	}
	return affectedOne(tag)
}
