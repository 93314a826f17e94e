package repository

import (
	"context"
	"fmt"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/jackc/pgx/v5"
)

const categoryColumns = `id, name, note, active, created_at, updated_at`

func scanCategory(row pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Note, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) ListCategories(ctx context.Context, filter store.CategoryFilter) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
			AND ($2 OR active)
		ORDER BY name ASC
	`, strings.TrimSpace(filter.Search), filter.IncludeInactive)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return domain.Category{}, wrap(fmt.Sprintf("get category %d", id), err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	created, err := scanCategory(r.db.QueryRow(ctx, `
		INSERT INTO categories (name, note, active)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns, c.Name, c.Note, c.Active))
	if err != nil {
		return domain.Category{}, wrap("create category", err)
	}
	return created, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	updated, err := scanCategory(r.db.QueryRow(ctx, `
		UPDATE categories
		SET name = $2, note = $3, active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+categoryColumns, c.ID, c.Name, c.Note, c.Active))
	if err != nil {
		return domain.Category{}, wrap(fmt.Sprintf("update category %d", c.ID), err)
	}
	return updated, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return wrap(fmt.Sprintf("delete category %d", id), err)
	}
	return affectedOne(tag)
}

// CountCategoryReferences counts products and descriptions pointing at the
// category.
func (r *Repository) CountCategoryReferences(ctx context.Context, id int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products WHERE category_id = $1)::int +
			(SELECT COUNT(*) FROM descriptions WHERE category_id = $1)::int
	`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count category references: %w", err)
	}
	return count, nil
}

const descriptionColumns = `id, category_id, text, created_at, updated_at`

func scanDescription(row pgx.Row) (domain.Description, error) {
	var d domain.Description
	err := row.Scan(&d.ID, &d.CategoryID, &d.Text, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *Repository) ListDescriptions(ctx context.Context, categoryID *int64) ([]domain.Description, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+descriptionColumns+`
		FROM descriptions
		WHERE ($1::bigint IS NULL OR category_id = $1)
		ORDER BY category_id ASC, text ASC
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list descriptions: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Description, 0)
	for rows.Next() {
		d, err := scanDescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan description: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptions: %w", err)
	}
	return items, nil
}

func (r *Repository) GetDescription(ctx context.Context, id int64) (domain.Description, error) {
	d, err := scanDescription(r.db.QueryRow(ctx, `SELECT `+descriptionColumns+` FROM descriptions WHERE id = $1`, id))
	if err != nil {
		return domain.Description{}, wrap(fmt.Sprintf("get description %d", id), err)
	}
	return d, nil
}

func (r *Repository) CreateDescription(ctx context.Context, d domain.Description) (domain.Description, error) {
	created, err := scanDescription(r.db.QueryRow(ctx, `
		INSERT INTO descriptions (category_id, text)
		VALUES ($1, $2)
		RETURNING `+descriptionColumns, d.CategoryID, d.Text))
	if err != nil {
		return domain.Description{}, wrap("create description", err)
	}
	return created, nil
}

func (r *Repository) UpdateDescription(ctx context.Context, d domain.Description) (domain.Description, error) {
	updated, err := scanDescription(r.db.QueryRow(ctx, `
		UPDATE descriptions
		SET category_id = $2, text = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+descriptionColumns, d.ID, d.CategoryID, d.Text))
	if err != nil {
		return domain.Description{}, wrap(fmt.Sprintf("update description %d", d.ID), err)
	}
	return updated, nil
}

func (r *Repository) DeleteDescription(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM descriptions WHERE id = $1`, id)
	if err != nil {
		return wrap(fmt.Sprintf("delete description %d", id), err)
	}
	return affectedOne(tag)
}

func (r *Repository) CountDescriptionReferences(ctx context.Context, id int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM products WHERE description_id = $1
	`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count description references: %w", err)
	}
	return count, nil
}
