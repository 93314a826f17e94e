package repository

import (
	"context"
	"fmt"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"
)

func (r *Repository) LogAction(ctx context.Context, a domain.ActionEntry) error {
	actionType := strings.TrimSpace(a.ActionType)
	title := strings.TrimSpace(a.Title)
	if actionType == "" || title == "" {
		return fmt.Errorf("action_type and title are required")
	}
	details := a.Details
	if details == "" {
		details = "-"
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO actions (
			actor,
			action_type,
			title,
			details
		) VALUES ($1, $2, $3, $4)
	`, a.Actor, actionType, title, details); err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

const actionSearch = `($1 = '' OR title ILIKE '%' || $1 || '%' OR details ILIKE '%' || $1 || '%' OR COALESCE(actor, '') ILIKE '%' || $1 || '%')`

func (r *Repository) ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error) {
	limit = store.NormalizeLimit(limit)
	offset = store.NormalizeOffset(offset)

	rows, err := r.db.Query(ctx, `
		SELECT
			id,
			created_at,
			actor,
			action_type,
			title,
			details
		FROM actions
		WHERE `+actionSearch+`
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ActionEntry, 0, limit)
	for rows.Next() {
		var row domain.ActionEntry
		if err := rows.Scan(
			&row.ActionID,
			&row.CreatedAt,
			&row.Actor,
			&row.ActionType,
			&row.Title,
			&row.Details,
		); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return items, nil
}

func (r *Repository) CountActions(ctx context.Context, search string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM actions
		WHERE `+actionSearch, strings.TrimSpace(search)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return count, nil
}
