package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"
)

type CategoryInput struct {
	Name   string  `json:"name" validate:"required,max=200"`
	Note   *string `json:"note" validate:"omitempty,max=1000"`
	Active *bool   `json:"active"`
}

type CategoryPatch struct {
	Name   *string `json:"name" validate:"omitempty,max=200"`
	Note   *string `json:"note" validate:"omitempty,max=1000"`
	Active *bool   `json:"active"`
}

func (s *Service) ListCategories(ctx context.Context, filter store.CategoryFilter) ([]domain.Category, error) {
	return s.store.ListCategories(ctx, filter)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Category{}, invalidf("name is required")
	}
	var created domain.Category
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		created, err = q.CreateCategory(ctx, domain.Category{
			Name:   name,
			Note:   normalizeNullable(input.Note),
			Active: boolOr(input.Active, true),
		})
		if err != nil {
			return err
		}
		return s.record(ctx, q, "category_create", "Category created", created.Name)
	})
	return created, err
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) (domain.Category, error) {
	var updated domain.Category
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		c, err := q.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
			if c.Name == "" {
				return invalidf("name cannot be empty")
			}
		}
		if patch.Note != nil {
			c.Note = normalizeNullable(patch.Note)
		}
		if patch.Active != nil {
			c.Active = *patch.Active
		}
		updated, err = q.UpdateCategory(ctx, c)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "category_update", "Category updated", updated.Name)
	})
	return updated, err
}

// DeleteCategory removes an unused category. Categories that products or
// descriptions still point at can only be deactivated.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(q store.Queries) error {
		c, err := q.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		refs, err := q.CountCategoryReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return statef("category %q is used by %d products or descriptions", c.Name, refs)
		}
		if err := q.DeleteCategory(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, q, "category_delete", "Category deleted", c.Name)
	})
}

type DescriptionInput struct {
	CategoryID int64  `json:"category_id" validate:"required,gt=0"`
	Text       string `json:"text" validate:"required,max=2000"`
}

type DescriptionPatch struct {
	CategoryID *int64  `json:"category_id" validate:"omitempty,gt=0"`
	Text       *string `json:"text" validate:"omitempty,max=2000"`
}

func (s *Service) ListDescriptions(ctx context.Context, categoryID *int64) ([]domain.Description, error) {
	return s.store.ListDescriptions(ctx, categoryID)
}

func (s *Service) GetDescription(ctx context.Context, id int64) (domain.Description, error) {
	return s.store.GetDescription(ctx, id)
}

func requireCategory(ctx context.Context, q store.Queries, id int64) error {
	if _, err := q.GetCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidf("category %d does not exist", id)
		}
		return err
	}
	return nil
}

func (s *Service) CreateDescription(ctx context.Context, input DescriptionInput) (domain.Description, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return domain.Description{}, invalidf("text is required")
	}
	var created domain.Description
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if err := requireCategory(ctx, q, input.CategoryID); err != nil {
			return err
		}
		var err error
		created, err = q.CreateDescription(ctx, domain.Description{CategoryID: input.CategoryID, Text: text})
		if err != nil {
			return err
		}
		return s.record(ctx, q, "description_create", "Description created", created.Text)
	})
	return created, err
}

func (s *Service) UpdateDescription(ctx context.Context, id int64, patch DescriptionPatch) (domain.Description, error) {
	var updated domain.Description
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		d, err := q.GetDescription(ctx, id)
		if err != nil {
			return err
		}
		if patch.CategoryID != nil && *patch.CategoryID != d.CategoryID {
			if err := requireCategory(ctx, q, *patch.CategoryID); err != nil {
				return err
			}
			refs, err := q.CountDescriptionReferences(ctx, id)
			if err != nil {
				return err
			}
			if refs > 0 {
				return statef("description is used by %d products and cannot change category", refs)
			}
			d.CategoryID = *patch.CategoryID
		}
		if patch.Text != nil {
			d.Text = strings.TrimSpace(*patch.Text)
			if d.Text == "" {
				return invalidf("text cannot be empty")
			}
		}
		updated, err = q.UpdateDescription(ctx, d)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "description_update", "Description updated", updated.Text)
	})
	return updated, err
}

func (s *Service) DeleteDescription(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(q store.Queries) error {
		d, err := q.GetDescription(ctx, id)
		if err != nil {
			return err
		}
		refs, err := q.CountDescriptionReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return statef("description is used by %d products", refs)
		}
		if err := q.DeleteDescription(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, q, "description_delete", "Description deleted", fmt.Sprintf("#%d %s", d.ID, d.Text))
	})
}
