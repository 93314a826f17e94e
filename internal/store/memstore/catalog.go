package memstore

import (
	"context"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"
)

func (s *Store) ListCategories(_ context.Context, filter store.CategoryFilter) ([]domain.Category, error) {
	defer s.lock()()
	db := s.db()
	search := strings.TrimSpace(filter.Search)
	items := make([]domain.Category, 0, len(db.categories))
	for _, id := range sortedIDs(db.categories) {
		c := db.categories[id]
		if !filter.IncludeInactive && !c.Active {
			continue
		}
		if search != "" && !contains(c.Name, search) {
			continue
		}
		items = append(items, c)
	}
	sortBy(items, func(c domain.Category) string { return c.Name })
	return items, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (domain.Category, error) {
	defer s.lock()()
	c, ok := s.db().categories[id]
	if !ok {
		return domain.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) checkCategoryName(c domain.Category) error {
	for _, other := range s.db().categories {
		if other.ID != c.ID && sameKey(other.Name, c.Name) {
			return conflict("category name already exists")
		}
	}
	return nil
}

func (s *Store) CreateCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	defer s.lock()()
	if err := s.checkCategoryName(c); err != nil {
		return domain.Category{}, err
	}
	db := s.db()
	c.ID = db.next("categories")
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	db.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	defer s.lock()()
	db := s.db()
	existing, ok := db.categories[c.ID]
	if !ok {
		return domain.Category{}, store.ErrNotFound
	}
	if err := s.checkCategoryName(c); err != nil {
		return domain.Category{}, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	db.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	defer s.lock()()
	db := s.db()
	if _, ok := db.categories[id]; !ok {
		return store.ErrNotFound
	}
	if s.categoryRefs(id) > 0 {
		return conflict("category is still referenced")
	}
	delete(db.categories, id)
	return nil
}

func (s *Store) categoryRefs(id int64) int {
	db := s.db()
	count := 0
	for _, p := range db.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			count++
		}
	}
	for _, d := range db.descriptions {
		if d.CategoryID == id {
			count++
		}
	}
	return count
}

func (s *Store) CountCategoryReferences(_ context.Context, id int64) (int, error) {
	defer s.lock()()
	return s.categoryRefs(id), nil
}

func (s *Store) ListDescriptions(_ context.Context, categoryID *int64) ([]domain.Description, error) {
	defer s.lock()()
	db := s.db()
	items := make([]domain.Description, 0, len(db.descriptions))
	for _, id := range sortedIDs(db.descriptions) {
		d := db.descriptions[id]
		if categoryID != nil && d.CategoryID != *categoryID {
			continue
		}
		items = append(items, d)
	}
	sortBy(items, func(d domain.Description) string { return d.Text })
	return items, nil
}

func (s *Store) GetDescription(_ context.Context, id int64) (domain.Description, error) {
	defer s.lock()()
	d, ok := s.db().descriptions[id]
	if !ok {
		return domain.Description{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) checkDescription(d domain.Description) error {
	db := s.db()
	if _, ok := db.categories[d.CategoryID]; !ok {
		return conflict("category %d does not exist", d.CategoryID)
	}
	for _, other := range db.descriptions {
		if other.ID != d.ID && other.CategoryID == d.CategoryID && sameKey(other.Text, d.Text) {
			return conflict("description text already exists")
		}
	}
	return nil
}

func (s *Store) CreateDescription(_ context.Context, d domain.Description) (domain.Description, error) {
	defer s.lock()()
	if err := s.checkDescription(d); err != nil {
		return domain.Description{}, err
	}
	db := s.db()
	d.ID = db.next("descriptions")
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	db.descriptions[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDescription(_ context.Context, d domain.Description) (domain.Description, error) {
	defer s.lock()()
	db := s.db()
	existing, ok := db.descriptions[d.ID]
	if !ok {
		return domain.Description{}, store.ErrNotFound
	}
	if err := s.checkDescription(d); err != nil {
		return domain.Description{}, err
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.now()
	db.descriptions[d.ID] = d
	return d, nil
}

func (s *Store) DeleteDescription(_ context.Context, id int64) error {
	defer s.lock()()
	db := s.db()
	if _, ok := db.descriptions[id]; !ok {
		return store.ErrNotFound
	}
	if s.descriptionRefs(id) > 0 {
		return conflict("description is still referenced")
	}
	delete(db.descriptions, id)
	return nil
}

func (s *Store) descriptionRefs(id int64) int {
	count := 0
	for _, p := range s.db().products {
		if p.DescriptionID != nil && *p.DescriptionID == id {
			count++
		}
	}
	return count
}

func (s *Store) CountDescriptionReferences(_ context.Context, id int64) (int, error) {
	defer s.lock()()
	return s.descriptionRefs(id), nil
}
