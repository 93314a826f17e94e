package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/shopspring/decimal"
)

type ProductInput struct {
	Name                 string          `json:"name" validate:"required,max=300"`
	Barcode              *string         `json:"barcode" validate:"omitempty,max=64"`
	CategoryID           *int64          `json:"category_id" validate:"omitempty,gt=0"`
	DescriptionID        *int64          `json:"description_id" validate:"omitempty,gt=0"`
	BaseUnit             string          `json:"base_unit" validate:"omitempty,max=40"`
	SellPrice            decimal.Decimal `json:"sell_price"`
	ReorderLevel         *int64          `json:"reorder_level" validate:"omitempty,gte=0"`
	RequiresPrescription bool            `json:"requires_prescription"`
	Active               *bool           `json:"active"`
}

// ProductPatch updates only the fields that are set. An empty barcode and a
// zero category or description id clear the field. Quantity is not
// patchable.
type ProductPatch struct {
	Name                 *string          `json:"name" validate:"omitempty,max=300"`
	Barcode              *string          `json:"barcode" validate:"omitempty,max=64"`
	CategoryID           *int64           `json:"category_id" validate:"omitempty,gte=0"`
	DescriptionID        *int64           `json:"description_id" validate:"omitempty,gte=0"`
	BaseUnit             *string          `json:"base_unit" validate:"omitempty,max=40"`
	SellPrice            *decimal.Decimal `json:"sell_price"`
	ReorderLevel         *int64           `json:"reorder_level" validate:"omitempty,gte=0"`
	RequiresPrescription *bool            `json:"requires_prescription"`
	Active               *bool            `json:"active"`
}

func (s *Service) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, invalidf("barcode is required")
	}
	return s.store.GetProductByBarcode(ctx, barcode)
}

func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error) {
	p := domain.Product{
		Name:                 strings.TrimSpace(input.Name),
		Barcode:              normalizeNullable(input.Barcode),
		CategoryID:           input.CategoryID,
		DescriptionID:        input.DescriptionID,
		BaseUnit:             strings.TrimSpace(input.BaseUnit),
		SellPrice:            input.SellPrice.Round(2),
		AvgCost:              decimal.Zero,
		LastCost:             decimal.Zero,
		ReorderLevel:         input.ReorderLevel,
		RequiresPrescription: input.RequiresPrescription,
		Active:               boolOr(input.Active, true),
	}
	if p.BaseUnit == "" {
		p.BaseUnit = domain.DefaultBaseUnit
	}

	var created domain.Product
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if err := checkProduct(ctx, q, p); err != nil {
			return err
		}
		var err error
		created, err = q.CreateProduct(ctx, p)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "product_create", "Product created", created.Name)
	})
	return created, err
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Barcode != nil {
			p.Barcode = normalizeNullable(patch.Barcode)
		}
		if patch.CategoryID != nil {
			p.CategoryID = zeroAsNil(*patch.CategoryID)
		}
		if patch.DescriptionID != nil {
			p.DescriptionID = zeroAsNil(*patch.DescriptionID)
		}
		if patch.BaseUnit != nil {
			p.BaseUnit = strings.TrimSpace(*patch.BaseUnit)
			if p.BaseUnit == "" {
				p.BaseUnit = domain.DefaultBaseUnit
			}
		}
		if patch.SellPrice != nil {
			p.SellPrice = patch.SellPrice.Round(2)
		}
		if patch.ReorderLevel != nil {
			level := *patch.ReorderLevel
			p.ReorderLevel = &level
		}
		if patch.RequiresPrescription != nil {
			p.RequiresPrescription = *patch.RequiresPrescription
		}
		if patch.Active != nil {
			p.Active = *patch.Active
		}
		if err := checkProduct(ctx, q, p); err != nil {
			return err
		}
		if patch.BaseUnit != nil {
			if err := checkBaseUnitFree(ctx, q, p); err != nil {
				return err
			}
		}

		updated, err = q.UpdateProduct(ctx, p)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "product_update", "Product updated", updated.Name)
	})
	return updated, err
}

func zeroAsNil(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func checkProduct(ctx context.Context, q store.Queries, p domain.Product) error {
	if p.Name == "" {
		return invalidf("name is required")
	}
	if p.SellPrice.IsNegative() {
		return invalidf("sell_price cannot be negative")
	}
	if p.ReorderLevel != nil && *p.ReorderLevel < 0 {
		return invalidf("reorder_level cannot be negative")
	}
	if p.CategoryID != nil {
		if err := requireCategory(ctx, q, *p.CategoryID); err != nil {
			return err
		}
	}
	if p.DescriptionID != nil {
		d, err := q.GetDescription(ctx, *p.DescriptionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalidf("description %d does not exist", *p.DescriptionID)
			}
			return err
		}
		if p.CategoryID != nil && d.CategoryID != *p.CategoryID {
			return invalidf("description %d belongs to another category", d.ID)
		}
	}
	return checkBarcodeFree(ctx, q, p.Barcode, p.ID, nil)
}

// checkBarcodeFree rejects a barcode already printed on another product or
// package. Products and package units share one barcode space because the
// scanner lookup searches both. unit is nil when checking a product.
func checkBarcodeFree(ctx context.Context, q store.Queries, barcode *string, productID int64, unit *domain.PackageUnit) error {
	if barcode == nil || *barcode == "" {
		return nil
	}
	owner, err := q.GetProductByBarcode(ctx, *barcode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	taken := func() error {
		return fmt.Errorf("%w: barcode %s is already used by %s", store.ErrConflict, *barcode, owner.Name)
	}
	if owner.Barcode != nil && *owner.Barcode == *barcode && (unit != nil || owner.ID != productID) {
		return taken()
	}
	units, err := q.ListPackageUnits(ctx, owner.ID)
	if err != nil {
		return err
	}
	for _, u := range units {
		if u.Barcode != nil && *u.Barcode == *barcode && (unit == nil || u.ID != unit.ID) {
			return taken()
		}
	}
	return nil
}

// checkBaseUnitFree rejects a base unit that collides with one of the
// product's package unit names.
func checkBaseUnitFree(ctx context.Context, q store.Queries, p domain.Product) error {
	units, err := q.ListPackageUnits(ctx, p.ID)
	if err != nil {
		return err
	}
	for _, u := range units {
		if strings.EqualFold(u.Name, p.BaseUnit) {
			return invalidf("base_unit %q is already a package unit", p.BaseUnit)
		}
	}
	return nil
}

// DeleteProduct removes a product that no movement, purchase order or sale
// refers to. A referenced product is deactivated instead and deactivated
// reports true.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (deactivated bool, err error) {
	err = s.store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		// A failed DELETE aborts a Postgres transaction, so references are
		// counted first rather than recovered from.
		refs, err := q.CountProductReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs == 0 {
			if err := q.DeleteProduct(ctx, id); err != nil {
				return err
			}
			return s.record(ctx, q, "product_delete", "Product deleted", p.Name)
		}

		p.Active = false
		if _, err := q.UpdateProduct(ctx, p); err != nil {
			return err
		}
		deactivated = true
		return s.record(ctx, q, "product_deactivate", "Product deactivated", fmt.Sprintf("%s has stock or order history", p.Name))
	})
	return deactivated, err
}

func (s *Service) ListStockMovements(ctx context.Context, productID int64, limit, offset int) ([]domain.StockMovement, int, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListStockMovements(ctx, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountStockMovements(ctx, productID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
