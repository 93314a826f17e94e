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

type PackageUnitInput struct {
	Name      string           `json:"name" validate:"required,max=60"`
	Ratio     int64            `json:"ratio" validate:"required,gte=2"`
	Barcode   *string          `json:"barcode" validate:"omitempty,max=64"`
	SellPrice *decimal.Decimal `json:"sell_price"`
}

// PackageUnitPatch updates the set fields. An empty barcode clears it.
type PackageUnitPatch struct {
	Name           *string          `json:"name" validate:"omitempty,max=60"`
	Ratio          *int64           `json:"ratio" validate:"omitempty,gte=2"`
	Barcode        *string          `json:"barcode" validate:"omitempty,max=64"`
	SellPrice      *decimal.Decimal `json:"sell_price"`
	ClearSellPrice bool             `json:"clear_sell_price"`
}

func (s *Service) ListPackageUnits(ctx context.Context, productID int64) ([]domain.PackageUnit, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListPackageUnits(ctx, productID)
}

func (s *Service) CreatePackageUnit(ctx context.Context, productID int64, input PackageUnitInput) (domain.PackageUnit, error) {
	var created domain.PackageUnit
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		product, err := q.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		u := domain.PackageUnit{
			ProductID: productID,
			Name:      strings.TrimSpace(input.Name),
			Ratio:     input.Ratio,
			Barcode:   normalizeNullable(input.Barcode),
			SellPrice: roundedPrice(input.SellPrice),
		}
		if err := checkPackageUnit(product, u); err != nil {
			return err
		}
		if err := checkBarcodeFree(ctx, q, u.Barcode, product.ID, &u); err != nil {
			return err
		}
		created, err = q.CreatePackageUnit(ctx, u)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "package_unit_create", "Package unit created",
			fmt.Sprintf("%s: %s = %d %s", product.Name, created.Name, created.Ratio, product.BaseUnit))
	})
	return created, err
}

func (s *Service) UpdatePackageUnit(ctx context.Context, id int64, patch PackageUnitPatch) (domain.PackageUnit, error) {
	var updated domain.PackageUnit
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		u, err := q.GetPackageUnit(ctx, id)
		if err != nil {
			return err
		}
		product, err := q.GetProduct(ctx, u.ProductID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Ratio != nil {
			u.Ratio = *patch.Ratio
		}
		if patch.Barcode != nil {
			u.Barcode = normalizeNullable(patch.Barcode)
		}
		if patch.SellPrice != nil {
			u.SellPrice = roundedPrice(patch.SellPrice)
		}
		if patch.ClearSellPrice {
			u.SellPrice = nil
		}
		if err := checkPackageUnit(product, u); err != nil {
			return err
		}
		if err := checkBarcodeFree(ctx, q, u.Barcode, product.ID, &u); err != nil {
			return err
		}
		updated, err = q.UpdatePackageUnit(ctx, u)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "package_unit_update", "Package unit updated", product.Name+": "+updated.Name)
	})
	return updated, err
}

func (s *Service) DeletePackageUnit(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(q store.Queries) error {
		u, err := q.GetPackageUnit(ctx, id)
		if err != nil {
			return err
		}
		if err := q.DeletePackageUnit(ctx, id); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return statef("package unit %s is used by orders or sales", u.Name)
			}
			return err
		}
		return s.record(ctx, q, "package_unit_delete", "Package unit deleted", u.Name)
	})
}

func checkPackageUnit(product domain.Product, u domain.PackageUnit) error {
	if u.Name == "" {
		return invalidf("name is required")
	}
	if u.Ratio < 2 {
		return invalidf("ratio must be at least 2")
	}
	if strings.EqualFold(u.Name, product.BaseUnit) {
		return invalidf("name %q is the product's base unit", u.Name)
	}
	if u.SellPrice != nil && u.SellPrice.IsNegative() {
		return invalidf("sell_price cannot be negative")
	}
	return nil
}

func roundedPrice(price *decimal.Decimal) *decimal.Decimal {
	if price == nil {
		return nil
	}
	v := price.Round(2)
	return &v
}

// resolveUnit returns the package unit a line refers to, or nil for the
// base unit. A unit of another product is rejected.
func resolveUnit(ctx context.Context, q store.Queries, product domain.Product, unitID *int64) (*domain.PackageUnit, error) {
	if unitID == nil {
		return nil, nil
	}
	u, err := q.GetPackageUnit(ctx, *unitID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalidf("package unit %d does not exist", *unitID)
		}
		return nil, err
	}
	if u.ProductID != product.ID {
		return nil, invalidf("package unit %d does not belong to %s", u.ID, product.Name)
	}
	return &u, nil
}

func unitName(product domain.Product, unit *domain.PackageUnit) string {
	if unit == nil {
		return product.BaseUnit
	}
	return unit.Name
}

func ratioOf(unit *domain.PackageUnit) int64 {
	if unit == nil {
		return 1
	}
	return unit.Ratio
}
