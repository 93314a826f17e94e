package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/shopspring/decimal"
)

func sortBy[T any](items []T, key func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	defer s.lock()()
	db := s.db()
	search := strings.TrimSpace(filter.Search)
	items := make([]domain.Product, 0)
	for _, id := range sortedIDs(db.products) {
		p := db.products[id]
		if !filter.IncludeInactive && !p.Active {
			continue
		}
		if search != "" && !contains(p.Name, search) && (p.Barcode == nil || *p.Barcode != search) {
			continue
		}
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.LowStock != nil && p.Quantity > reorderLevel(p, *filter.LowStock) {
			continue
		}
		items = append(items, p)
	}
	return page(items, filter.Limit, filter.Offset), nil
}

func reorderLevel(p domain.Product, threshold int64) int64 {
	if p.ReorderLevel != nil {
		return *p.ReorderLevel
	}
	return threshold
}

func (s *Store) ListAllProducts(_ context.Context) ([]domain.Product, error) {
	defer s.lock()()
	db := s.db()
	items := make([]domain.Product, 0, len(db.products))
	for _, id := range sortedIDs(db.products) {
		items = append(items, db.products[id])
	}
	sortBy(items, func(p domain.Product) string { return p.Name })
	return items, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	defer s.lock()()
	p, ok := s.db().products[id]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	return p, nil
}

// LockProduct is GetProduct; the store lock already serializes transactions.
func (s *Store) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *Store) GetProductByName(_ context.Context, name string) (domain.Product, error) {
	defer s.lock()()
	db := s.db()
	for _, id := range sortedIDs(db.products) {
		if sameKey(db.products[id].Name, name) {
			return db.products[id], nil
		}
	}
	return domain.Product{}, store.ErrNotFound
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (domain.Product, error) {
	defer s.lock()()
	db := s.db()
	barcode = strings.TrimSpace(barcode)
	for _, id := range sortedIDs(db.products) {
		p := db.products[id]
		if p.Barcode != nil && *p.Barcode == barcode {
			return p, nil
		}
	}
	for _, id := range sortedIDs(db.packageUnits) {
		u := db.packageUnits[id]
		if u.Barcode != nil && *u.Barcode == barcode {
			if p, ok := db.products[u.ProductID]; ok {
				return p, nil
			}
		}
	}
	return domain.Product{}, store.ErrNotFound
}

func (s *Store) checkProduct(p domain.Product) error {
	for _, other := range s.db().products {
		if other.ID == p.ID {
			continue
		}
		if sameKey(other.Name, p.Name) {
			return conflict("product name already exists")
		}
		if p.Barcode != nil && other.Barcode != nil && *other.Barcode == *p.Barcode {
			return conflict("barcode already exists")
		}
	}
	return nil
}

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	defer s.lock()()
	if err := s.checkProduct(p); err != nil {
		return domain.Product{}, err
	}
	db := s.db()
	p.ID = db.next("products")
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	db.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	defer s.lock()()
	db := s.db()
	existing, ok := db.products[p.ID]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	if err := s.checkProduct(p); err != nil {
		return domain.Product{}, err
	}
	existing.Name = p.Name
	existing.Barcode = p.Barcode
	existing.CategoryID = p.CategoryID
	existing.DescriptionID = p.DescriptionID
	existing.BaseUnit = p.BaseUnit
	existing.SellPrice = p.SellPrice
	existing.ReorderLevel = p.ReorderLevel
	existing.RequiresPrescription = p.RequiresPrescription
	existing.Active = p.Active
	existing.UpdatedAt = s.now()
	db.products[p.ID] = existing
	return existing, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	defer s.lock()()
	db := s.db()
	if _, ok := db.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, m := range db.movements {
		if m.ProductID == id {
			return conflict("product has stock movements")
		}
	}
	for _, po := range db.purchaseOrders {
		for _, line := range po.Lines {
			if line.ProductID == id {
				return conflict("product is on purchase order %s", po.Number)
			}
		}
	}
	for _, sale := range db.sales {
		for _, line := range sale.Lines {
			if line.ProductID == id {
				return conflict("product is on sale %s", sale.Number)
			}
		}
	}
	for unitID, u := range db.packageUnits {
		if u.ProductID == id {
			delete(db.packageUnits, unitID)
		}
	}
	delete(db.products, id)
	return nil
}

func (s *Store) UpdateProductStock(_ context.Context, id int64, quantity int64, avgCost, lastCost decimal.Decimal) error {
	defer s.lock()()
	db := s.db()
	p, ok := db.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Quantity = quantity
	p.AvgCost = avgCost
	p.LastCost = lastCost
	p.UpdatedAt = s.now()
	db.products[id] = p
	return nil
}

func (s *Store) UpdateProductSellPrice(_ context.Context, id int64, price decimal.Decimal) error {
	defer s.lock()()
	db := s.db()
	p, ok := db.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.SellPrice = price
	p.UpdatedAt = s.now()
	db.products[id] = p
	return nil
}

func (s *Store) InventorySummary(_ context.Context) (domain.InventorySummary, error) {
	defer s.lock()()
	summary := domain.InventorySummary{InventoryValue: decimal.Zero}
	for _, p := range s.db().products {
		if !p.Active {
			continue
		}
		summary.TotalProducts++
		summary.TotalQuantity += p.Quantity
		summary.InventoryValue = summary.InventoryValue.Add(p.StockValue())
	}
	return summary, nil
}

func (s *Store) LowStock(_ context.Context, threshold int64) ([]domain.LowStockRow, error) {
	defer s.lock()()
	db := s.db()
	items := make([]domain.LowStockRow, 0)
	for _, id := range sortedIDs(db.products) {
		p := db.products[id]
		level := reorderLevel(p, threshold)
		if !p.Active || p.Quantity > level {
			continue
		}
		items = append(items, domain.LowStockRow{
			ProductID:    p.ID,
			Name:         p.Name,
			Quantity:     p.Quantity,
			ReorderLevel: level,
			Needed:       level - p.Quantity,
			AvgCost:      p.AvgCost,
			SellPrice:    p.SellPrice,
		})
	}
	slices.SortStableFunc(items, func(a, b domain.LowStockRow) int {
		if c := cmp.Compare(a.Quantity, b.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) InsertStockMovement(_ context.Context, m domain.StockMovement) error {
	defer s.lock()()
	db := s.db()
	if _, ok := db.products[m.ProductID]; !ok {
		return conflict("product %d does not exist", m.ProductID)
	}
	m.ID = db.next("stock_movements")
	m.CreatedAt = s.now()
	db.movements = append(db.movements, m)
	return nil
}

func (s *Store) productMovements(productID int64) []domain.StockMovement {
	db := s.db()
	items := make([]domain.StockMovement, 0)
	for i := len(db.movements) - 1; i >= 0; i-- {
		if db.movements[i].ProductID == productID {
			items = append(items, db.movements[i])
		}
	}
	return items
}

func (s *Store) ListStockMovements(_ context.Context, productID int64, limit, offset int) ([]domain.StockMovement, error) {
	defer s.lock()()
	return page(s.productMovements(productID), limit, offset), nil
}

func (s *Store) CountStockMovements(_ context.Context, productID int64) (int, error) {
	defer s.lock()()
	return len(s.productMovements(productID)), nil
}

func (s *Store) CountProductReferences(_ context.Context, productID int64) (int, error) {
	defer s.lock()()
	db := s.db()
	count := len(s.productMovements(productID))
	for _, po := range db.purchaseOrders {
		for _, line := range po.Lines {
			if line.ProductID == productID {
				count++
			}
		}
	}
	for _, sale := range db.sales {
		for _, line := range sale.Lines {
			if line.ProductID == productID {
				count++
			}
		}
	}
	return count, nil
}

func (s *Store) ListPackageUnits(_ context.Context, productID int64) ([]domain.PackageUnit, error) {
	defer s.lock()()
	db := s.db()
	items := make([]domain.PackageUnit, 0)
	for _, id := range sortedIDs(db.packageUnits) {
		if u := db.packageUnits[id]; u.ProductID == productID {
			items = append(items, u)
		}
	}
	slices.SortStableFunc(items, func(a, b domain.PackageUnit) int { return cmp.Compare(a.Ratio, b.Ratio) })
	return items, nil
}

func (s *Store) GetPackageUnit(_ context.Context, id int64) (domain.PackageUnit, error) {
	defer s.lock()()
	u, ok := s.db().packageUnits[id]
	if !ok {
		return domain.PackageUnit{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) checkPackageUnit(u domain.PackageUnit) error {
	db := s.db()
	if _, ok := db.products[u.ProductID]; !ok {
		return conflict("product %d does not exist", u.ProductID)
	}
	for _, other := range db.packageUnits {
		if other.ID == u.ID {
			continue
		}
		if other.ProductID == u.ProductID && sameKey(other.Name, u.Name) {
			return conflict("package unit name already exists")
		}
		if u.Barcode != nil && other.Barcode != nil && *other.Barcode == *u.Barcode {
			return conflict("barcode already exists")
		}
	}
	return nil
}

func (s *Store) CreatePackageUnit(_ context.Context, u domain.PackageUnit) (domain.PackageUnit, error) {
	defer s.lock()()
	if err := s.checkPackageUnit(u); err != nil {
		return domain.PackageUnit{}, err
	}
	db := s.db()
	u.ID = db.next("package_units")
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	db.packageUnits[u.ID] = u
	return u, nil
}

func (s *Store) UpdatePackageUnit(_ context.Context, u domain.PackageUnit) (domain.PackageUnit, error) {
	defer s.lock()()
	db := s.db()
	existing, ok := db.packageUnits[u.ID]
	if !ok {
		return domain.PackageUnit{}, store.ErrNotFound
	}
	u.ProductID = existing.ProductID
	if err := s.checkPackageUnit(u); err != nil {
		return domain.PackageUnit{}, err
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = s.now()
	db.packageUnits[u.ID] = u
	return u, nil
}

func (s *Store) DeletePackageUnit(_ context.Context, id int64) error {
	defer s.lock()()
	db := s.db()
	if _, ok := db.packageUnits[id]; !ok {
		return store.ErrNotFound
	}
	refersTo := func(unitID *int64) bool { return unitID != nil && *unitID == id }
	for _, po := range db.purchaseOrders {
		for _, line := range po.Lines {
			if refersTo(line.PackageUnitID) {
				return conflict("package unit is on purchase order %s", po.Number)
			}
		}
	}
	for _, sale := range db.sales {
		for _, line := range sale.Lines {
			if refersTo(line.PackageUnitID) {
				return conflict("package unit is on sale %s", sale.Number)
			}
		}
	}
	delete(db.packageUnits, id)
	return nil
}
