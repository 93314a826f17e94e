package memstore

import (
	"context"
	"slices"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"
)

func (s *Store) ListPurchaseOrders(_ context.Context, filter store.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	defer s.lock()()
	db := s.db()
	status := strings.TrimSpace(filter.Status)
	supplier := strings.TrimSpace(filter.Supplier)
	items := make([]domain.PurchaseOrder, 0)
	ids := sortedIDs(db.purchaseOrders)
	slices.Reverse(ids)
	for _, id := range ids {
		po := db.purchaseOrders[id]
		if status != "" && string(po.Status) != status {
			continue
		}
		if supplier != "" && !contains(po.SupplierName, supplier) {
			continue
		}
		if !inRange(po.CreatedAt, filter.From, filter.To) {
			continue
		}
		po.Lines = nil
		items = append(items, po)
	}
	return page(items, filter.Limit, filter.Offset), nil
}

func (s *Store) GetPurchaseOrder(_ context.Context, id int64) (domain.PurchaseOrder, error) {
	defer s.lock()()
	return s.purchaseOrder(id)
}

func (s *Store) LockPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return s.GetPurchaseOrder(ctx, id)
}

func (s *Store) purchaseOrder(id int64) (domain.PurchaseOrder, error) {
	db := s.db()
	po, ok := db.purchaseOrders[id]
	if !ok {
		return domain.PurchaseOrder{}, store.ErrNotFound
	}
	po.Lines = slices.Clone(po.Lines)
	for i := range po.Lines {
		po.Lines[i].ProductName = db.products[po.Lines[i].ProductID].Name
	}
	return po, nil
}

func (s *Store) storeLines(poID int64, lines []domain.PurchaseOrderLine) ([]domain.PurchaseOrderLine, error) {
	db := s.db()
	out := make([]domain.PurchaseOrderLine, len(lines))
	for i, line := range lines {
		if _, ok := db.products[line.ProductID]; !ok {
			return nil, conflict("product %d does not exist", line.ProductID)
		}
		line.ID = db.next("purchase_order_lines")
		line.PurchaseOrderID = poID
		out[i] = line
	}
	return out, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	defer s.lock()()
	db := s.db()
	po.ID = db.next("purchase_orders")
	po.CreatedAt = s.now()
	po.UpdatedAt = po.CreatedAt
	po.Number = domain.PurchaseOrderNumber(po.CreatedAt, po.ID)
	lines, err := s.storeLines(po.ID, po.Lines)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	po.Lines = lines
	db.purchaseOrders[po.ID] = po
	return s.purchaseOrder(po.ID)
}

func (s *Store) UpdatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	defer s.lock()()
	db := s.db()
	existing, ok := db.purchaseOrders[po.ID]
	if !ok {
		return domain.PurchaseOrder{}, store.ErrNotFound
	}
	po.Number = existing.Number
	po.CreatedAt = existing.CreatedAt
	po.UpdatedAt = s.now()
	if po.Status == domain.PurchaseOrderDraft {
		lines, err := s.storeLines(po.ID, po.Lines)
		if err != nil {
			return domain.PurchaseOrder{}, err
		}
		po.Lines = lines
	} else {
		po.Lines = existing.Lines
	}
	db.purchaseOrders[po.ID] = po
	return s.purchaseOrder(po.ID)
}

func (s *Store) DeletePurchaseOrder(_ context.Context, id int64) error {
	defer s.lock()()
	db := s.db()
	if _, ok := db.purchaseOrders[id]; !ok {
		return store.ErrNotFound
	}
	delete(db.purchaseOrders, id)
	return nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	defer s.lock()()
	db := s.db()
	status := strings.TrimSpace(filter.Status)
	items := make([]domain.Sale, 0)
	ids := sortedIDs(db.sales)
	slices.Reverse(ids)
	for _, id := range ids {
		sale := db.sales[id]
		if status != "" && string(sale.Status) != status {
			continue
		}
		if !inRange(sale.CreatedAt, filter.From, filter.To) {
			continue
		}
		sale.Lines = nil
		items = append(items, sale)
	}
	return page(items, filter.Limit, filter.Offset), nil
}

func (s *Store) GetSale(_ context.Context, id int64) (domain.Sale, error) {
	defer s.lock()()
	return s.sale(id)
}

func (s *Store) LockSale(ctx context.Context, id int64) (domain.Sale, error) {
	return s.GetSale(ctx, id)
}

func (s *Store) sale(id int64) (domain.Sale, error) {
	db := s.db()
	sale, ok := db.sales[id]
	if !ok {
		return domain.Sale{}, store.ErrNotFound
	}
	sale.Lines = slices.Clone(sale.Lines)
	for i := range sale.Lines {
		sale.Lines[i].ProductName = db.products[sale.Lines[i].ProductID].Name
	}
	return sale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (domain.Sale, error) {
	defer s.lock()()
	db := s.db()
	sale.ID = db.next("sales")
	sale.CreatedAt = s.now()
	sale.Number = domain.SaleNumber(sale.CreatedAt, sale.ID)
	lines := make([]domain.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		if _, ok := db.products[line.ProductID]; !ok {
			return domain.Sale{}, conflict("product %d does not exist", line.ProductID)
		}
		line.ID = db.next("sale_lines")
		line.SaleID = sale.ID
		lines[i] = line
	}
	sale.Lines = lines
	db.sales[sale.ID] = sale
	return s.sale(sale.ID)
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) error {
	defer s.lock()()
	db := s.db()
	existing, ok := db.sales[sale.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Status = sale.Status
	existing.TransactionGroupID = sale.TransactionGroupID
	existing.VoidGroupID = sale.VoidGroupID
	existing.VoidedAt = sale.VoidedAt
	db.sales[sale.ID] = existing
	return nil
}
