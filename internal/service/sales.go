package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/accounting"
	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/shopspring/decimal"
)

type SaleInput struct {
	PaymentMethod   domain.PaymentMethod   `json:"payment_method" validate:"required,oneof=cash card"`
	CustomerName    *string                `json:"customer_name" validate:"omitempty,max=200"`
	PrescriptionRef *string                `json:"prescription_ref" validate:"omitempty,max=100"`
	Lines           []domain.SaleLineInput `json:"lines"`
}

type VoidInput struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (s *Service) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	return s.store.ListSales(ctx, filter)
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	return s.store.GetSale(ctx, id)
}

// CreateSale rings up a sale: stock leaves the shelf, the takings and the
// cost of goods are posted as one transaction group.
func (s *Service) CreateSale(ctx context.Context, input SaleInput) (domain.Sale, error) {
	if input.PaymentMethod != domain.PaymentCash && input.PaymentMethod != domain.PaymentCard {
		return domain.Sale{}, invalidf("payment_method must be cash or card")
	}
	if len(input.Lines) == 0 {
		return domain.Sale{}, invalidf("a sale needs at least one line")
	}

	var created domain.Sale
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		sale := domain.Sale{
			Status:          domain.SaleCompleted,
			PaymentMethod:   input.PaymentMethod,
			CustomerName:    normalizeNullable(input.CustomerName),
			PrescriptionRef: normalizeNullable(input.PrescriptionRef),
			Total:           decimal.Zero,
			CostTotal:       decimal.Zero,
			Actor:           actorFrom(ctx),
		}
		for i, in := range input.Lines {
			line, product, err := s.priceSaleLine(ctx, q, in)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			if product.RequiresPrescription && sale.PrescriptionRef == nil {
				return invalidf("%s requires a prescription reference", product.Name)
			}
			sale.Lines = append(sale.Lines, line)
			sale.Total = sale.Total.Add(line.LineTotal)
			sale.CostTotal = sale.CostTotal.Add(line.UnitCost.Mul(decimal.NewFromInt(line.BaseQuantity)))
		}
		sale.CostTotal = sale.CostTotal.Round(2)

		var err error
		created, err = q.CreateSale(ctx, sale)
		if err != nil {
			return err
		}

		refType, refID := reference("sale", created.ID)
		for _, line := range created.Lines {
			p, err := q.LockProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if _, err := s.moveStock(ctx, q, p, domain.StockMovement{
				Delta:         -line.BaseQuantity,
				Reason:        domain.MovementSale,
				ReferenceType: refType,
				ReferenceID:   refID,
				UnitCost:      line.UnitCost,
			}, p.AvgCost, p.LastCost); err != nil {
				return err
			}
		}

		entries := accounting.Sale(s.roles, created.PaymentMethod, created.Total, created.CostTotal)
		if len(entries) > 0 {
			g, err := s.postTemplate(ctx, q, domain.SourceSale, created.ID, "Sale "+created.Number, entries)
			if err != nil {
				return err
			}
			created.TransactionGroupID = &g.ID
			if err := q.UpdateSale(ctx, created); err != nil {
				return err
			}
		}
		return s.record(ctx, q, "sale_create", "Sale completed",
			fmt.Sprintf("%s %s (%s)", created.Number, created.Total.StringFixed(2), created.PaymentMethod))
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return created, nil
}

func (s *Service) priceSaleLine(ctx context.Context, q store.Queries, in domain.SaleLineInput) (domain.SaleLine, domain.Product, error) {
	if in.Quantity <= 0 {
		return domain.SaleLine{}, domain.Product{}, invalidf("quantity must be positive")
	}
	// The cost captured here feeds COGS, so the row stays locked until commit.
	product, err := q.LockProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleLine{}, domain.Product{}, invalidf("product %d does not exist", in.ProductID)
		}
		return domain.SaleLine{}, domain.Product{}, err
	}
	if !product.Active {
		return domain.SaleLine{}, domain.Product{}, invalidf("product %s is inactive", product.Name)
	}
	unit, err := resolveUnit(ctx, q, product, in.PackageUnitID)
	if err != nil {
		return domain.SaleLine{}, domain.Product{}, err
	}

	price := product.SellPrice
	if unit != nil {
		price = unit.UnitPrice(product)
	}
	if in.UnitPrice != nil {
		if in.UnitPrice.IsNegative() {
			return domain.SaleLine{}, domain.Product{}, invalidf("unit_price cannot be negative")
		}
		price = *in.UnitPrice
	}
	price = price.Round(2)

	return domain.SaleLine{
		ProductID:     product.ID,
		ProductName:   product.Name,
		PackageUnitID: in.PackageUnitID,
		UnitName:      unitName(product, unit),
		Quantity:      in.Quantity,
		UnitPrice:     price,
		BaseQuantity:  in.Quantity * ratioOf(unit),
		LineTotal:     price.Mul(decimal.NewFromInt(in.Quantity)).Round(2),
		UnitCost:      product.AvgCost,
	}, product, nil
}

// VoidSale puts the goods back on the shelf and reverses the sale's group.
func (s *Service) VoidSale(ctx context.Context, id int64, reason string) (domain.Sale, error) {
	reason = strings.TrimSpace(reason)
	var voided domain.Sale
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		sale, err := q.LockSale(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != domain.SaleCompleted {
			return statef("sale %s is already %s", sale.Number, sale.Status)
		}

		refType, refID := reference("sale", sale.ID)
		for _, line := range sale.Lines {
			p, err := q.LockProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			avgCost := WeightedAverageCost(p.AvgCost, p.Quantity, line.UnitCost, line.BaseQuantity)
			if _, err := s.moveStock(ctx, q, p, domain.StockMovement{
				Delta:         line.BaseQuantity,
				Reason:        domain.MovementSaleVoid,
				ReferenceType: refType,
				ReferenceID:   refID,
				UnitCost:      line.UnitCost,
				Note:          normalizeNullable(&reason),
			}, avgCost, p.LastCost); err != nil {
				return err
			}
		}

		if sale.TransactionGroupID != nil {
			description := "Void of sale " + sale.Number
			if reason != "" {
				description += ": " + reason
			}
			g, err := s.reverse(ctx, q, *sale.TransactionGroupID, description, domain.SourceSaleVoid)
			if err != nil {
				return err
			}
			sale.VoidGroupID = &g.ID
		}
		now := s.now()
		sale.Status = domain.SaleVoided
		sale.VoidedAt = &now
		if err := q.UpdateSale(ctx, sale); err != nil {
			return err
		}
		voided = sale
		return s.record(ctx, q, "sale_void", "Sale voided", sale.Number)
	})
	return voided, err
}
