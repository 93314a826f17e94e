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
	"go.uber.org/zap"
)

// Costs are kept to four places, money amounts to two.
const costPlaces = 4

type PurchaseOrderInput struct {
	SupplierName string                     `json:"supplier_name" validate:"required,max=200"`
	Notes        *string                    `json:"notes" validate:"omitempty,max=2000"`
	Lines        []domain.PurchaseLineInput `json:"lines"`
}

// PurchaseOrderPatch edits a draft. Non-nil Lines replace every line.
type PurchaseOrderPatch struct {
	SupplierName *string                    `json:"supplier_name" validate:"omitempty,max=200"`
	Notes        *string                    `json:"notes" validate:"omitempty,max=2000"`
	Lines        []domain.PurchaseLineInput `json:"lines"`
}

type PaymentInput struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required,oneof=cash bank"`
}

func (s *Service) ListPurchaseOrders(ctx context.Context, filter store.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	return s.store.ListPurchaseOrders(ctx, filter)
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return s.store.GetPurchaseOrder(ctx, id)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, input PurchaseOrderInput) (domain.PurchaseOrder, error) {
	supplier := strings.TrimSpace(input.SupplierName)
	if supplier == "" {
		return domain.PurchaseOrder{}, invalidf("supplier_name is required")
	}
	var created domain.PurchaseOrder
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		lines, total, err := buildPurchaseLines(ctx, q, input.Lines)
		if err != nil {
			return err
		}
		created, err = q.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
			SupplierName: supplier,
			Status:       domain.PurchaseOrderDraft,
			Notes:        normalizeNullable(input.Notes),
			Total:        total,
			Lines:        lines,
		})
		if err != nil {
			return err
		}
		return s.record(ctx, q, "purchase_order_create", "Purchase order created",
			fmt.Sprintf("%s %s %s", created.Number, created.SupplierName, created.Total.StringFixed(2)))
	})
	return created, err
}

func (s *Service) UpdatePurchaseOrder(ctx context.Context, id int64, patch PurchaseOrderPatch) (domain.PurchaseOrder, error) {
	var updated domain.PurchaseOrder
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		po, err := q.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != domain.PurchaseOrderDraft {
			return statef("purchase order %s is %s; only drafts can be edited", po.Number, po.Status)
		}
		if patch.SupplierName != nil {
			po.SupplierName = strings.TrimSpace(*patch.SupplierName)
			if po.SupplierName == "" {
				return invalidf("supplier_name cannot be empty")
			}
		}
		if patch.Notes != nil {
			po.Notes = normalizeNullable(patch.Notes)
		}
		if patch.Lines != nil {
			lines, total, err := buildPurchaseLines(ctx, q, patch.Lines)
			if err != nil {
				return err
			}
			po.Lines = lines
			po.Total = total
		}
		updated, err = q.UpdatePurchaseOrder(ctx, po)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "purchase_order_update", "Purchase order updated", updated.Number)
	})
	return updated, err
}

func (s *Service) DeletePurchaseOrder(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(q store.Queries) error {
		po, err := q.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != domain.PurchaseOrderDraft {
			return statef("purchase order %s is %s; only drafts can be deleted", po.Number, po.Status)
		}
		if err := q.DeletePurchaseOrder(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, q, "purchase_order_delete", "Purchase order deleted", po.Number)
	})
}

func buildPurchaseLines(ctx context.Context, q store.Queries, inputs []domain.PurchaseLineInput) ([]domain.PurchaseOrderLine, decimal.Decimal, error) {
	lines := make([]domain.PurchaseOrderLine, 0, len(inputs))
	total := decimal.Zero
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, decimal.Zero, invalidf("line %d: quantity must be positive", i+1)
		}
		if in.UnitCost.IsNegative() {
			return nil, decimal.Zero, invalidf("line %d: unit_cost cannot be negative", i+1)
		}
		product, err := q.GetProduct(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, decimal.Zero, invalidf("line %d: product %d does not exist", i+1, in.ProductID)
			}
			return nil, decimal.Zero, err
		}
		unit, err := resolveUnit(ctx, q, product, in.PackageUnitID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		unitCost := in.UnitCost.Round(costPlaces)
		lineTotal := unitCost.Mul(decimal.NewFromInt(in.Quantity)).Round(2)
		lines = append(lines, domain.PurchaseOrderLine{
			ProductID:     product.ID,
			ProductName:   product.Name,
			PackageUnitID: in.PackageUnitID,
			UnitName:      unitName(product, unit),
			Quantity:      in.Quantity,
			UnitCost:      unitCost,
			BaseQuantity:  in.Quantity * ratioOf(unit),
			LineTotal:     lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, total, nil
}

// OrderPurchaseOrder sends a draft to the supplier. Its lines freeze.
func (s *Service) OrderPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return s.transitionPurchaseOrder(ctx, id, "purchase_order_order", "Purchase order sent",
		func(q store.Queries, po *domain.PurchaseOrder) error {
			if po.Status != domain.PurchaseOrderDraft {
				return statef("purchase order %s is %s; only drafts can be ordered", po.Number, po.Status)
			}
			if len(po.Lines) == 0 {
				return invalidf("purchase order %s has no lines", po.Number)
			}
			now := s.now()
			po.Status = domain.PurchaseOrderOrdered
			po.OrderedAt = &now
			return nil
		})
}

// ReceivePurchaseOrder puts the ordered goods into stock, updating each
// product's weighted average cost, and books them against the supplier.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return s.transitionPurchaseOrder(ctx, id, "purchase_order_receive", "Purchase order received",
		func(q store.Queries, po *domain.PurchaseOrder) error {
			if po.Status != domain.PurchaseOrderOrdered {
				return statef("purchase order %s is %s; only ordered purchases can be received", po.Number, po.Status)
			}
			refType, refID := reference("purchase_order", po.ID)
			for _, line := range po.Lines {
				p, err := q.LockProduct(ctx, line.ProductID)
				if err != nil {
					return err
				}
				ratio := int64(1)
				if line.BaseQuantity > 0 && line.Quantity > 0 {
					ratio = line.BaseQuantity / line.Quantity
				}
				baseCost := domain.PackageUnit{Ratio: ratio}.BaseCost(line.UnitCost).Round(costPlaces)
				avgCost := WeightedAverageCost(p.AvgCost, p.Quantity, baseCost, line.BaseQuantity)
				if _, err := s.moveStock(ctx, q, p, domain.StockMovement{
					Delta:         line.BaseQuantity,
					Reason:        domain.MovementPurchase,
					ReferenceType: refType,
					ReferenceID:   refID,
					UnitCost:      baseCost,
				}, avgCost, baseCost); err != nil {
					return err
				}
			}

			if po.Total.IsPositive() {
				g, err := s.postTemplate(ctx, q, domain.SourcePurchaseReceipt, po.ID,
					fmt.Sprintf("Purchase %s from %s", po.Number, po.SupplierName),
					accounting.PurchaseReceipt(s.roles, po.Total))
				if err != nil {
					return err
				}
				po.ReceiptGroupID = &g.ID
			}
			now := s.now()
			po.Status = domain.PurchaseOrderReceived
			po.ReceivedAt = &now
			return nil
		})
}

// WeightedAverageCost blends the current average with a receipt. Negative
// stock counts as zero and a missing average takes the receipt cost.
func WeightedAverageCost(oldAvg decimal.Decimal, oldQty int64, receiptCost decimal.Decimal, receiptQty int64) decimal.Decimal {
	if receiptQty <= 0 {
		return oldAvg
	}
	if oldQty < 0 {
		oldQty = 0
	}
	if !oldAvg.IsPositive() {
		oldAvg = receiptCost
	}
	oldValue := oldAvg.Mul(decimal.NewFromInt(oldQty))
	newValue := receiptCost.Mul(decimal.NewFromInt(receiptQty))
	return oldValue.Add(newValue).Div(decimal.NewFromInt(oldQty + receiptQty)).Round(costPlaces)
}

// PayPurchaseOrder settles a received order from cash or bank.
func (s *Service) PayPurchaseOrder(ctx context.Context, id int64, method domain.PaymentMethod) (domain.PurchaseOrder, error) {
	if method != domain.PaymentCash && method != domain.PaymentBank {
		return domain.PurchaseOrder{}, invalidf("payment_method must be cash or bank")
	}
	return s.transitionPurchaseOrder(ctx, id, "purchase_order_pay", "Purchase order paid",
		func(q store.Queries, po *domain.PurchaseOrder) error {
			if po.Status != domain.PurchaseOrderReceived {
				return statef("purchase order %s is %s; only received purchases can be paid", po.Number, po.Status)
			}
			if po.Total.IsPositive() {
				g, err := s.postTemplate(ctx, q, domain.SourcePurchasePayment, po.ID,
					fmt.Sprintf("Payment of %s to %s (%s)", po.Number, po.SupplierName, method),
					accounting.PurchasePayment(s.roles, method, po.Total))
				if err != nil {
					return err
				}
				po.PaymentGroupID = &g.ID
			}
			now := s.now()
			po.Status = domain.PurchaseOrderPaid
			po.PaidAt = &now
			return nil
		})
}

func (s *Service) CancelPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return s.transitionPurchaseOrder(ctx, id, "purchase_order_cancel", "Purchase order cancelled",
		func(q store.Queries, po *domain.PurchaseOrder) error {
			if po.Status != domain.PurchaseOrderDraft && po.Status != domain.PurchaseOrderOrdered {
				return statef("purchase order %s is %s and cannot be cancelled", po.Number, po.Status)
			}
			now := s.now()
			po.Status = domain.PurchaseOrderCancelled
			po.CancelledAt = &now
			return nil
		})
}

func (s *Service) transitionPurchaseOrder(ctx context.Context, id int64, actionType, title string, apply func(q store.Queries, po *domain.PurchaseOrder) error) (domain.PurchaseOrder, error) {
	var updated domain.PurchaseOrder
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		po, err := q.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		from := po.Status
		if err := apply(q, &po); err != nil {
			return err
		}
		updated, err = q.UpdatePurchaseOrder(ctx, po)
		if err != nil {
			return err
		}
		s.logger.Info("purchase order status changed",
			zap.String("number", updated.Number),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)))
		return s.record(ctx, q, actionType, title, updated.Number)
	})
	return updated, err
}
