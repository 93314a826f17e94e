package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/accounting"
	"pharmapos/internal/domain"
	"pharmapos/internal/store"
	"pharmapos/internal/textnorm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultPriceMatchThreshold is the minimum similarity percentage for a
// fuzzy price-list match.
const DefaultPriceMatchThreshold = 92

const maxUnmatchedNames = 200

type AdjustmentInput struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	Delta      int64  `json:"delta" validate:"required"`
	ReasonNote string `json:"reason_note" validate:"omitempty,max=500"`
}

type AdjustmentResult struct {
	Product            domain.Product `json:"product"`
	TransactionGroupID *uuid.UUID     `json:"transaction_group_id,omitempty"`
}

// moveStock applies m.Delta to p with the given costs and writes the
// movement in q's transaction. p must have been read with LockProduct.
func (s *Service) moveStock(ctx context.Context, q store.Queries, p domain.Product, m domain.StockMovement, avgCost, lastCost decimal.Decimal) (domain.Product, error) {
	next := p.Quantity + m.Delta
	if m.Delta < 0 && next < 0 && !s.allowNegative {
		return p, fmt.Errorf("%w: %s has %d %s, %d requested",
			ErrInsufficientStock, p.Name, p.Quantity, p.BaseUnit, -m.Delta)
	}
	if err := q.UpdateProductStock(ctx, p.ID, next, avgCost, lastCost); err != nil {
		return p, fmt.Errorf("update stock of product %d: %w", p.ID, err)
	}
	m.ProductID = p.ID
	m.Actor = actorFrom(ctx)
	if err := q.InsertStockMovement(ctx, m); err != nil {
		return p, fmt.Errorf("insert stock movement: %w", err)
	}
	s.recorder.StockMoved(m.Reason, m.Delta)

	p.Quantity = next
	p.AvgCost = avgCost
	p.LastCost = lastCost
	return p, nil
}

func reference(kind string, id int64) (*string, *int64) {
	return &kind, &id
}

// AdjustStock books a counted difference. A loss or gain with a cost value
// also posts against the shrinkage account.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (AdjustmentResult, error) {
	if input.Delta == 0 {
		return AdjustmentResult{}, invalidf("delta must not be zero")
	}
	note := strings.TrimSpace(input.ReasonNote)

	var result AdjustmentResult
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.LockProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		refType, refID := reference("product", p.ID)
		m := domain.StockMovement{
			Delta:         input.Delta,
			Reason:        domain.MovementAdjustment,
			ReferenceType: refType,
			ReferenceID:   refID,
			UnitCost:      p.AvgCost,
			Note:          normalizeNullable(&note),
		}
		p, err = s.moveStock(ctx, q, p, m, p.AvgCost, p.LastCost)
		if err != nil {
			return err
		}
		result.Product = p

		magnitude := input.Delta
		if magnitude < 0 {
			magnitude = -magnitude
		}
		value := p.AvgCost.Mul(decimal.NewFromInt(magnitude)).Round(2)
		if value.IsPositive() {
			description := "Stock adjustment: " + p.Name
			if note != "" {
				description += " (" + note + ")"
			}
			g, err := s.postTemplate(ctx, q, domain.SourceAdjustment, p.ID, description,
				accounting.StockAdjustment(s.roles, value, input.Delta > 0))
			if err != nil {
				return err
			}
			result.TransactionGroupID = &g.ID
		}
		return s.record(ctx, q, "stock_adjust", "Stock adjusted",
			fmt.Sprintf("%s: %+d %s", p.Name, input.Delta, p.BaseUnit))
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	return result, nil
}

func (s *Service) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	return s.store.InventorySummary(ctx)
}

// LowStock lists products at or below their reorder level, or threshold when
// they have none. A nil threshold uses the configured default.
func (s *Service) LowStock(ctx context.Context, threshold *int64) ([]domain.LowStockRow, error) {
	level := s.lowStockDefault
	if threshold != nil {
		if *threshold < 0 {
			return nil, invalidf("threshold cannot be negative")
		}
		level = *threshold
	}
	return s.store.LowStock(ctx, level)
}

func (s *Service) InventoryProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListAllProducts(ctx)
}

// ImportProducts upserts products by name. Quantity differences are written
// as import movements; missing costs keep the product's current ones.
func (s *Service) ImportProducts(ctx context.Context, rows []domain.ProductImportRow) (domain.ProductImportResult, error) {
	result := domain.ProductImportResult{TotalRows: len(rows)}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		for i, row := range rows {
			name := strings.TrimSpace(row.Name)
			if name == "" {
				return invalidf("row %d: name is required", i+1)
			}
			if row.Quantity < 0 {
				return invalidf("row %d: quantity cannot be negative", i+1)
			}

			p, err := q.GetProductByName(ctx, name)
			switch {
			case errors.Is(err, store.ErrNotFound):
				fresh := importedProduct(name, row)
				if err := checkBarcodeFree(ctx, q, fresh.Barcode, 0, nil); err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				p, err = q.CreateProduct(ctx, fresh)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				result.Created++
			case err != nil:
				return err
			default:
				if row.SellPrice != nil {
					p.SellPrice = row.SellPrice.Round(2)
				}
				if row.ReorderLevel != nil {
					level := *row.ReorderLevel
					p.ReorderLevel = &level
				}
				if row.Barcode != nil {
					p.Barcode = normalizeNullable(row.Barcode)
					if err := checkBarcodeFree(ctx, q, p.Barcode, p.ID, nil); err != nil {
						return fmt.Errorf("row %d: %w", i+1, err)
					}
				}
				if p, err = q.UpdateProduct(ctx, p); err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				result.Updated++
			}

			if p, err = q.LockProduct(ctx, p.ID); err != nil {
				return err
			}
			avgCost := p.AvgCost
			if row.AvgCost.IsPositive() {
				avgCost = row.AvgCost
			}
			lastCost := p.LastCost
			if row.LastCost.IsPositive() {
				lastCost = row.LastCost
			} else if !lastCost.IsPositive() {
				lastCost = avgCost
			}

			delta := row.Quantity - p.Quantity
			if delta == 0 {
				if !avgCost.Equal(p.AvgCost) || !lastCost.Equal(p.LastCost) {
					if err := q.UpdateProductStock(ctx, p.ID, p.Quantity, avgCost, lastCost); err != nil {
						return err
					}
				}
				continue
			}
			refType, refID := reference("import", int64(i+1))
			if _, err := s.moveStock(ctx, q, p, domain.StockMovement{
				Delta:         delta,
				Reason:        domain.MovementImport,
				ReferenceType: refType,
				ReferenceID:   refID,
				UnitCost:      avgCost,
			}, avgCost, lastCost); err != nil {
				return err
			}
		}
		return s.record(ctx, q, "inventory_import", "Products imported",
			fmt.Sprintf("rows=%d created=%d updated=%d", result.TotalRows, result.Created, result.Updated))
	})
	if err != nil {
		return domain.ProductImportResult{}, err
	}
	s.logger.Info("products imported",
		zap.Int("rows", result.TotalRows),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))
	return result, nil
}

func importedProduct(name string, row domain.ProductImportRow) domain.Product {
	p := domain.Product{
		Name:         name,
		Barcode:      normalizeNullable(row.Barcode),
		BaseUnit:     strings.TrimSpace(row.BaseUnit),
		SellPrice:    decimal.Zero,
		AvgCost:      decimal.Zero,
		LastCost:     decimal.Zero,
		ReorderLevel: row.ReorderLevel,
		Active:       true,
	}
	if p.BaseUnit == "" {
		p.BaseUnit = domain.DefaultBaseUnit
	}
	if row.SellPrice != nil {
		p.SellPrice = row.SellPrice.Round(2)
	}
	return p
}

// ImportPrices updates sell prices from a name/price list. Names are matched
// exactly after normalization first, then by similarity of at least
// threshold percent.
func (s *Service) ImportPrices(ctx context.Context, rows []domain.PriceRow, threshold float64) (domain.PriceImportResult, error) {
	if threshold <= 0 {
		threshold = DefaultPriceMatchThreshold
	}
	if threshold > 100 {
		return domain.PriceImportResult{}, invalidf("threshold must be at most 100")
	}
	result := domain.PriceImportResult{TotalRows: len(rows)}

	err := s.store.WithTx(ctx, func(q store.Queries) error {
		products, err := q.ListAllProducts(ctx)
		if err != nil {
			return err
		}
		matcher := textnorm.NewMatcher(threshold)
		for _, p := range products {
			matcher.Add(p.ID, p.Name)
		}

		prices := make(map[int64]decimal.Decimal)
		for _, row := range rows {
			if row.Price.IsNegative() {
				return invalidf("price for %q cannot be negative", row.Name)
			}
			id, exact, ok := matcher.Match(row.Name)
			if !ok {
				result.UnmatchedCount++
				if len(result.UnmatchedNames) < maxUnmatchedNames {
					result.UnmatchedNames = append(result.UnmatchedNames, row.Name)
				}
				continue
			}
			if exact {
				result.ExactMatched++
			} else {
				result.FuzzyMatched++
			}
			prices[id] = row.Price.Round(2)
		}

		for _, p := range products {
			price, ok := prices[p.ID]
			if !ok || price.Equal(p.SellPrice) {
				continue
			}
			if err := q.UpdateProductSellPrice(ctx, p.ID, price); err != nil {
				return fmt.Errorf("update price of %s: %w", p.Name, err)
			}
			result.UpdatedProducts++
		}
		return s.record(ctx, q, "price_import", "Prices imported",
			fmt.Sprintf("rows=%d updated=%d unmatched=%d", result.TotalRows, result.UpdatedProducts, result.UnmatchedCount))
	})
	if err != nil {
		return domain.PriceImportResult{}, err
	}
	s.logger.Info("prices imported",
		zap.Int("rows", result.TotalRows),
		zap.Int("exact", result.ExactMatched),
		zap.Int("fuzzy", result.FuzzyMatched),
		zap.Int("unmatched", result.UnmatchedCount))
	return result, nil
}
