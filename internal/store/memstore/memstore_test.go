package memstore

import (
	"context"
	"errors"
	"testing"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(q store.Queries) error {
		_, err := q.CreateProduct(ctx, domain.Product{Name: "Ibuprofen", Active: true})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	products, err := s.ListAllProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestWithTxCommitsAndNests(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.CreateProduct(ctx, domain.Product{Name: "Aspirin", Active: true}); err != nil {
			return err
		}
		nested, ok := q.(store.Store)
		require.True(t, ok)
		return nested.WithTx(ctx, func(inner store.Queries) error {
			_, err := inner.CreateProduct(ctx, domain.Product{Name: "Cetirizine", Active: true})
			return err
		})
	})
	require.NoError(t, err)

	products, err := s.ListAllProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestUniqueAndReferenceRules(t *testing.T) {
	ctx := context.Background()
	s := New()

	cat, err := s.CreateCategory(ctx, domain.Category{Name: "Analgesics", Active: true})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, domain.Category{Name: " analgesics ", Active: true})
	require.ErrorIs(t, err, store.ErrConflict)

	barcode := "123"
	p, err := s.CreateProduct(ctx, domain.Product{Name: "Paracetamol", Barcode: &barcode, CategoryID: &cat.ID, Active: true})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, domain.Product{Name: "Other", Barcode: &barcode, Active: true})
	require.ErrorIs(t, err, store.ErrConflict)

	require.ErrorIs(t, s.DeleteCategory(ctx, cat.ID), store.ErrConflict)

	require.NoError(t, s.InsertStockMovement(ctx, domain.StockMovement{ProductID: p.ID, Delta: 5, Reason: domain.MovementAdjustment}))
	require.ErrorIs(t, s.DeleteProduct(ctx, p.ID), store.ErrConflict)
	require.ErrorIs(t, s.DeleteProduct(ctx, 999), store.ErrNotFound)
}

func TestLowStockAndSummary(t *testing.T) {
	ctx := context.Background()
	s := New()
	level := int64(10)

	a, err := s.CreateProduct(ctx, domain.Product{Name: "A", Active: true})
	require.NoError(t, err)
	b, err := s.CreateProduct(ctx, domain.Product{Name: "B", ReorderLevel: &level, Active: true})
	require.NoError(t, err)
	require.NoError(t, s.UpdateProductStock(ctx, a.ID, 3, decimal.NewFromInt(2), decimal.NewFromInt(2)))
	require.NoError(t, s.UpdateProductStock(ctx, b.ID, 8, decimal.NewFromInt(5), decimal.NewFromInt(5)))

	rows, err := s.LowStock(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ProductID)
	assert.Equal(t, int64(2), rows[0].Needed)

	summary, err := s.InventorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalProducts)
	assert.Equal(t, int64(11), summary.TotalQuantity)
	assert.True(t, summary.InventoryValue.Equal(decimal.NewFromInt(46)))
}
