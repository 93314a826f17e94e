package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmapos/internal/accounting"
	"pharmapos/internal/domain"
	"pharmapos/internal/store"
	"pharmapos/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	chart, err := accounting.LoadChart("")
	require.NoError(t, err)

	st := memstore.New()
	st.Clock = func() time.Time { return testNow }
	svc := New(st, Options{
		Chart:           chart,
		LowStockDefault: 5,
		Clock:           func() time.Time { return testNow },
	})
	_, err = svc.SeedChart(context.Background())
	require.NoError(t, err)
	return svc, st
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func ptr[T any](v T) *T {
	return &v
}

func mustProduct(t *testing.T, svc *Service, name string, price string) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), ProductInput{Name: name, SellPrice: dec(price)})
	require.NoError(t, err)
	return p
}

func balanceOf(t *testing.T, svc *Service, st store.Store, code string) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	account, err := st.GetAccountByCode(ctx, code)
	require.NoError(t, err)
	b, err := svc.AccountBalance(ctx, account.ID, nil)
	require.NoError(t, err)
	return b.Balance
}

func assertBalanced(t *testing.T, svc *Service) {
	t.Helper()
	tb, err := svc.TrialBalance(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, tb.Balanced, "trial balance off by %s", tb.Difference)
}

func TestSeedChartIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	again, err := svc.SeedChart(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Zero(t, again.Updated)

	accounts, err := svc.ListAccounts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, accounts, len(svc.chart.Accounts))

	for _, a := range accounts {
		assert.Equal(t, svc.chart.IsRoleAccount(a.Code), a.System, a.Code)
	}
}

func TestActionsCarryActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := WithActor(context.Background(), "  maryam ")

	_, err := svc.CreateCategory(ctx, CategoryInput{Name: "Vitamins"})
	require.NoError(t, err)

	actions, err := svc.ListActions(context.Background(), 10, 0, "category")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NotNil(t, actions[0].Actor)
	assert.Equal(t, "maryam", *actions[0].Actor)
	assert.Equal(t, "category_create", actions[0].ActionType)

	count, err := svc.CountActions(context.Background(), "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}

func TestCategoryRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, CategoryInput{Name: " Analgesics "})
	require.NoError(t, err)
	assert.Equal(t, "Analgesics", cat.Name)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "analgesics"})
	require.ErrorIs(t, err, store.ErrConflict)

	desc, err := svc.CreateDescription(ctx, DescriptionInput{CategoryID: cat.ID, Text: "500 mg tablet"})
	require.NoError(t, err)

	err = svc.DeleteCategory(ctx, cat.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	updated, err := svc.UpdateCategory(ctx, cat.ID, CategoryPatch{Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	require.NoError(t, svc.DeleteDescription(ctx, desc.ID))
	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))
}

func TestProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	analgesics, err := svc.CreateCategory(ctx, CategoryInput{Name: "Analgesics"})
	require.NoError(t, err)
	vitamins, err := svc.CreateCategory(ctx, CategoryInput{Name: "Vitamins"})
	require.NoError(t, err)
	desc, err := svc.CreateDescription(ctx, DescriptionInput{CategoryID: vitamins.ID, Text: "Chewable"})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, ProductInput{
		Name:          "Paracetamol 500",
		CategoryID:    &analgesics.ID,
		DescriptionID: &desc.ID,
		SellPrice:     dec("1.20"),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "Paracetamol 500", SellPrice: dec("-1")})
	require.ErrorIs(t, err, ErrInvalidInput)

	p, err := svc.CreateProduct(ctx, ProductInput{
		Name:       "Paracetamol 500",
		Barcode:    ptr("6260000000011"),
		CategoryID: &analgesics.ID,
		SellPrice:  dec("1.2"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBaseUnit, p.BaseUnit)
	assert.True(t, p.Active)
	assert.Equal(t, "1.2", p.SellPrice.String())

	byBarcode, err := svc.GetProductByBarcode(ctx, "6260000000011")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byBarcode.ID)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "PARACETAMOL 500"})
	require.ErrorIs(t, err, store.ErrConflict)

	patched, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Barcode: ptr(""), CategoryID: ptr(int64(0))})
	require.NoError(t, err)
	assert.Nil(t, patched.Barcode)
	assert.Nil(t, patched.CategoryID)
}

func TestDeleteProductDeactivatesWhenStockMoved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	unused := mustProduct(t, svc, "Unused", "1")
	deactivated, err := svc.DeleteProduct(ctx, unused.ID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	_, err = svc.GetProduct(ctx, unused.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	moved := mustProduct(t, svc, "Moved", "1")
	_, err = svc.AdjustStock(ctx, AdjustmentInput{ProductID: moved.ID, Delta: 3})
	require.NoError(t, err)

	deactivated, err = svc.DeleteProduct(ctx, moved.ID)
	require.NoError(t, err)
	assert.True(t, deactivated)
	p, err := svc.GetProduct(ctx, moved.ID)
	require.NoError(t, err)
	assert.False(t, p.Active)

	movements, total, err := svc.ListStockMovements(ctx, moved.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementAdjustment, movements[0].Reason)
}

// abortingQueries fails every call after a failed DeleteProduct, the way a
// Postgres transaction does after a constraint violation.
type abortingQueries struct {
	store.Queries
	aborted *bool
}

func (q abortingQueries) DeleteProduct(ctx context.Context, id int64) error {
	err := q.Queries.DeleteProduct(ctx, id)
	if err != nil {
		*q.aborted = true
	}
	return err
}

func (q abortingQueries) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if *q.aborted {
		return domain.Product{}, errors.New("current transaction is aborted")
	}
	return q.Queries.UpdateProduct(ctx, p)
}

type abortingStore struct {
	store.Store
}

func (s abortingStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Store.WithTx(ctx, func(q store.Queries) error {
		aborted := false
		return fn(abortingQueries{Queries: q, aborted: &aborted})
	})
}

func TestDeleteProductOnDraftPurchaseOrderDeactivates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	svc.store = abortingStore{Store: st}

	p := mustProduct(t, svc, "Omeprazole 20", "2.50")
	_, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{
		SupplierName: "Wholesaler",
		Lines:        []domain.PurchaseLineInput{{ProductID: p.ID, Quantity: 5, UnitCost: dec("1")}},
	})
	require.NoError(t, err)

	deactivated, err := svc.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deactivated)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	_, total, err := svc.ListStockMovements(ctx, p.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPackageUnitRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustProduct(t, svc, "Amoxicillin 250", "0.50")

	_, err := svc.CreatePackageUnit(ctx, p.ID, PackageUnitInput{Name: "strip", Ratio: 1})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreatePackageUnit(ctx, p.ID, PackageUnitInput{Name: "Unit", Ratio: 10})
	require.ErrorIs(t, err, ErrInvalidInput)

	strip, err := svc.CreatePackageUnit(ctx, p.ID, PackageUnitInput{Name: "strip", Ratio: 10})
	require.NoError(t, err)
	_, err = svc.CreatePackageUnit(ctx, p.ID, PackageUnitInput{Name: "STRIP", Ratio: 12})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{BaseUnit: ptr("strip")})
	require.ErrorIs(t, err, ErrInvalidInput)

	updated, err := svc.UpdatePackageUnit(ctx, strip.ID, PackageUnitPatch{SellPrice: ptr(dec("4.5"))})
	require.NoError(t, err)
	require.NotNil(t, updated.SellPrice)
	assert.Equal(t, "4.5", updated.SellPrice.String())

	units, err := svc.ListPackageUnits(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, units, 1)

	require.NoError(t, svc.DeletePackageUnit(ctx, strip.ID))
}

func TestBarcodesAreUniqueAcrossProductsAndPackages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tablets, err := svc.CreateProduct(ctx, ProductInput{Name: "Aspirin 100", Barcode: ptr("626001"), SellPrice: dec("0.20")})
	require.NoError(t, err)
	syrup, err := svc.CreateProduct(ctx, ProductInput{Name: "Cough Syrup", SellPrice: dec("4")})
	require.NoError(t, err)

	_, err = svc.CreatePackageUnit(ctx, syrup.ID, PackageUnitInput{Name: "carton", Ratio: 12, Barcode: ptr("626001")})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = svc.CreatePackageUnit(ctx, tablets.ID, PackageUnitInput{Name: "strip", Ratio: 10, Barcode: ptr("626001")})
	require.ErrorIs(t, err, store.ErrConflict)

	box, err := svc.CreatePackageUnit(ctx, tablets.ID, PackageUnitInput{Name: "box", Ratio: 30, Barcode: ptr("626002")})
	require.NoError(t, err)
	_, err = svc.UpdatePackageUnit(ctx, box.ID, PackageUnitPatch{Barcode: ptr("626002"), Ratio: ptr(int64(28))})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "Aspirin 325", Barcode: ptr("626002"), SellPrice: dec("0.30")})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = svc.UpdateProduct(ctx, syrup.ID, ProductPatch{Barcode: ptr("626002")})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = svc.UpdateProduct(ctx, tablets.ID, ProductPatch{Barcode: ptr("626001"), Name: ptr("Aspirin 100mg")})
	require.NoError(t, err)

	found, err := svc.GetProductByBarcode(ctx, "626002")
	require.NoError(t, err)
	assert.Equal(t, tablets.ID, found.ID)
}
