package service

import (
	"context"
	"fmt"
	"testing"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedAverageCost(t *testing.T) {
	cases := []struct {
		name       string
		oldAvg     string
		oldQty     int64
		cost       string
		qty        int64
		wantResult string
	}{
		{name: "blend", oldAvg: "2.5", oldQty: 30, cost: "4", qty: 10, wantResult: "2.875"},
		{name: "no previous average", oldAvg: "0", oldQty: 12, cost: "3", qty: 4, wantResult: "3"},
		{name: "negative stock counts as zero", oldAvg: "10", oldQty: -5, cost: "2", qty: 5, wantResult: "2"},
		{name: "nothing received", oldAvg: "1.5", oldQty: 3, cost: "9", qty: 0, wantResult: "1.5"},
		{name: "rounded to four places", oldAvg: "1", oldQty: 2, cost: "2", qty: 1, wantResult: "1.3333"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WeightedAverageCost(dec(tc.oldAvg), tc.oldQty, dec(tc.cost), tc.qty)
			assert.True(t, got.Equal(dec(tc.wantResult)), "got %s", got)
		})
	}
}

func TestPurchaseOrderLifecycle(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	roles := svc.roles

	p := mustProduct(t, svc, "Amoxicillin 500", "0.80")
	box, err := svc.CreatePackageUnit(ctx, p.ID, PackageUnitInput{Name: "box", Ratio: 10})
	require.NoError(t, err)

	po, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{
		SupplierName: "Darou Pakhsh",
		Lines: []domain.PurchaseLineInput{
			{ProductID: p.ID, PackageUnitID: &box.ID, Quantity: 3, UnitCost: dec("25")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "PO-20260314-1", po.Number)
	assert.Equal(t, domain.PurchaseOrderDraft, po.Status)
	assert.True(t, po.Total.Equal(dec("75")))
	require.Len(t, po.Lines, 1)
	assert.Equal(t, int64(30), po.Lines[0].BaseQuantity)
	assert.Equal(t, "box", po.Lines[0].UnitName)

	_, err = svc.ReceivePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	po, err = svc.OrderPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.NotNil(t, po.OrderedAt)

	_, err = svc.UpdatePurchaseOrder(ctx, po.ID, PurchaseOrderPatch{SupplierName: ptr("Other")})
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, svc.DeletePurchaseOrder(ctx, po.ID), ErrInvalidState)

	po, err = svc.ReceivePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderReceived, po.Status)
	require.NotNil(t, po.ReceiptGroupID)

	stocked, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stocked.Quantity)
	assert.True(t, stocked.AvgCost.Equal(dec("2.5")))
	assert.True(t, stocked.LastCost.Equal(dec("2.5")))

	assert.True(t, balanceOf(t, svc, st, roles.Inventory).Equal(dec("75")))
	assert.True(t, balanceOf(t, svc, st, roles.Payable).Equal(dec("75")))

	second, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{
		SupplierName: "Darou Pakhsh",
		Lines:        []domain.PurchaseLineInput{{ProductID: p.ID, Quantity: 10, UnitCost: dec("4")}},
	})
	require.NoError(t, err)
	_, err = svc.OrderPurchaseOrder(ctx, second.ID)
	require.NoError(t, err)
	_, err = svc.ReceivePurchaseOrder(ctx, second.ID)
	require.NoError(t, err)

	stocked, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stocked.Quantity)
	assert.True(t, stocked.AvgCost.Equal(dec("2.875")), "avg %s", stocked.AvgCost)
	assert.True(t, stocked.LastCost.Equal(dec("4")))

	_, err = svc.PayPurchaseOrder(ctx, po.ID, domain.PaymentCard)
	require.ErrorIs(t, err, ErrInvalidInput)
	paid, err := svc.PayPurchaseOrder(ctx, po.ID, domain.PaymentBank)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderPaid, paid.Status)
	require.NotNil(t, paid.PaymentGroupID)

	assert.True(t, balanceOf(t, svc, st, roles.Payable).Equal(dec("40")))
	assert.True(t, balanceOf(t, svc, st, roles.Bank).Equal(dec("-75")))
	assertBalanced(t, svc)

	_, err = svc.CancelPurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	movements, total, err := svc.ListStockMovements(ctx, p.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, domain.MovementPurchase, movements[0].Reason)
}

func TestPurchaseOrderDraftEditing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustProduct(t, svc, "Cetirizine 10", "0.30")

	_, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{
		SupplierName: "Supplier",
		Lines:        []domain.PurchaseLineInput{{ProductID: p.ID, Quantity: 0, UnitCost: dec("1")}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	po, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{SupplierName: "Supplier"})
	require.NoError(t, err)

	_, err = svc.OrderPurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidInput)

	po, err = svc.UpdatePurchaseOrder(ctx, po.ID, PurchaseOrderPatch{
		Lines: []domain.PurchaseLineInput{
			{ProductID: p.ID, Quantity: 100, UnitCost: dec("0.125")},
			{ProductID: p.ID, Quantity: 1, UnitCost: dec("0.10")},
		},
	})
	require.NoError(t, err)
	require.Len(t, po.Lines, 2)
	assert.True(t, po.Total.Equal(dec("12.6")), "total %s", po.Total)

	cancelled, err := svc.CancelPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderCancelled, cancelled.Status)

	draft, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{SupplierName: "Supplier"})
	require.NoError(t, err)
	require.NoError(t, svc.DeletePurchaseOrder(ctx, draft.ID))
	_, err = svc.GetPurchaseOrder(ctx, draft.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

// lockingStore records the document row locks taken inside transactions.
type lockingStore struct {
	store.Store
	locks *[]string
}

func (l lockingStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return l.Store.WithTx(ctx, func(q store.Queries) error {
		return fn(lockingQueries{Queries: q, locks: l.locks})
	})
}

type lockingQueries struct {
	store.Queries
	locks *[]string
}

func (q lockingQueries) LockPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	*q.locks = append(*q.locks, fmt.Sprintf("purchase_order:%d", id))
	return q.Queries.LockPurchaseOrder(ctx, id)
}

func (q lockingQueries) LockSale(ctx context.Context, id int64) (domain.Sale, error) {
	*q.locks = append(*q.locks, fmt.Sprintf("sale:%d", id))
	return q.Queries.LockSale(ctx, id)
}

func TestStatusChangesLockTheDocument(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	var locks []string
	svc.store = lockingStore{Store: st, locks: &locks}

	p := mustProduct(t, svc, "Metformin 500", "1.20")
	po, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{
		SupplierName: "Wholesaler",
		Lines:        []domain.PurchaseLineInput{{ProductID: p.ID, Quantity: 8, UnitCost: dec("0.50")}},
	})
	require.NoError(t, err)
	_, err = svc.OrderPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.ReceivePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.PayPurchaseOrder(ctx, po.ID, domain.PaymentCash)
	require.NoError(t, err)

	_, err = svc.ReceivePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	sale, err := svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentCash,
		Lines:         []domain.SaleLineInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	_, err = svc.VoidSale(ctx, sale.ID, "")
	require.NoError(t, err)

	poLock := fmt.Sprintf("purchase_order:%d", po.ID)
	assert.Equal(t, []string{poLock, poLock, poLock, poLock, fmt.Sprintf("sale:%d", sale.ID)}, locks)

	stocked, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stocked.Quantity)
}
