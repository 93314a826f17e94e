package service

import (
	"context"
	"testing"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stockUp receives qty base units of p at cost through a purchase order.
func stockUp(t *testing.T, svc *Service, p domain.Product, qty int64, cost string) {
	t.Helper()
	ctx := context.Background()
	po, err := svc.CreatePurchaseOrder(ctx, PurchaseOrderInput{
		SupplierName: "Wholesaler",
		Lines:        []domain.PurchaseLineInput{{ProductID: p.ID, Quantity: qty, UnitCost: dec(cost)}},
	})
	require.NoError(t, err)
	_, err = svc.OrderPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.ReceivePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
}

func TestSaleAndVoid(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	roles := svc.roles

	p := mustProduct(t, svc, "Ibuprofen 400", "2.00")
	stockUp(t, svc, p, 20, "1.00")

	sale, err := svc.CreateSale(WithActor(ctx, "cashier-1"), SaleInput{
		PaymentMethod: domain.PaymentCash,
		Lines:         []domain.SaleLineInput{{ProductID: p.ID, Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "S-20260314-1", sale.Number)
	assert.Equal(t, domain.SaleCompleted, sale.Status)
	assert.True(t, sale.Total.Equal(dec("10")))
	assert.True(t, sale.CostTotal.Equal(dec("5")))
	require.NotNil(t, sale.TransactionGroupID)
	require.NotNil(t, sale.Actor)
	assert.Equal(t, "cashier-1", *sale.Actor)

	after, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), after.Quantity)

	assert.True(t, balanceOf(t, svc, st, roles.Cash).Equal(dec("10")))
	assert.True(t, balanceOf(t, svc, st, roles.Revenue).Equal(dec("10")))
	assert.True(t, balanceOf(t, svc, st, roles.COGS).Equal(dec("5")))
	assert.True(t, balanceOf(t, svc, st, roles.Inventory).Equal(dec("15")))
	assertBalanced(t, svc)

	stmt, err := svc.IncomeStatement(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, stmt.NetIncome.Equal(dec("5")))

	voided, err := svc.VoidSale(ctx, sale.ID, "wrong item")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleVoided, voided.Status)
	require.NotNil(t, voided.VoidGroupID)
	require.NotNil(t, voided.VoidedAt)

	original, err := svc.GetTransactionGroup(ctx, *sale.TransactionGroupID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupReversed, original.Status)
	require.NotNil(t, original.ReversedBy)
	assert.Equal(t, *voided.VoidGroupID, *original.ReversedBy)

	counter, err := svc.GetTransactionGroup(ctx, *voided.VoidGroupID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSaleVoid, counter.SourceType)

	restored, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), restored.Quantity)
	assert.True(t, restored.AvgCost.Equal(dec("1")))

	assert.True(t, balanceOf(t, svc, st, roles.Cash).IsZero())
	assert.True(t, balanceOf(t, svc, st, roles.Revenue).IsZero())
	assert.True(t, balanceOf(t, svc, st, roles.Inventory).Equal(dec("20")))
	assertBalanced(t, svc)

	_, err = svc.VoidSale(ctx, sale.ID, "")
	require.ErrorIs(t, err, ErrInvalidState)

	movements, _, err := svc.ListStockMovements(ctx, p.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, domain.MovementSaleVoid, movements[0].Reason)
	assert.Equal(t, domain.MovementSale, movements[1].Reason)
	assert.Equal(t, int64(-5), movements[1].Delta)
}

func TestSaleRejectsShortStockAtomically(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := mustProduct(t, svc, "Loratadine", "1.50")
	b := mustProduct(t, svc, "Omeprazole", "3.00")
	stockUp(t, svc, a, 10, "0.50")
	stockUp(t, svc, b, 2, "1.00")

	_, err := svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentCard,
		Lines: []domain.SaleLineInput{
			{ProductID: a.ID, Quantity: 4},
			{ProductID: b.ID, Quantity: 3},
		},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	stillA, err := svc.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stillA.Quantity)

	sales, err := svc.ListSales(ctx, store.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)

	groups, err := svc.ListTransactionGroups(ctx, store.TransactionGroupFilter{SourceType: string(domain.SourceSale)})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestSaleAllowsNegativeStockWhenConfigured(t *testing.T) {
	svc, _ := newTestService(t)
	svc.allowNegative = true
	ctx := context.Background()

	p := mustProduct(t, svc, "Saline", "1.00")
	sale, err := svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentCash,
		Lines:         []domain.SaleLineInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, sale.CostTotal.IsZero())

	after, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), after.Quantity)
	assertBalanced(t, svc)
}

func TestSaleRules(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	rx, err := svc.CreateProduct(ctx, ProductInput{Name: "Azithromycin", SellPrice: dec("5"), RequiresPrescription: true})
	require.NoError(t, err)
	stockUp(t, svc, rx, 30, "2")
	strip, err := svc.CreatePackageUnit(ctx, rx.ID, PackageUnitInput{Name: "strip", Ratio: 3})
	require.NoError(t, err)

	_, err = svc.CreateSale(ctx, SaleInput{PaymentMethod: domain.PaymentCash})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentCash,
		Lines:         []domain.SaleLineInput{{ProductID: rx.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentBank,
		Lines:         []domain.SaleLineInput{{ProductID: rx.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	sale, err := svc.CreateSale(ctx, SaleInput{
		PaymentMethod:   domain.PaymentCard,
		PrescriptionRef: ptr("RX-1001"),
		Lines: []domain.SaleLineInput{
			{ProductID: rx.ID, PackageUnitID: &strip.ID, Quantity: 2},
			{ProductID: rx.ID, Quantity: 1, UnitPrice: ptr(dec("4.50"))},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 2)
	assert.Equal(t, int64(6), sale.Lines[0].BaseQuantity)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(dec("15")))
	assert.True(t, sale.Lines[0].LineTotal.Equal(dec("30")))
	assert.True(t, sale.Total.Equal(dec("34.5")))
	assert.True(t, sale.CostTotal.Equal(dec("14")))
	assert.True(t, balanceOf(t, svc, st, svc.roles.Bank).Equal(dec("34.5")))

	_, err = svc.UpdateProduct(ctx, rx.ID, ProductPatch{Active: ptr(false)})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, SaleInput{
		PaymentMethod:   domain.PaymentCash,
		PrescriptionRef: ptr("RX-1002"),
		Lines:           []domain.SaleLineInput{{ProductID: rx.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDocumentGroupsReverseOnlyThroughTheirDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := mustProduct(t, svc, "Loratadine 10", "3.00")
	stockUp(t, svc, p, 10, "1.50")

	sale, err := svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentCash,
		Lines:         []domain.SaleLineInput{{ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.NotNil(t, sale.TransactionGroupID)

	_, err = svc.ReverseGroup(ctx, *sale.TransactionGroupID, "")
	require.ErrorIs(t, err, ErrInvalidState)

	group, err := svc.GetTransactionGroup(ctx, *sale.TransactionGroupID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupPosted, group.Status)

	voided, err := svc.VoidSale(ctx, sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleVoided, voided.Status)
	restored, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), restored.Quantity)

	receipts, err := svc.ListTransactionGroups(ctx, store.TransactionGroupFilter{SourceType: string(domain.SourcePurchaseReceipt)})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	_, err = svc.ReverseGroup(ctx, receipts[0].ID, "")
	require.ErrorIs(t, err, ErrInvalidState)
	assertBalanced(t, svc)
}

// productAccess records how products are read inside transactions.
type productAccess struct {
	store.Queries
	reads *[]string
}

func (q productAccess) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	*q.reads = append(*q.reads, "get")
	return q.Queries.GetProduct(ctx, id)
}

func (q productAccess) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	*q.reads = append(*q.reads, "lock")
	return q.Queries.LockProduct(ctx, id)
}

type productAccessStore struct {
	store.Store
	reads *[]string
}

func (s productAccessStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Store.WithTx(ctx, func(q store.Queries) error {
		return fn(productAccess{Queries: q, reads: s.reads})
	})
}

func TestSalePricesFromLockedProduct(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	p := mustProduct(t, svc, "Diclofenac 50", "1.50")
	stockUp(t, svc, p, 10, "0.60")

	var reads []string
	svc.store = productAccessStore{Store: st, reads: &reads}
	sale, err := svc.CreateSale(ctx, SaleInput{
		PaymentMethod: domain.PaymentCard,
		Lines:         []domain.SaleLineInput{{ProductID: p.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, sale.CostTotal.Equal(dec("1.8")), "cost %s", sale.CostTotal)
	require.NotEmpty(t, reads)
	assert.NotContains(t, reads, "get")
}
