package report

import (
	"bytes"
	"testing"
	"time"

	"pharmapos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseOrderPDF(t *testing.T) {
	ordered := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	notes := "Deliver before noon"
	po := domain.PurchaseOrder{
		ID:           1,
		Number:       "PO-20260314-1",
		SupplierName: "Darou Pakhsh",
		Status:       domain.PurchaseOrderOrdered,
		Notes:        &notes,
		Total:        decimal.RequireFromString("75"),
		OrderedAt:    &ordered,
		CreatedAt:    ordered,
		Lines: []domain.PurchaseOrderLine{{
			ProductID:    3,
			ProductName:  "Amoxicillin 500",
			UnitName:     "box",
			Quantity:     3,
			UnitCost:     decimal.RequireFromString("25"),
			BaseQuantity: 30,
			LineTotal:    decimal.RequireFromString("75"),
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, PurchaseOrderPDF(&buf, po, "Main Street Pharmacy"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}
