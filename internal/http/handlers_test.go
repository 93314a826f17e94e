package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharmapos/internal/accounting"
	"pharmapos/internal/domain"
	"pharmapos/internal/jobs"
	"pharmapos/internal/metrics"
	"pharmapos/internal/service"
	"pharmapos/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type testAPI struct {
	router http.Handler
	svc    *service.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	chart, err := accounting.LoadChart("")
	require.NoError(t, err)

	st := memstore.New()
	st.Clock = func() time.Time { return testNow }
	svc := service.New(st, service.Options{
		Chart:           chart,
		LowStockDefault: 5,
		Clock:           func() time.Time { return testNow },
	})
	_, err = svc.SeedChart(context.Background())
	require.NoError(t, err)

	registry := metrics.New()
	handler := NewHandler(svc, Options{
		StoreName:       "Test Pharmacy",
		LowStockDefault: 5,
		Integrity:       jobs.NewIntegrityJob(svc, nil, registry),
	})
	router := NewRouter(handler, RouterOptions{Metrics: registry})
	return &testAPI{router: router, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func dataOf[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	return env.Data
}

type apiError struct {
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env struct {
		Success bool     `json:"success"`
		Error   apiError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.False(t, env.Success)
	return env.Error
}

type list[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", dataOf[map[string]string](t, rec)["status"])

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pharmapos_http_requests_total")
}

func TestCategoryEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/categories", map[string]any{"name": "Analgesics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := dataOf[domain.Category](t, rec)
	assert.True(t, created.Active)

	rec = api.do(t, http.MethodPost, "/api/v1/categories", map[string]any{"name": "analgesics"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/categories", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := errorOf(t, rec)
	assert.Equal(t, "validation failed", apiErr.Message)
	assert.Equal(t, []string{"name is required"}, apiErr.Details)

	rec = api.do(t, http.MethodPost, "/api/v1/categories", map[string]any{"name": "X", "colour": "red"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec).Message, "colour")

	rec = api.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dataOf[list[domain.Category]](t, rec).Count)

	rec = api.do(t, http.MethodGet, "/api/v1/categories/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/v1/categories/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/categories/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func createProduct(t *testing.T, api *testAPI, name, price string) domain.Product {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": name, "sell_price": price})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return dataOf[domain.Product](t, rec)
}

func TestPurchaseSaleFlow(t *testing.T) {
	api := newTestAPI(t)
	p := createProduct(t, api, "Paracetamol 500", "3.00")

	rec := api.do(t, http.MethodPost, "/api/v1/purchase-orders", map[string]any{
		"supplier_name": "Wholesaler",
		"lines":         []map[string]any{{"product_id": p.ID, "quantity": 10, "unit_cost": "1.50"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	po := dataOf[domain.PurchaseOrder](t, rec)
	assert.Equal(t, domain.PurchaseOrderDraft, po.Status)

	rec = api.do(t, http.MethodPost, "/api/v1/purchase-orders/1/receive", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "draft orders cannot be received")

	for _, step := range []string{"order", "receive"} {
		rec = api.do(t, http.MethodPost, "/api/v1/purchase-orders/1/"+step, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, "/api/v1/purchase-orders/1/pay", map[string]any{"payment_method": "card"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/v1/purchase-orders/1/pay", map[string]any{"payment_method": "bank"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.PurchaseOrderPaid, dataOf[domain.PurchaseOrder](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/api/v1/purchase-orders/1/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = api.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_method": "cash",
		"lines":          []map[string]any{{"product_id": p.ID, "quantity": 4}},
	}, "X-Actor", "cashier-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := dataOf[domain.Sale](t, rec)
	assert.True(t, sale.Total.Equal(dec("12")))
	require.NotNil(t, sale.Actor)
	assert.Equal(t, "cashier-1", *sale.Actor)

	rec = api.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_method": "cash",
		"lines":          []map[string]any{{"product_id": p.ID, "quantity": 100}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/sales/1/void", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.SaleVoided, dataOf[domain.Sale](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/api/v1/products/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, dataOf[domain.Product](t, rec).Quantity)

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/trial-balance?as_of=2026-03-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tb := dataOf[domain.TrialBalance](t, rec)
	assert.True(t, tb.Balanced)
	assert.True(t, tb.TotalDebit.IsPositive())

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/trial-balance?as_of=2026-03-13", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, dataOf[domain.TrialBalance](t, rec).TotalDebit.IsZero())

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/trial-balance.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxMIME, rec.Header().Get("Content-Type"))
	_, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)

	rec = api.do(t, http.MethodGet, "/api/v1/actions?search=cashier-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, dataOf[list[domain.ActionEntry]](t, rec).Count)
}

func TestManualTransactionGroups(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/accounting/transaction-groups", map[string]any{
		"description": "Owner contribution",
		"entries": []map[string]any{
			{"account_code": "1000", "debit": "100"},
			{"account_code": "3000", "credit": "90"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/accounting/transaction-groups", map[string]any{
		"description": "Owner contribution",
		"entries": []map[string]any{
			{"account_code": "1000", "debit": "100"},
			{"account_code": "3000", "credit": "100"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := dataOf[domain.TransactionGroup](t, rec)

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/transaction-groups/"+group.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/v1/accounting/transaction-groups/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/accounting/transaction-groups/"+group.ID.String()+"/reverse",
		map[string]any{"description": "Entered twice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := dataOf[domain.TransactionGroup](t, rec)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, group.ID, *reversal.ReversalOf)

	rec = api.do(t, http.MethodPost, "/api/v1/accounting/transaction-groups/"+group.ID.String()+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/transaction-groups?source_type=manual", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dataOf[list[domain.TransactionGroup]](t, rec).Count)

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/income-statement?from=2026-03-14&to=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "pharmapos_ledger_trial_balance_ok 0")

	rec = api.do(t, http.MethodGet, "/api/v1/accounting/integrity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, dataOf[service.IntegrityReport](t, rec).Balanced)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "pharmapos_ledger_trial_balance_ok 1")
	assert.Contains(t, rec.Body.String(), "pharmapos_inventory_low_stock_products 0")
}

func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestInventoryImports(t *testing.T) {
	api := newTestAPI(t)

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]any{"Product Name", "Quantity", "Avg Cost", "Sell Price"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]any{"Amoxicillin 500", 12, "0.80", "1.50"}))
	require.NoError(t, book.SetSheetRow(sheet, "A3", &[]any{"Cetirizine 10", 3, "0.20", "0.60"}))
	var xlsx bytes.Buffer
	require.NoError(t, book.Write(&xlsx))

	body, contentType := multipartUpload(t, "stock.xlsx", xlsx.Bytes(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import-excel", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	imported := dataOf[map[string]any](t, rec)
	assert.EqualValues(t, 2, imported["created"])

	body, contentType = multipartUpload(t, "prices.csv", []byte("name,price\namoxicillin 500,1.75\nUnknown Drug,9\n"), nil)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import-prices", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	priced := dataOf[struct {
		Result domain.PriceImportResult `json:"result"`
	}](t, rec)
	assert.Equal(t, 1, priced.Result.UpdatedProducts)
	assert.Equal(t, []string{"Unknown Drug"}, priced.Result.UnmatchedNames)

	rec = api.do(t, http.MethodGet, "/api/v1/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := dataOf[list[domain.LowStockRow]](t, rec)
	require.Equal(t, 1, low.Count)
	assert.Equal(t, "Cetirizine 10", low.Items[0].Name)

	rec = api.do(t, http.MethodGet, "/api/v1/products?low_stock=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dataOf[list[domain.Product]](t, rec).Count)

	rec = api.do(t, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{"product_id": 2, "delta": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{"product_id": 2, "delta": -1, "reason_note": "broken"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adjusted := dataOf[service.AdjustmentResult](t, rec)
	assert.EqualValues(t, 2, adjusted.Product.Quantity)
	assert.NotNil(t, adjusted.TransactionGroupID)

	rec = api.do(t, http.MethodGet, "/api/v1/inventory/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventory.xlsx")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import-excel", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	api := newTestAPI(t)
	limiter := NewRateLimiter(1, 2, nil)
	router := NewRouter(NewHandler(api.svc, Options{}), RouterOptions{RateLimiter: limiter})

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	limiter.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, limiter.Cleanup(time.Minute))
}

func TestParseOptionalEnd(t *testing.T) {
	end, err := parseOptionalEnd("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 23, 59, 59, 999999999, time.UTC), *end)

	exact, err := parseOptionalEnd("2026-03-14T08:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC), *exact)

	none, err := parseOptionalEnd("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseOptionalEnd("14/03/2026")
	require.Error(t, err)
}
