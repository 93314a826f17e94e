package http

import (
	"net/http"

	"pharmapos/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterOptions struct {
	Logger      *zap.Logger
	Metrics     *metrics.Registry
	RateLimiter *RateLimiter
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
	}
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}
		r.Use(Actor)

		r.Get("/categories", handler.ListCategories)
		r.Post("/categories", handler.CreateCategory)
		r.Get("/categories/{id}", handler.GetCategory)
		r.Patch("/categories/{id}", handler.PatchCategory)
		r.Delete("/categories/{id}", handler.DeleteCategory)

		r.Get("/descriptions", handler.ListDescriptions)
		r.Post("/descriptions", handler.CreateDescription)
		r.Get("/descriptions/{id}", handler.GetDescription)
		r.Patch("/descriptions/{id}", handler.PatchDescription)
		r.Delete("/descriptions/{id}", handler.DeleteDescription)

		r.Get("/products", handler.ListProducts)
		r.Post("/products", handler.CreateProduct)
		r.Get("/products/barcode/{code}", handler.GetProductByBarcode)
		r.Get("/products/{id}", handler.GetProduct)
		r.Patch("/products/{id}", handler.PatchProduct)
		r.Delete("/products/{id}", handler.DeleteProduct)
		r.Get("/products/{id}/movements", handler.ListStockMovements)
		r.Get("/products/{id}/package-units", handler.ListPackageUnits)
		r.Post("/products/{id}/package-units", handler.CreatePackageUnit)
		r.Patch("/package-units/{id}", handler.PatchPackageUnit)
		r.Delete("/package-units/{id}", handler.DeletePackageUnit)

		r.Get("/inventory/summary", handler.InventorySummary)
		r.Get("/inventory/low-stock", handler.LowStock)
		r.Post("/inventory/adjustments", handler.AdjustStock)
		r.Post("/inventory/import-excel", handler.ImportProductsExcel)
		r.Post("/inventory/import-prices", handler.ImportPrices)
		r.Get("/inventory/export.xlsx", handler.ExportInventory)

		r.Get("/purchase-orders", handler.ListPurchaseOrders)
		r.Post("/purchase-orders", handler.CreatePurchaseOrder)
		r.Get("/purchase-orders/{id}", handler.GetPurchaseOrder)
		r.Patch("/purchase-orders/{id}", handler.PatchPurchaseOrder)
		r.Delete("/purchase-orders/{id}", handler.DeletePurchaseOrder)
		r.Post("/purchase-orders/{id}/order", handler.OrderPurchaseOrder)
		r.Post("/purchase-orders/{id}/receive", handler.ReceivePurchaseOrder)
		r.Post("/purchase-orders/{id}/pay", handler.PayPurchaseOrder)
		r.Post("/purchase-orders/{id}/cancel", handler.CancelPurchaseOrder)
		r.Get("/purchase-orders/{id}/pdf", handler.PurchaseOrderPDF)

		r.Get("/sales", handler.ListSales)
		r.Post("/sales", handler.CreateSale)
		r.Get("/sales/{id}", handler.GetSale)
		r.Post("/sales/{id}/void", handler.VoidSale)

		r.Route("/accounting", func(r chi.Router) {
			r.Get("/accounts", handler.ListAccounts)
			r.Post("/accounts", handler.CreateAccount)
			r.Get("/accounts/{id}", handler.GetAccount)
			r.Patch("/accounts/{id}", handler.PatchAccount)
			r.Get("/accounts/{id}/balance", handler.AccountBalance)
			r.Get("/accounts/{id}/ledger", handler.AccountLedger)

			r.Get("/transaction-groups", handler.ListTransactionGroups)
			r.Post("/transaction-groups", handler.CreateTransactionGroup)
			r.Get("/transaction-groups/{id}", handler.GetTransactionGroup)
			r.Post("/transaction-groups/{id}/reverse", handler.ReverseTransactionGroup)

			r.Get("/trial-balance", handler.TrialBalance)
			r.Get("/trial-balance.xlsx", handler.ExportTrialBalance)
			r.Get("/income-statement", handler.IncomeStatement)
			r.Get("/integrity", handler.IntegrityCheck)
		})

		r.Get("/actions", handler.ListActions)
		r.Get("/actions/count", handler.CountActions)
	})

	return r
}
