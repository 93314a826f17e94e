// Package store declares the persistence contract shared by the Postgres
// repository and the in-memory store used in tests.
package store

import (
	"context"
	"errors"
	"time"

	"pharmapos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type CategoryFilter struct {
	Search          string
	IncludeInactive bool
}

type ProductFilter struct {
	Search          string
	CategoryID      *int64
	LowStock        *int64
	IncludeInactive bool
	Limit           int
	Offset          int
}

type PurchaseOrderFilter struct {
	Status   string
	Supplier string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type SaleFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type TransactionGroupFilter struct {
	SourceType string
	AccountID  *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type EntryFilter struct {
	AccountID *int64
	From      *time.Time
	To        *time.Time
}

// AccountTotals is the raw debit and credit sum of one account.
type AccountTotals struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// LedgerEntry is an accounting entry joined with its group header.
type LedgerEntry struct {
	domain.AccountingEntry
	Description string
	SourceType  domain.SourceType
	CreatedAt   time.Time
}

type Queries interface {
	ListCategories(ctx context.Context, filter CategoryFilter) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error)
	UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CountCategoryReferences(ctx context.Context, id int64) (int, error)

	ListDescriptions(ctx context.Context, categoryID *int64) ([]domain.Description, error)
	GetDescription(ctx context.Context, id int64) (domain.Description, error)
	CreateDescription(ctx context.Context, d domain.Description) (domain.Description, error)
	UpdateDescription(ctx context.Context, d domain.Description) (domain.Description, error)
	DeleteDescription(ctx context.Context, id int64) error
	CountDescriptionReferences(ctx context.Context, id int64) (int, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	ListAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	LockProduct(ctx context.Context, id int64) (domain.Product, error)
	GetProductByName(ctx context.Context, name string) (domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	UpdateProductStock(ctx context.Context, id int64, quantity int64, avgCost, lastCost decimal.Decimal) error
	UpdateProductSellPrice(ctx context.Context, id int64, price decimal.Decimal) error
	InventorySummary(ctx context.Context) (domain.InventorySummary, error)
	LowStock(ctx context.Context, threshold int64) ([]domain.LowStockRow, error)

	InsertStockMovement(ctx context.Context, m domain.StockMovement) error
	ListStockMovements(ctx context.Context, productID int64, limit, offset int) ([]domain.StockMovement, error)
	CountStockMovements(ctx context.Context, productID int64) (int, error)
	CountProductReferences(ctx context.Context, productID int64) (int, error)

	ListPackageUnits(ctx context.Context, productID int64) ([]domain.PackageUnit, error)
	GetPackageUnit(ctx context.Context, id int64) (domain.PackageUnit, error)
	CreatePackageUnit(ctx context.Context, u domain.PackageUnit) (domain.PackageUnit, error)
	UpdatePackageUnit(ctx context.Context, u domain.PackageUnit) (domain.PackageUnit, error)
	DeletePackageUnit(ctx context.Context, id int64) error

	ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error)
	LockPurchaseOrder(ctx context.Context, id int64) (domain.PurchaseOrder, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error)
	DeletePurchaseOrder(ctx context.Context, id int64) error

	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, id int64) (domain.Sale, error)
	LockSale(ctx context.Context, id int64) (domain.Sale, error)
	CreateSale(ctx context.Context, s domain.Sale) (domain.Sale, error)
	UpdateSale(ctx context.Context, s domain.Sale) error

	ListAccounts(ctx context.Context, includeInactive bool) ([]domain.Account, error)
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	GetAccountByCode(ctx context.Context, code string) (domain.Account, error)
	CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error)
	UpdateAccount(ctx context.Context, a domain.Account) (domain.Account, error)
	AccountHasEntries(ctx context.Context, id int64) (bool, error)

	CreateTransactionGroup(ctx context.Context, g domain.TransactionGroup) (domain.TransactionGroup, error)
	GetTransactionGroup(ctx context.Context, id uuid.UUID) (domain.TransactionGroup, error)
	ListTransactionGroups(ctx context.Context, filter TransactionGroupFilter) ([]domain.TransactionGroup, error)
	MarkTransactionGroupReversed(ctx context.Context, id, reversedBy uuid.UUID) error
	SumEntriesByAccount(ctx context.Context, filter EntryFilter) ([]AccountTotals, error)
	ListLedgerEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error)

	LogAction(ctx context.Context, a domain.ActionEntry) error
	ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error)
	CountActions(ctx context.Context, search string) (int, error)
}

// Store runs Queries either directly or inside a database transaction.
// Nested WithTx calls join the outer transaction.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
