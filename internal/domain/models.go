package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultBaseUnit = "unit"

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Note      *string   `json:"note,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Description struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Product struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	Barcode              *string         `json:"barcode,omitempty"`
	CategoryID           *int64          `json:"category_id,omitempty"`
	DescriptionID        *int64          `json:"description_id,omitempty"`
	BaseUnit             string          `json:"base_unit"`
	SellPrice            decimal.Decimal `json:"sell_price"`
	AvgCost              decimal.Decimal `json:"avg_cost"`
	LastCost             decimal.Decimal `json:"last_cost"`
	Quantity             int64           `json:"quantity"`
	ReorderLevel         *int64          `json:"reorder_level,omitempty"`
	RequiresPrescription bool            `json:"requires_prescription"`
	Active               bool            `json:"active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// StockValue is the quantity on hand valued at average cost. Negative stock
// is valued at zero.
func (p Product) StockValue() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.AvgCost.Mul(decimal.NewFromInt(p.Quantity))
}

// PackageUnit is an alternate unit of measure for a product. Ratio is the
// number of base units contained in one package.
type PackageUnit struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	Name      string           `json:"name"`
	Ratio     int64            `json:"ratio"`
	Barcode   *string          `json:"barcode,omitempty"`
	SellPrice *decimal.Decimal `json:"sell_price,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ToBase converts a quantity expressed in this package into base units.
func (u PackageUnit) ToBase(qty int64) int64 {
	return qty * u.Ratio
}

// UnitPrice is the selling price of one package.
func (u PackageUnit) UnitPrice(product Product) decimal.Decimal {
	if u.SellPrice != nil {
		return *u.SellPrice
	}
	return product.SellPrice.Mul(decimal.NewFromInt(u.Ratio))
}

// BaseCost converts a per-package cost into a per-base-unit cost.
func (u PackageUnit) BaseCost(unitCost decimal.Decimal) decimal.Decimal {
	if u.Ratio <= 1 {
		return unitCost
	}
	return unitCost.Div(decimal.NewFromInt(u.Ratio))
}

type MovementReason string

const (
	MovementPurchase   MovementReason = "purchase"
	MovementSale       MovementReason = "sale"
	MovementSaleVoid   MovementReason = "sale_void"
	MovementAdjustment MovementReason = "adjustment"
	MovementImport     MovementReason = "import"
)

type StockMovement struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	Delta         int64           `json:"delta"`
	Reason        MovementReason  `json:"reason"`
	ReferenceType *string         `json:"reference_type,omitempty"`
	ReferenceID   *int64          `json:"reference_id,omitempty"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Note          *string         `json:"note,omitempty"`
	Actor         *string         `json:"actor,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type InventorySummary struct {
	TotalProducts  int             `json:"total_products"`
	TotalQuantity  int64           `json:"total_quantity"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

type LowStockRow struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	ReorderLevel int64           `json:"reorder_level"`
	Needed       int64           `json:"needed"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	SellPrice    decimal.Decimal `json:"sell_price"`
}

type ProductImportRow struct {
	Name         string           `json:"name"`
	Barcode      *string          `json:"barcode,omitempty"`
	Quantity     int64            `json:"quantity"`
	AvgCost      decimal.Decimal  `json:"avg_cost"`
	LastCost     decimal.Decimal  `json:"last_cost"`
	SellPrice    *decimal.Decimal `json:"sell_price,omitempty"`
	ReorderLevel *int64           `json:"reorder_level,omitempty"`
	BaseUnit     string           `json:"base_unit,omitempty"`
}

type ProductImportResult struct {
	TotalRows int `json:"total_rows"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
}

type PriceRow struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type PriceImportResult struct {
	TotalRows       int      `json:"total_rows"`
	ExactMatched    int      `json:"exact_matched"`
	FuzzyMatched    int      `json:"fuzzy_matched"`
	UpdatedProducts int      `json:"updated_products"`
	UnmatchedCount  int      `json:"unmatched_count"`
	UnmatchedNames  []string `json:"unmatched_names,omitempty"`
}

type PurchaseOrderStatus string

const (
	PurchaseOrderDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderReceived  PurchaseOrderStatus = "received"
	PurchaseOrderPaid      PurchaseOrderStatus = "paid"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

type PurchaseOrder struct {
	ID             int64               `json:"id"`
	Number         string              `json:"number"`
	SupplierName   string              `json:"supplier_name"`
	Status         PurchaseOrderStatus `json:"status"`
	Notes          *string             `json:"notes,omitempty"`
	Total          decimal.Decimal     `json:"total"`
	Lines          []PurchaseOrderLine `json:"lines,omitempty"`
	OrderedAt      *time.Time          `json:"ordered_at,omitempty"`
	ReceivedAt     *time.Time          `json:"received_at,omitempty"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
	ReceiptGroupID *uuid.UUID          `json:"receipt_group_id,omitempty"`
	PaymentGroupID *uuid.UUID          `json:"payment_group_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type PurchaseOrderLine struct {
	ID              int64           `json:"id"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name,omitempty"`
	PackageUnitID   *int64          `json:"package_unit_id,omitempty"`
	UnitName        string          `json:"unit_name"`
	Quantity        int64           `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	BaseQuantity    int64           `json:"base_quantity"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

type PurchaseLineInput struct {
	ProductID     int64           `json:"product_id"`
	PackageUnitID *int64          `json:"package_unit_id"`
	Quantity      int64           `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleVoided    SaleStatus = "voided"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentBank PaymentMethod = "bank"
)

type Sale struct {
	ID                 int64           `json:"id"`
	Number             string          `json:"number"`
	Status             SaleStatus      `json:"status"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	CustomerName       *string         `json:"customer_name,omitempty"`
	PrescriptionRef    *string         `json:"prescription_ref,omitempty"`
	Total              decimal.Decimal `json:"total"`
	CostTotal          decimal.Decimal `json:"cost_total"`
	Lines              []SaleLine      `json:"lines,omitempty"`
	TransactionGroupID *uuid.UUID      `json:"transaction_group_id,omitempty"`
	VoidGroupID        *uuid.UUID      `json:"void_group_id,omitempty"`
	Actor              *string         `json:"actor,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	VoidedAt           *time.Time      `json:"voided_at,omitempty"`
}

type SaleLine struct {
	ID            int64           `json:"id"`
	SaleID        int64           `json:"sale_id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	PackageUnitID *int64          `json:"package_unit_id,omitempty"`
	UnitName      string          `json:"unit_name"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	BaseQuantity  int64           `json:"base_quantity"`
	LineTotal     decimal.Decimal `json:"line_total"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

type SaleLineInput struct {
	ProductID     int64            `json:"product_id"`
	PackageUnitID *int64           `json:"package_unit_id"`
	Quantity      int64            `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
}

type ActionEntry struct {
	ActionID   int64     `json:"action_id"`
	CreatedAt  time.Time `json:"created_at"`
	Actor      *string   `json:"actor,omitempty"`
	ActionType string    `json:"action_type"`
	Title      string    `json:"title"`
	Details    string    `json:"details"`
}

// PurchaseOrderNumber formats the human-facing order number, e.g.
// PO-20260314-42.
func PurchaseOrderNumber(createdAt time.Time, id int64) string {
	return "PO-" + createdAt.Format("20060102") + "-" + strconv.FormatInt(id, 10)
}

// SaleNumber formats a receipt number, e.g. S-20260314-7.
func SaleNumber(createdAt time.Time, id int64) string {
	return "S-" + createdAt.Format("20060102") + "-" + strconv.FormatInt(id, 10)
}
