package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountAsset || t == AccountExpense
}

type Account struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	Active    bool        `json:"active"`
	System    bool        `json:"system"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type SourceType string

const (
	SourceManual          SourceType = "manual"
	SourcePurchaseReceipt SourceType = "purchase_receipt"
	SourcePurchasePayment SourceType = "purchase_payment"
	SourceSale            SourceType = "sale"
	SourceSaleVoid        SourceType = "sale_void"
	SourceAdjustment      SourceType = "adjustment"
	SourceReversal        SourceType = "reversal"
)

type GroupStatus string

const (
	GroupPosted   GroupStatus = "posted"
	GroupReversed GroupStatus = "reversed"
)

// TransactionGroup is one business transaction made of balanced entries.
type TransactionGroup struct {
	ID          uuid.UUID         `json:"id"`
	Date        time.Time         `json:"date"`
	Description string            `json:"description"`
	SourceType  SourceType        `json:"source_type"`
	SourceID    *int64            `json:"source_id,omitempty"`
	Status      GroupStatus       `json:"status"`
	ReversalOf  *uuid.UUID        `json:"reversal_of,omitempty"`
	ReversedBy  *uuid.UUID        `json:"reversed_by,omitempty"`
	Total       decimal.Decimal   `json:"total"`
	Actor       *string           `json:"actor,omitempty"`
	Entries     []AccountingEntry `json:"entries,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type AccountingEntry struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.UUID       `json:"group_id"`
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        *string         `json:"memo,omitempty"`
	Date        time.Time       `json:"date"`
}

type AccountBalance struct {
	Account Account         `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
	AsOf    *time.Time      `json:"as_of,omitempty"`
}

type LedgerLine struct {
	EntryID     uuid.UUID       `json:"entry_id"`
	GroupID     uuid.UUID       `json:"group_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Memo        *string         `json:"memo,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type TrialBalanceRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type TrialBalance struct {
	AsOf        *time.Time        `json:"as_of,omitempty"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	Difference  decimal.Decimal   `json:"difference"`
	Balanced    bool              `json:"balanced"`
}

type IncomeStatementLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type IncomeStatement struct {
	From         *time.Time            `json:"from,omitempty"`
	To           *time.Time            `json:"to,omitempty"`
	Revenue      []IncomeStatementLine `json:"revenue"`
	Expenses     []IncomeStatementLine `json:"expenses"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	TotalExpense decimal.Decimal       `json:"total_expense"`
	NetIncome    decimal.Decimal       `json:"net_income"`
}
