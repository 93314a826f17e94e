package accounting

import (
	"pharmapos/internal/domain"

	"github.com/shopspring/decimal"
)

// The builders below return entries keyed by account code. The caller
// resolves codes to account ids before validation.

func debit(code string, amount decimal.Decimal) domain.AccountingEntry {
	return domain.AccountingEntry{AccountCode: code, Debit: amount, Credit: decimal.Zero}
}

func credit(code string, amount decimal.Decimal) domain.AccountingEntry {
	return domain.AccountingEntry{AccountCode: code, Debit: decimal.Zero, Credit: amount}
}

// PurchaseReceipt books received goods against the supplier.
func PurchaseReceipt(r Roles, total decimal.Decimal) []domain.AccountingEntry {
	return []domain.AccountingEntry{
		debit(r.Inventory, total),
		credit(r.Payable, total),
	}
}

// PurchasePayment settles a supplier balance from cash or bank.
func PurchasePayment(r Roles, method domain.PaymentMethod, total decimal.Decimal) []domain.AccountingEntry {
	return []domain.AccountingEntry{
		debit(r.Payable, total),
		credit(r.MoneyAccount(method), total),
	}
}

// Sale books the takings and moves the cost of the goods out of inventory.
// Zero amounts produce no entries, so a free sale of costless goods yields
// an empty slice.
func Sale(r Roles, method domain.PaymentMethod, revenue, cost decimal.Decimal) []domain.AccountingEntry {
	var entries []domain.AccountingEntry
	if revenue.IsPositive() {
		entries = append(entries, debit(r.MoneyAccount(method), revenue), credit(r.Revenue, revenue))
	}
	if cost.IsPositive() {
		entries = append(entries, debit(r.COGS, cost), credit(r.Inventory, cost))
	}
	return entries
}

// StockAdjustment books a counted loss (gain=false) or surplus against the
// shrinkage account.
func StockAdjustment(r Roles, value decimal.Decimal, gain bool) []domain.AccountingEntry {
	if gain {
		return []domain.AccountingEntry{
			debit(r.Inventory, value),
			credit(r.Shrinkage, value),
		}
	}
	return []domain.AccountingEntry{
		debit(r.Shrinkage, value),
		credit(r.Inventory, value),
	}
}

// MoneyAccount picks the account a payment method settles through. Card
// payments land in the bank.
func (r Roles) MoneyAccount(method domain.PaymentMethod) string {
	if method == domain.PaymentCash {
		return r.Cash
	}
	return r.Bank
}
