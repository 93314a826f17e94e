// Package accounting holds the double-entry rules: group validation, balance
// arithmetic, posting templates and the chart of accounts.
package accounting

import (
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const amountPlaces = 2

var (
	ErrInvalidGroup    = errors.New("invalid transaction group")
	ErrTooFewEntries   = errors.New("transaction group needs at least two entries")
	ErrInvalidAmount   = errors.New("invalid entry amount")
	ErrOneSided        = errors.New("transaction group needs debit and credit entries")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrInactiveAccount = errors.New("inactive account")
	ErrUnbalanced      = errors.New("debits and credits do not balance")
	ErrGroupMismatch   = errors.New("entry belongs to another transaction group")
)

var validationErrors = []error{
	ErrInvalidGroup,
	ErrTooFewEntries,
	ErrInvalidAmount,
	ErrOneSided,
	ErrUnknownAccount,
	ErrInactiveAccount,
	ErrUnbalanced,
	ErrGroupMismatch,
}

// IsValidationError reports whether err came from DoubleEntryValidator.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DefaultEpsilon is the largest debit/credit difference still treated as
// balanced.
var DefaultEpsilon = decimal.New(1, -2)

type DoubleEntryValidator struct {
	Epsilon decimal.Decimal
}

func NewDoubleEntryValidator() DoubleEntryValidator {
	return DoubleEntryValidator{Epsilon: DefaultEpsilon}
}

// Validate checks a group against the double-entry rules. accounts must
// contain every account referenced by the entries, keyed by id.
func (v DoubleEntryValidator) Validate(group domain.TransactionGroup, accounts map[int64]domain.Account) error {
	if strings.TrimSpace(group.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidGroup)
	}
	if group.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidGroup)
	}
	if len(group.Entries) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewEntries, len(group.Entries))
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	debitLines := 0
	creditLines := 0
	for i, entry := range group.Entries {
		line := i + 1
		if entry.GroupID != uuid.Nil && group.ID != uuid.Nil && entry.GroupID != group.ID {
			return fmt.Errorf("%w: entry %d", ErrGroupMismatch, line)
		}
		debit := entry.Debit.Round(amountPlaces)
		credit := entry.Credit.Round(amountPlaces)
		if debit.IsNegative() || credit.IsNegative() {
			return fmt.Errorf("%w: entry %d has a negative amount", ErrInvalidAmount, line)
		}
		if debit.IsPositive() == credit.IsPositive() {
			return fmt.Errorf("%w: entry %d must have exactly one of debit or credit", ErrInvalidAmount, line)
		}

		account, ok := accounts[entry.AccountID]
		if !ok {
			return fmt.Errorf("%w: entry %d references account %d", ErrUnknownAccount, line, entry.AccountID)
		}
		if !account.Active {
			return fmt.Errorf("%w: %s %s", ErrInactiveAccount, account.Code, account.Name)
		}

		if debit.IsPositive() {
			debitLines++
			totalDebit = totalDebit.Add(debit)
		} else {
			creditLines++
			totalCredit = totalCredit.Add(credit)
		}
	}

	if debitLines == 0 || creditLines == 0 {
		return ErrOneSided
	}
	if diff := totalDebit.Sub(totalCredit).Abs(); !diff.LessThan(v.epsilon()) {
		return fmt.Errorf("%w: debit %s, credit %s", ErrUnbalanced, totalDebit.StringFixed(amountPlaces), totalCredit.StringFixed(amountPlaces))
	}
	return nil
}

func (v DoubleEntryValidator) epsilon() decimal.Decimal {
	if v.Epsilon.IsPositive() {
		return v.Epsilon
	}
	return DefaultEpsilon
}

// Normalize rounds entry amounts, stamps the group id on every entry and sets
// the group total to the debit sum.
func Normalize(group domain.TransactionGroup) domain.TransactionGroup {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	total := decimal.Zero
	entries := make([]domain.AccountingEntry, len(group.Entries))
	for i, entry := range group.Entries {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.GroupID = group.ID
		entry.Debit = entry.Debit.Round(amountPlaces)
		entry.Credit = entry.Credit.Round(amountPlaces)
		entry.Date = group.Date
		total = total.Add(entry.Debit)
		entries[i] = entry
	}
	group.Entries = entries
	group.Total = total
	return group
}

// Reverse builds the counter group of g: same accounts, debit and credit
// swapped. The caller still has to persist it and mark g reversed.
func Reverse(g domain.TransactionGroup, description string) domain.TransactionGroup {
	if strings.TrimSpace(description) == "" {
		description = "Reversal: " + g.Description
	}
	reversalOf := g.ID
	out := domain.TransactionGroup{
		ID:          uuid.New(),
		Date:        g.Date,
		Description: description,
		SourceType:  domain.SourceReversal,
		SourceID:    g.SourceID,
		Status:      domain.GroupPosted,
		ReversalOf:  &reversalOf,
	}
	out.Entries = make([]domain.AccountingEntry, 0, len(g.Entries))
	for _, entry := range g.Entries {
		out.Entries = append(out.Entries, domain.AccountingEntry{
			AccountID:   entry.AccountID,
			AccountCode: entry.AccountCode,
			Debit:       entry.Credit,
			Credit:      entry.Debit,
			Memo:        entry.Memo,
		})
	}
	return out
}
