package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind discriminates the two ledger entry types in merged history views.
type EntryKind string

const (
	KindInvoice EntryKind = "invoice"
	KindPayment EntryKind = "payment"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount format")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountTooLarge    = errors.New("amount exceeds maximum")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyDescriptor   = errors.New("empty descriptor")
)

type (
	// Invoice is a debit entry: an amount owed, extracted from a pasted
	// invoice notice. Immutable after creation; deletion restores the
	// amount to the balance.
	Invoice struct {
		ID         int64
		UserID     int64
		Descriptor string
		Amount     decimal.Decimal
		RawText    string
		CreatedAt  time.Time
	}

	// Payment is a credit entry. InvoiceID is set when the payment was made
	// against a specific invoice; DescriptorSnapshot is copied from that
	// invoice at creation time so the label survives invoice deletion.
	Payment struct {
		ID                 int64
		UserID             int64
		Amount             decimal.Decimal
		DatePaid           time.Time
		CreatedAt          time.Time
		InvoiceID          *int64
		DescriptorSnapshot string
	}

	// BalanceSnapshot is the cached per-user aggregate. Invariant:
	// Current == sum(payments) - sum(invoices) over non-deleted rows.
	BalanceSnapshot struct {
		UserID      int64
		Current     decimal.Decimal
		LastUpdated time.Time
	}

	// HistoryEntry is the projection shape shared by both entry types.
	// Amount is signed: negative for invoices, positive for payments.
	HistoryEntry struct {
		Kind       EntryKind
		ID         int64
		Amount     decimal.Decimal
		CreatedAt  time.Time
		DatePaid   time.Time // zero for invoices
		Descriptor string
		InvoiceID  *int64
	}
)

// ForInvoice reports whether the payment targets a specific invoice rather
// than the general balance.
func (p Payment) ForInvoice() bool {
	return p.InvoiceID != nil
}

// Key identifies an entry across both tables, e.g. "invoice_12".
func (e HistoryEntry) Key() string {
	return fmt.Sprintf("%s_%d", e.Kind, e.ID)
}

func (inv Invoice) Validate() error {
	if inv.Descriptor == "" {
		return ErrEmptyDescriptor
	}
	if inv.Amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	return nil
}

func (p Payment) Validate() error {
	if p.Amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if p.DatePaid.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
