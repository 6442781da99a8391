// Package history merges invoices and payments into a single chronological
// projection, paginates it, replays running balances from source rows and
// renders the display/export strings the dialog layer consumes.
package history

import (
	"sort"

	"github.com/shopspring/decimal"

	"avtoledger/internal/core"
)

// Project merges both entry sets into the common history shape. Invoice
// amounts are tagged negative, payment amounts stay positive. The result is
// ordered most recent first for display.
func Project(invoices []core.Invoice, payments []core.Payment) []core.HistoryEntry {
	entries := make([]core.HistoryEntry, 0, len(invoices)+len(payments))

	for _, inv := range invoices {
		entries = append(entries, core.HistoryEntry{
			Kind:       core.KindInvoice,
			ID:         inv.ID,
			Amount:     inv.Amount.Neg(),
			CreatedAt:  inv.CreatedAt,
			Descriptor: inv.Descriptor,
		})
	}
	for _, p := range payments {
		entries = append(entries, core.HistoryEntry{
			Kind:       core.KindPayment,
			ID:         p.ID,
			Amount:     p.Amount,
			CreatedAt:  p.CreatedAt,
			DatePaid:   p.DatePaid,
			Descriptor: p.DescriptorSnapshot,
			InvoiceID:  p.InvoiceID,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries
}

// Chronological returns a copy ordered oldest first, the order used for
// export and balance replay.
func Chronological(entries []core.HistoryEntry) []core.HistoryEntry {
	out := make([]core.HistoryEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ReplayBalance walks the entries oldest first, accumulating signed amounts,
// and records the running total after each entry keyed by Entry.Key(). It is
// computed from raw rows, independently of the cached balance, so the final
// value doubles as a consistency cross-check.
func ReplayBalance(entries []core.HistoryEntry) map[string]decimal.Decimal {
	running := decimal.Zero
	totals := make(map[string]decimal.Decimal, len(entries))
	for _, e := range Chronological(entries) {
		running = running.Add(e.Amount)
		totals[e.Key()] = running
	}
	return totals
}

// Paginate slices the entries into 1-indexed pages. An out-of-range page
// yields an empty slice while total count and page count stay correct.
func Paginate(entries []core.HistoryEntry, page, perPage int) ([]core.HistoryEntry, int, int) {
	total := len(entries)
	if total == 0 || perPage < 1 {
		return nil, total, 0
	}
	totalPages := (total + perPage - 1) / perPage

	start := (page - 1) * perPage
	if page < 1 || start >= total {
		return nil, total, totalPages
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return entries[start:end], total, totalPages
}
