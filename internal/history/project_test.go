package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avtoledger/internal/core"
)

func at(day int) time.Time {
	return time.Date(2025, 7, day, 12, 0, 0, 0, time.UTC)
}

func sampleEntries() []core.HistoryEntry {
	invoiceID := int64(1)
	invoices := []core.Invoice{
		{ID: 1, UserID: 1, Descriptor: "2018 TESLA MODEL S 5YJSA1E22JF272459",
			Amount: decimal.NewFromInt(740), CreatedAt: at(1)},
		{ID: 2, UserID: 1, Descriptor: "2020 BMW X5",
			Amount: decimal.NewFromInt(300), CreatedAt: at(3)},
	}
	payments := []core.Payment{
		{ID: 1, UserID: 1, Amount: decimal.NewFromInt(500),
			DatePaid: at(2), CreatedAt: at(2)},
		{ID: 2, UserID: 1, Amount: decimal.NewFromInt(240), DatePaid: at(4), CreatedAt: at(4),
			InvoiceID: &invoiceID, DescriptorSnapshot: "2018 TESLA MODEL S 5YJSA1E22JF272459"},
	}
	return Project(invoices, payments)
}

func TestProjectOrdersNewestFirst(t *testing.T) {
	entries := sampleEntries()
	require.Len(t, entries, 4)

	assert.Equal(t, core.KindPayment, entries[0].Kind)
	assert.Equal(t, int64(2), entries[0].ID)
	assert.Equal(t, core.KindInvoice, entries[3].Kind)
	assert.Equal(t, int64(1), entries[3].ID)

	// invoice amounts are signed negative, payments positive
	assert.True(t, entries[3].Amount.Equal(decimal.NewFromInt(-740)))
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(240)))
}

func TestReplayBalance(t *testing.T) {
	entries := sampleEntries()
	totals := ReplayBalance(entries)

	// ascending: -740, +500 => -240, -300 => -540, +240 => -300
	assert.True(t, totals["invoice_1"].Equal(decimal.NewFromInt(-740)))
	assert.True(t, totals["payment_1"].Equal(decimal.NewFromInt(-240)))
	assert.True(t, totals["invoice_2"].Equal(decimal.NewFromInt(-540)))
	assert.True(t, totals["payment_2"].Equal(decimal.NewFromInt(-300)))
}

func TestReplayMatchesEntrySum(t *testing.T) {
	entries := sampleEntries()
	totals := ReplayBalance(entries)

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	newest := entries[0]
	assert.True(t, totals[newest.Key()].Equal(sum),
		"running balance of newest entry must equal the full signed sum")
}

func TestPaginate(t *testing.T) {
	entries := make([]core.HistoryEntry, 7)
	for i := range entries {
		entries[i] = core.HistoryEntry{Kind: core.KindInvoice, ID: int64(i + 1)}
	}

	page, total, pages := Paginate(entries, 1, 5)
	assert.Len(t, page, 5)
	assert.Equal(t, 7, total)
	assert.Equal(t, 2, pages)

	page, total, pages = Paginate(entries, 2, 5)
	assert.Len(t, page, 2)
	assert.Equal(t, 7, total)
	assert.Equal(t, 2, pages)

	// out-of-range page: empty slice, counts still correct
	page, total, pages = Paginate(entries, 3, 5)
	assert.Empty(t, page)
	assert.Equal(t, 7, total)
	assert.Equal(t, 2, pages)

	page, total, pages = Paginate(nil, 1, 5)
	assert.Empty(t, page)
	assert.Zero(t, total)
	assert.Zero(t, pages)
}
