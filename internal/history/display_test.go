package history

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"avtoledger/internal/core"
)

func TestEntrySummaryInvoice(t *testing.T) {
	entries := sampleEntries()
	invoice := entries[3] // invoice #1, the oldest

	summary := EntrySummary(invoice)
	assert.Contains(t, summary, "🔴 РАХУНОК #1 -740.00€")
	assert.Contains(t, summary, "🚗 2018 TESLA MODEL S | VIN: 5YJSA1E22JF272459")
	assert.Contains(t, summary, "📅 01.07.2025")
}

func TestEntrySummaryPaymentForInvoice(t *testing.T) {
	entries := sampleEntries()
	payment := entries[0] // payment #2, tied to invoice 1

	summary := EntrySummary(payment)
	assert.Contains(t, summary, "🟢 ПЛАТІЖ #2 +240.00€")
	assert.Contains(t, summary, "🎯 За рахунок: 2018 TESLA MODEL S | VIN: 5YJSA1E22JF272459")
	assert.Contains(t, summary, "📅 04.07.2025")
}

func TestEntrySummaryBalancePayment(t *testing.T) {
	entries := sampleEntries()
	payment := entries[2] // payment #1, not tied to an invoice

	summary := EntrySummary(payment)
	assert.Contains(t, summary, "🟢 ПЛАТІЖ #1 +500.00€")
	assert.Contains(t, summary, "🎯 На баланс")
}

func TestEntryListItemInvoice(t *testing.T) {
	entries := sampleEntries()
	item := EntryListItem(entries[3])

	assert.Contains(t, item, "🔴 РАХУНОК 740.00€")
	assert.Contains(t, item, "🚗 2018 TESLA MODEL S")
	assert.Contains(t, item, "🆔 VIN: 5YJSA1E22JF272459")
	assert.Contains(t, item, "🗓️ 01.07.2025")
}

func TestEntryListItemPayments(t *testing.T) {
	entries := sampleEntries()

	tied := EntryListItem(entries[0])
	assert.Contains(t, tied, "🟢 ПОПОВНЕННЯ +240.00€")
	assert.Contains(t, tied, "🗓️ 04.07.2025 • За: 2018 TESLA MODEL S")

	untied := EntryListItem(entries[2])
	assert.Contains(t, untied, "🗓️ 02.07.2025 • На баланс")
}

func TestEntryListItemInvoiceWithoutVIN(t *testing.T) {
	e := core.HistoryEntry{
		Kind:       core.KindInvoice,
		ID:         7,
		Amount:     decimal.NewFromInt(-100),
		Descriptor: "2020 BMW X5",
		CreatedAt:  at(5),
	}
	item := EntryListItem(e)
	assert.Contains(t, item, "🚗 2020 BMW X5")
	assert.Contains(t, item, "🆔 VIN: ")
}
