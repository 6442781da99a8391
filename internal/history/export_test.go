package history

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avtoledger/internal/core"
)

func TestExportReport(t *testing.T) {
	entries := sampleEntries()
	cached := decimal.NewFromInt(-300)
	now := time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC)

	report := Export(entries, cached, now)

	assert.True(t, strings.HasPrefix(report, "📋 ІСТОРІЯ ОПЕРАЦІЙ\n"))
	assert.Contains(t, report, "— РАХУНОК #1")
	assert.Contains(t, report, "— ПЛАТІЖ #2")
	assert.Contains(t, report, "💰 Сума: -740.00 євро")
	assert.Contains(t, report, "💰 Сума: +500.00 євро")
	assert.Contains(t, report, "📅 Дата платежу: 02.07.2025")
	assert.Contains(t, report, "🎯 Тип: Платіж за рахунок")
	assert.Contains(t, report, "🎯 Тип: Платіж на баланс")
	assert.Contains(t, report, "📊 Поточний баланс: -300.00 євро")
	assert.Contains(t, report, "❌ Стан: Борг 300.00 євро")
	assert.Contains(t, report, "📅 Звіт згенеровано: 10.07.2025 14:30")
	assert.Contains(t, report, "👤 Загальна кількість операцій: 4")
}

func TestExportRunningBalanceMatchesCached(t *testing.T) {
	entries := sampleEntries()
	totals := ReplayBalance(entries)

	// the replayed balance after the most recent entry is the cross-check
	// against the cached aggregate
	newest := entries[0]
	cached := totals[newest.Key()]

	report := Export(entries, cached, time.Now())
	require.Contains(t, report, "📊 Баланс після операції: "+core.FormatSigned(cached)+" євро")
	require.Contains(t, report, "📊 Поточний баланс: "+core.FormatSigned(cached)+" євро")
}

func TestExportEmptyHistory(t *testing.T) {
	report := Export(nil, decimal.Zero, time.Now())
	assert.Equal(t, "Історія операцій порожня.", report)
}

func TestExportPositiveBalanceState(t *testing.T) {
	entries := []core.HistoryEntry{{
		Kind:      core.KindPayment,
		ID:        1,
		Amount:    decimal.NewFromInt(100),
		CreatedAt: at(1),
		DatePaid:  at(1),
	}}
	report := Export(entries, decimal.NewFromInt(100), time.Now())
	assert.Contains(t, report, "✅ Стан: Позитивний баланс")
}

func TestExportFilename(t *testing.T) {
	name := ExportFilename(42, time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "history_42_10.07.2025.txt", name)
}
