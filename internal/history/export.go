package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"avtoledger/internal/core"
)

const separatorWidth = 35

// Export renders the plain-text history report: header, one block per entry
// in chronological order with the running balance after each, then a summary
// with the cached balance. For a consistent ledger the running balance of
// the newest entry equals currentBalance.
func Export(entries []core.HistoryEntry, currentBalance decimal.Decimal, now time.Time) string {
	if len(entries) == 0 {
		return "Історія операцій порожня."
	}

	ordered := Chronological(entries)
	running := ReplayBalance(entries)

	var b strings.Builder
	b.WriteString("📋 ІСТОРІЯ ОПЕРАЦІЙ\n")
	b.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	for i, e := range ordered {
		after := running[e.Key()]

		if e.Kind == core.KindPayment {
			fmt.Fprintf(&b, "— ПЛАТІЖ #%d\n", i+1)
			fmt.Fprintf(&b, "💰 Сума: %s євро\n", core.FormatSigned(e.Amount))
			fmt.Fprintf(&b, "📅 Дата платежу: %s\n", core.FormatDate(e.DatePaid))
			if e.InvoiceID != nil {
				descriptor := e.Descriptor
				if descriptor == "" {
					descriptor = core.UnknownVehicle
				}
				b.WriteString("🎯 Тип: Платіж за рахунок\n")
				fmt.Fprintf(&b, "🚗 Авто: %s\n", descriptor)
			} else {
				b.WriteString("🎯 Тип: Платіж на баланс\n")
			}
			fmt.Fprintf(&b, "📊 Баланс після операції: %s євро\n", core.FormatSigned(after))
		} else {
			fmt.Fprintf(&b, "— РАХУНОК #%d\n", i+1)
			fmt.Fprintf(&b, "🚗 Авто: %s\n", e.Descriptor)
			fmt.Fprintf(&b, "💰 Сума: %s євро\n", e.Amount.StringFixed(2))
			fmt.Fprintf(&b, "📅 Дата створення: %s\n", core.FormatDate(e.CreatedAt))
			fmt.Fprintf(&b, "📊 Баланс після операції: %s євро\n", core.FormatSigned(after))
		}

		b.WriteString(strings.Repeat("-", separatorWidth) + "\n\n")
	}

	b.WriteString("💰 ПІДСУМОК:\n")
	fmt.Fprintf(&b, "📊 Поточний баланс: %s євро\n", core.FormatSigned(currentBalance))
	if currentBalance.Sign() >= 0 {
		b.WriteString("✅ Стан: Позитивний баланс\n")
	} else {
		fmt.Fprintf(&b, "❌ Стан: Борг %s євро\n", currentBalance.Abs().StringFixed(2))
	}

	fmt.Fprintf(&b, "\n📅 Звіт згенеровано: %s %s\n",
		core.FormatDate(now), now.Format("15:04"))
	fmt.Fprintf(&b, "👤 Загальна кількість операцій: %d", len(ordered))

	return b.String()
}

// ExportFilename builds a safe attachment name for the report.
func ExportFilename(userID int64, now time.Time) string {
	return core.SanitizeFilename(fmt.Sprintf("history_%d_%s.txt", userID, core.FormatDate(now)))
}
