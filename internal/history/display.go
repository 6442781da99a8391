package history

import (
	"fmt"
	"strings"

	"avtoledger/internal/core"
)

// EntrySummary renders the structured multi-line block shown for one entry
// in the history screen.
func EntrySummary(e core.HistoryEntry) string {
	var b strings.Builder

	if e.Kind == core.KindPayment {
		fmt.Fprintf(&b, "🟢 ПЛАТІЖ #%d %s€\n", e.ID, core.FormatSigned(e.Amount))
		if e.InvoiceID != nil {
			model, vin := core.SplitModelVIN(e.Descriptor)
			if vin != "" {
				fmt.Fprintf(&b, "🎯 За рахунок: %s | VIN: %s\n", model, vin)
			} else {
				fmt.Fprintf(&b, "🎯 За рахунок: %s\n", model)
			}
		} else {
			b.WriteString("🎯 На баланс\n")
		}
		fmt.Fprintf(&b, "📅 %s", core.FormatDate(e.DatePaid))
		return b.String()
	}

	model, vin := core.SplitModelVIN(e.Descriptor)
	fmt.Fprintf(&b, "🔴 РАХУНОК #%d %s€\n", e.ID, core.FormatSigned(e.Amount))
	fmt.Fprintf(&b, "🚗 %s | VIN: %s\n", model, vin)
	fmt.Fprintf(&b, "📅 %s", core.FormatDate(e.CreatedAt))
	return b.String()
}

// EntryListItem renders the compact block used in deletion/selection lists.
func EntryListItem(e core.HistoryEntry) string {
	var b strings.Builder

	if e.Kind == core.KindPayment {
		fmt.Fprintf(&b, "🟢 ПОПОВНЕННЯ %s€\n", core.FormatSigned(e.Amount))
		if e.InvoiceID != nil {
			model, _ := core.SplitModelVIN(e.Descriptor)
			fmt.Fprintf(&b, "🗓️ %s • За: %s", core.FormatDate(e.DatePaid), model)
		} else {
			fmt.Fprintf(&b, "🗓️ %s • На баланс", core.FormatDate(e.DatePaid))
		}
		return b.String()
	}

	model, vin := core.SplitModelVIN(e.Descriptor)
	fmt.Fprintf(&b, "🔴 РАХУНОК %s€\n", e.Amount.Abs().StringFixed(2))
	fmt.Fprintf(&b, "🚗 %s\n", model)
	fmt.Fprintf(&b, "🆔 VIN: %s\n", vin)
	fmt.Fprintf(&b, "🗓️ %s", core.FormatDate(e.CreatedAt))
	return b.String()
}
