// Package core holds the ledger domain model: invoices, payments, balances
// and the money/date helpers shared by every other layer.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the upper sanity bound for user-typed amounts. Anything above
// it is treated as fat-finger input.
var MaxAmount = decimal.NewFromInt(1_000_000)

var currencyStripper = strings.NewReplacer("€", "", "$", "")

// ValidateAmount parses a user-typed amount string.
//
// It trims whitespace, accepts comma as decimal separator and tolerates a
// trailing or leading currency symbol (€, $). The amount must parse as a
// decimal, be greater than zero and not exceed MaxAmount; each failure mode
// returns its own sentinel error so callers can report the specific reason.
func ValidateAmount(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(currencyStripper.Replace(s))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return decimal.Zero, ErrAmountNotPositive
	}
	if d.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrAmountTooLarge
	}
	return d, nil
}

// FormatCurrency renders an amount to two decimals with the euro suffix.
func FormatCurrency(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}

// FormatSigned renders an amount to two decimals with an explicit sign,
// e.g. "+740.00" / "-120.50" / "+0.00".
func FormatSigned(d decimal.Decimal) string {
	if d.Sign() >= 0 {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

// FormatBalance renders a balance with its state marker. Three fixed states:
// positive (surplus), negative (debt), zero (balanced).
func FormatBalance(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "🟢 ➕ **+" + d.StringFixed(2) + " €** (переплата)"
	case -1:
		return "🔴 ➖ **" + d.StringFixed(2) + " €** (борг)"
	default:
		return "⚖️ ⚪ **" + d.StringFixed(2) + " €** (збалансовано)"
	}
}
