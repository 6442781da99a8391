// Package extract turns free-form pasted invoice text into structured data:
// a monetary amount and a vehicle descriptor. Both extractors evaluate an
// ordered table of pattern families, most specific first, so the matching
// policy stays auditable and testable per family.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// number accepts an integer with an optional single comma/period fractional
// part. Thousands separators are not supported.
const number = `(\d+(?:[.,]\d+)?)`

// euroCurrency covers the currency spellings seen in pasted invoice notices.
const euroCurrency = `(?:євро|euro|eur|€)`

type amountPattern struct {
	name string
	re   *regexp.Regexp
}

// amountPatterns is evaluated in priority order. The first family that
// matches anywhere in the text wins; within a family the last match is
// taken, since trailing totals override earlier line-item numbers.
var amountPatterns = []amountPattern{
	{"equals-total", regexp.MustCompile(`(?i)=\s*` + number + `\s*` + euroCurrency)},
	{"amount-due", regexp.MustCompile(`(?i)до\s+сплати\s+` + number + `\s*` + euroCurrency)},
	{"to-pay", regexp.MustCompile(`(?i)сплати\s+` + number + `\s*` + euroCurrency)},
	{"package-total", regexp.MustCompile(`(?i)комплекс\s+` + number + `\s*` + euroCurrency)},
	{"bare-currency", regexp.MustCompile(`(?i)` + number + `\s*` + euroCurrency)},
	{"euro-prefix", regexp.MustCompile(`(?i)€\s*` + number)},
	{"eur-suffix", regexp.MustCompile(`(?i)` + number + `(?:EUR)`)},
	{"generic", regexp.MustCompile(`(?i)` + number + `\s*(?:євро|euro|eur|€|\$|usd)`)},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Amount finds a monetary amount in pasted text. It returns false when no
// pattern family matches, the matched number does not parse, or the value is
// not positive. Comma is accepted as decimal separator.
func Amount(text string) (decimal.Decimal, bool) {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")

	for _, p := range amountPatterns {
		matches := p.re.FindAllStringSubmatch(normalized, -1)
		if len(matches) == 0 {
			continue
		}

		// Last match in the first matching family wins.
		raw := strings.ReplaceAll(matches[len(matches)-1][1], ",", ".")
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.Sign() <= 0 {
			slog.Warn("matched amount did not parse",
				"family", p.name, "raw", raw)
			return decimal.Zero, false
		}

		slog.Debug("amount extracted",
			"family", p.name, "amount", amount.String())
		return amount, true
	}

	slog.Warn("no amount found in text", "preview", preview(text))
	return decimal.Zero, false
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return text
}
