package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const shortLabelLimit = 30

// UnknownVehicle is the fallback label when a descriptor carries no model text.
const UnknownVehicle = "Невідоме авто"

var filenameUnsafe = regexp.MustCompile(`[<>:"/\\|?*]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// Truncate shortens text to at most max runes, appending an ellipsis when
// anything was cut. Rune-based so Cyrillic descriptors don't get split
// mid-character.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// ShortLabel builds the one-line selection label for an invoice: descriptor
// truncated to 30 runes plus the formatted amount.
func ShortLabel(descriptor string, amount decimal.Decimal) string {
	d := []rune(descriptor)
	label := descriptor
	if len(d) > shortLabelLimit {
		label = string(d[:shortLabelLimit]) + "..."
	}
	return label + " - " + amount.StringFixed(2) + "€"
}

// SplitModelVIN splits a descriptor into its model text and the embedded
// 17-character VIN, when one is present. Returns UnknownVehicle for empty
// input or a descriptor that is nothing but the VIN.
func SplitModelVIN(descriptor string) (model, vin string) {
	if descriptor == "" {
		return UnknownVehicle, ""
	}

	model = descriptor
	for _, part := range strings.Fields(descriptor) {
		if len(part) == 17 && isAlphanumeric(part) {
			vin = part
			model = strings.TrimSpace(strings.Replace(descriptor, part, "", 1))
			break
		}
	}
	model = whitespaceRun.ReplaceAllString(strings.TrimSpace(model), " ")
	if model == "" {
		model = UnknownVehicle
	}
	return model, vin
}

// SanitizeFilename replaces characters that are unsafe in export file names
// and collapses whitespace to underscores.
func SanitizeFilename(name string) string {
	s := filenameUnsafe.ReplaceAllString(name, "_")
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "_")
}

// EntryGlyph returns the marker glyph for an entry type in list views.
func EntryGlyph(kind EntryKind) string {
	if kind == KindInvoice {
		return "📄"
	}
	return "💳"
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return s != ""
}
