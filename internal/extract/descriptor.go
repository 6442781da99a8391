package extract

import (
	"regexp"
	"strings"
)

const fallbackTokens = 5

type descriptorPattern struct {
	name string
	re   *regexp.Regexp
}

// descriptorPatterns is evaluated in priority order; the first family with a
// match wins. VIN-shaped families use the standard I/O/Q exclusion.
var descriptorPatterns = []descriptorPattern{
	// "2018TESLA MODEL S 5YJSA1E22JF272459": year, uppercase make/model
	// tokens, optional MODEL keyword, trailing 17-character code.
	{"year-model-vin", regexp.MustCompile(`(?i)\d{4}[A-Z\s]+(?:MODEL\s+)?[A-Z0-9\s]+[A-Z0-9]{17}`)},
	// Bare VIN anywhere in the text.
	{"vin", regexp.MustCompile(`(?i)[A-HJ-NPR-Z0-9]{17}`)},
	// Year followed by capitalized make and model words.
	{"year-make-model", regexp.MustCompile(`(?i)\d{4}\s*[A-Z][A-Za-z]+\s+[A-Za-z0-9\s]+`)},
	// Make and model with a literal "model" token.
	{"make-model", regexp.MustCompile(`(?i)[A-Z][A-Za-z]+\s+[A-Za-z0-9\s]+(?:MODEL|model)[A-Za-z0-9\s]*`)},
}

// Descriptor finds the vehicle/item descriptor in pasted text. It never
// fails: when no identifier-shaped pattern matches, the first five
// whitespace-separated tokens of the raw text are used as fallback.
func Descriptor(text string) string {
	for _, p := range descriptorPatterns {
		if m := p.re.FindString(text); m != "" {
			return whitespaceRun.ReplaceAllString(strings.TrimSpace(m), " ")
		}
	}

	fields := strings.Fields(text)
	if len(fields) > fallbackTokens {
		fields = fields[:fallbackTokens]
	}
	return strings.Join(fields, " ")
}
