// Package ranking implements the two-stage scoring model: a local,
// deterministic price-value score and an externally scored relevance signal,
// composed into one ranking with a heuristic fallback when the external
// stage is unavailable.
package ranking

import "strings"

// accessoryTerms flags listings that are add-ons rather than primary
// products. Substring match, case-insensitive.
var accessoryTerms = []string{
	"case",
	"cover",
	"charger",
	"cable",
	"protector",
	"adapter",
	"stand",
	"pad",
}

// IsAccessoryTitle reports whether a listing title names an accessory.
func IsAccessoryTitle(title string) bool {
	return containsAnyTerm(title, accessoryTerms)
}

// QueryTargetsAccessory reports whether the search query itself asks for an
// accessory category. When it does, the accessory penalty and the fallback
// accessory filter are both disabled.
func QueryTargetsAccessory(query string) bool {
	return containsAnyTerm(query, accessoryTerms)
}

func containsAnyTerm(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
