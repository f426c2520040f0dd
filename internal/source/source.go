// Package source defines the upstream product-source contract and the two
// adapter families hawker ships: direct storefront scrapers and the
// third-party shopping-search API.
package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/hawkshop/hawker/internal/product"
)

// Adapter wraps one upstream provider behind a uniform fetch contract. An
// adapter must not panic; internal failures come back as an error (or an
// empty slice), and the caller treats both the same way.
type Adapter interface {
	Name() string
	Kind() product.SourceKind
	Fetch(ctx context.Context, query string) ([]product.Product, error)
}

// ParsePrice extracts a numeric amount from a display price like "$1,299.99"
// or "1299". Returns 0 when no digits are present; callers treat 0 as
// invalid.
func ParsePrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseCount extracts a leading integer from text like "1,234 reviews".
func ParseCount(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == ',' {
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return 0
	}
	v, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return v
}

// ParseRating extracts a leading decimal from text like "4.5 out of 5".
func ParseRating(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return v
}
