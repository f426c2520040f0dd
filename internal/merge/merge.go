// Package merge concatenates adapter batches in priority order, drops
// structurally invalid listings, and deduplicates by a title+price
// fingerprint.
package merge

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hawkshop/hawker/internal/product"
)

// fingerprintTitleLen bounds the title portion of the dedup key. The dedup is
// deliberately heuristic: near-duplicate titles at different prices are kept,
// because price spread across stores is a buyer-relevant signal.
const fingerprintTitleLen = 50

// Batch is one adapter's contribution, tagged with enough context for the
// cross-source priority rules.
type Batch struct {
	Kind  product.SourceKind
	Store string // storefront label, used for aggregator duplicate removal
	Items []product.Product
}

type fingerprint struct {
	title string
	price float64
}

// Fingerprint returns the dedup key for a listing: the lowercased, trimmed
// title truncated to 50 characters, paired with the exact price.
func Fingerprint(p *product.Product) (string, float64) {
	title := strings.TrimSpace(strings.ToLower(p.Title))
	if runes := []rune(title); len(runes) > fingerprintTitleLen {
		title = string(runes[:fingerprintTitleLen])
	}
	return title, p.Price
}

// Merge combines batches in their given priority order (direct sites first,
// then aggregator batches with direct-store duplicates removed), filters
// invalid listings, assigns synthetic ids where a source omitted one, and
// deduplicates first-occurrence-wins while preserving insertion order.
func Merge(batches []Batch) []product.Product {
	directStores := make([]string, 0, len(batches))
	for _, b := range batches {
		if b.Kind == product.KindDirect && len(b.Items) > 0 && b.Store != "" {
			directStores = append(directStores, strings.ToLower(b.Store))
		}
	}

	seen := make(map[fingerprint]struct{})
	var merged []product.Product

	for _, b := range batches {
		for _, p := range b.Items {
			if !p.Valid() {
				continue
			}
			if b.Kind == product.KindAggregator && coveredByDirect(p.Store, directStores) {
				continue
			}

			title, price := Fingerprint(&p)
			key := fingerprint{title: title, price: price}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			merged = append(merged, p)
		}
	}

	return merged
}

// coveredByDirect reports whether an aggregator listing's store matches a
// direct site that already contributed results, by substring in either
// direction ("Amazon" vs "Amazon.com").
func coveredByDirect(store string, directStores []string) bool {
	s := strings.ToLower(strings.TrimSpace(store))
	if s == "" {
		return false
	}
	for _, d := range directStores {
		if strings.Contains(s, d) || strings.Contains(d, s) {
			return true
		}
	}
	return false
}
