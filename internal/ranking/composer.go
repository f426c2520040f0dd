package ranking

import (
	"sort"

	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/product"
)

// Composer combines value and relevance signals into the final ordering.
// Weights are hand-tuned configuration, preserved as given: relevance
// dominates, and a single irrelevance penalty can zero out an otherwise
// good score.
type Composer struct {
	cfg config.RankingConfig
}

// NewComposer creates a Composer with the given ranking constants.
func NewComposer(cfg config.RankingConfig) *Composer {
	return &Composer{cfg: cfg}
}

// SortByPrice stable-sorts listings ascending by price. This is the base
// order for the scoring slice and the fallback ranking.
func SortByPrice(items []product.Product) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Price < items[j].Price
	})
}

// Annotate attaches the local signals (accessory flag, value score) to each
// listing in the scoring slice.
func Annotate(items []product.Product) {
	for i := range items {
		items[i].Accessory = IsAccessoryTitle(items[i].Title)
		items[i].ValueScore = ValueScore(items[i].Price)
	}
}

// Composite computes the clamped composite ranking score.
// CRS = W_R*relevance + W_P*value - W_IR*penalty, never below zero.
func (c *Composer) Composite(valueScore, relevance, penalty float64) float64 {
	score := c.cfg.RelevanceWeight*relevance + c.cfg.ValueWeight*valueScore - c.cfg.PenaltyWeight*penalty
	if score < 0 {
		return 0
	}
	return score
}

// Rank orders the scored slice and appends the remainder. slice must already
// be price-ascending and annotated; rest keeps its price-ascending order
// untouched.
//
// When scoring succeeded, the slice is reordered by composite score
// descending (stable, so price order breaks ties). When scoring failed, the
// slice keeps price order with the heuristic accessory filter applied: for a
// primary-product query, accessories under the price floor are dropped so
// cheap irrelevant add-ons cannot dominate a pure price sort.
func (c *Composer) Rank(query string, slice, rest []product.Product, scoring ScoringResult) []product.Product {
	if scoring.Failed() {
		filtered := c.accessoryFilter(query, slice)
		SortByPrice(filtered)
		return append(filtered, rest...)
	}

	ranked := make([]product.Product, len(slice))
	copy(ranked, slice)
	for i := range ranked {
		s := scoring.Lookup(ranked[i].ID)
		ranked[i].RelevanceScore = s.Relevance
		ranked[i].IrrelevancePenalty = s.Penalty
		ranked[i].CompositeScore = c.Composite(ranked[i].ValueScore, s.Relevance, s.Penalty)
		ranked[i].Scored = true
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})

	return append(ranked, rest...)
}

func (c *Composer) accessoryFilter(query string, slice []product.Product) []product.Product {
	if QueryTargetsAccessory(query) {
		out := make([]product.Product, len(slice))
		copy(out, slice)
		return out
	}

	out := make([]product.Product, 0, len(slice))
	for _, p := range slice {
		if p.Accessory && p.Price < c.cfg.AccessoryPriceFloor {
			continue
		}
		out = append(out, p)
	}
	return out
}
