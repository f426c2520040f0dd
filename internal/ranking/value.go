package ranking

// Reference-price regime constants. Cheap items get proportionally more
// ranking headroom than expensive ones.
const (
	expensiveThreshold = 10000.0
	expensiveMarkup    = 1.15
	cheapMarkup        = 2.0
)

// ReferencePrice returns the assumed "fair ceiling" price for a listing:
// price*1.15 above the expensive threshold, price*2 below it.
func ReferencePrice(price float64) float64 {
	if price > expensiveThreshold {
		return price * expensiveMarkup
	}
	return price * cheapMarkup
}

// ValueScore computes the local price-value score in [0,1], higher meaning
// better value. Pure function of price: no I/O, no randomness.
func ValueScore(price float64) float64 {
	if price <= 0 {
		return 0
	}
	score := 1 - price/ReferencePrice(price)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
