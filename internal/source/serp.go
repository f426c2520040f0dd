package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hawkshop/hawker/internal/product"
)

// HTTPDoer is the minimal HTTP client surface the adapter needs; it allows
// injecting a fake in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SerpAdapter queries a shopping-search API and normalizes its listings.
// Results carry either inline storefront links or links through the
// provider's redirect host; the merger and metadata distinguish the two.
type SerpAdapter struct {
	apiKey       string
	baseURL      string
	redirectHost string
	httpClient   HTTPDoer
	logger       *slog.Logger
}

// SerpOption configures the SerpAdapter.
type SerpOption func(*SerpAdapter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) SerpOption {
	return func(a *SerpAdapter) { a.httpClient = c }
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) SerpOption {
	return func(a *SerpAdapter) { a.baseURL = u }
}

// NewSerpAdapter creates the shopping-search API adapter.
func NewSerpAdapter(apiKey, baseURL, redirectHost string, logger *slog.Logger, opts ...SerpOption) *SerpAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &SerpAdapter{
		apiKey:       apiKey,
		baseURL:      baseURL,
		redirectHost: redirectHost,
		httpClient:   &http.Client{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *SerpAdapter) Name() string { return "shopping-api" }

func (a *SerpAdapter) Kind() product.SourceKind { return product.KindAggregator }

// RedirectHost returns the provider host used to classify redirect links.
func (a *SerpAdapter) RedirectHost() string { return a.redirectHost }

// serpResponse mirrors the subset of the provider payload we consume.
type serpResponse struct {
	ShoppingResults []serpListing `json:"shopping_results"`
	Error           string        `json:"error"`
}

type serpListing struct {
	Title          string  `json:"title"`
	Price          string  `json:"price"`
	ExtractedPrice float64 `json:"extracted_price"`
	Link           string  `json:"link"`
	ProductLink    string  `json:"product_link"`
	Source         string  `json:"source"`
	Rating         float64 `json:"rating"`
	Reviews        int     `json:"reviews"`
	Thumbnail      string  `json:"thumbnail"`
}

// Fetch queries the provider and returns normalized listings. IDs are left
// empty; the merger assigns synthetic ones.
func (a *SerpAdapter) Fetch(ctx context.Context, query string) ([]product.Product, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("api_key", a.apiKey)

	reqURL := fmt.Sprintf("%s/search.json?%s", a.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopping-api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("shopping-api read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopping-api status %d", resp.StatusCode)
	}

	var payload serpResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("shopping-api parse: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("shopping-api: %s", payload.Error)
	}

	items := make([]product.Product, 0, len(payload.ShoppingResults))
	for _, l := range payload.ShoppingResults {
		price := l.ExtractedPrice
		if price == 0 {
			price = ParsePrice(l.Price)
		}
		link := l.Link
		if link == "" {
			link = l.ProductLink
		}

		items = append(items, product.Product{
			Title:   l.Title,
			Price:   price,
			Store:   l.Source,
			Link:    link,
			Image:   l.Thumbnail,
			Rating:  l.Rating,
			Reviews: l.Reviews,
			Source:  a.Name(),
		})
	}

	a.logger.Debug("shopping-api fetch complete", "items", len(items))
	return items, nil
}
