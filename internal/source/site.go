package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/product"
	"github.com/hawkshop/hawker/internal/scraper"
)

// SiteAdapter scrapes one storefront's search-results page and extracts
// product cards using the site's configured CSS selectors.
type SiteAdapter struct {
	cfg     config.SiteConfig
	fetcher *scraper.Fetcher
	logger  *slog.Logger
}

// NewSiteAdapter creates an adapter for one configured storefront. The
// fetcher is shared across sites so connections and cookies are pooled.
func NewSiteAdapter(cfg config.SiteConfig, fetcher *scraper.Fetcher, logger *slog.Logger) *SiteAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteAdapter{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
	}
}

func (a *SiteAdapter) Name() string { return a.cfg.Name }

func (a *SiteAdapter) Kind() product.SourceKind { return product.KindDirect }

// Store returns the storefront label used for cross-source duplicate removal.
func (a *SiteAdapter) Store() string {
	if a.cfg.Store != "" {
		return a.cfg.Store
	}
	return a.cfg.Name
}

// Fetch retrieves and parses the search page for the query. Block pages and
// non-2xx statuses are errors; a page with zero matching cards is not.
func (a *SiteAdapter) Fetch(ctx context.Context, query string) ([]product.Product, error) {
	searchURL := strings.ReplaceAll(a.cfg.SearchURL, "{query}", url.QueryEscape(query))

	res, err := a.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.cfg.Name, err)
	}
	if res.Err != "" {
		return nil, fmt.Errorf("fetch %s: %s", a.cfg.Name, res.Err)
	}
	if res.Blocked {
		return nil, fmt.Errorf("fetch %s: blocked by %s", a.cfg.Name, res.BlockedBy)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", a.cfg.Name, res.StatusCode)
	}

	items, err := a.parse(searchURL, res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.cfg.Name, err)
	}

	a.logger.Debug("site fetch complete", "site", a.cfg.Name, "items", len(items), "duration", res.Duration)
	return items, nil
}

func (a *SiteAdapter) parse(pageURL string, body []byte) ([]product.Product, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	store := a.cfg.Store
	if store == "" {
		store = a.cfg.Name
	}

	sel := a.cfg.Selectors
	var items []product.Product
	doc.Find(sel.Item).Each(func(i int, card *goquery.Selection) {
		p := product.Product{
			Title:  strings.TrimSpace(card.Find(sel.Title).First().Text()),
			Price:  ParsePrice(card.Find(sel.Price).First().Text()),
			Store:  store,
			Source: a.cfg.Name,
		}

		if href, ok := card.Find(sel.Link).First().Attr("href"); ok {
			if u, err := url.Parse(href); err == nil {
				p.Link = base.ResolveReference(u).String()
			}
		}
		if sel.Image != "" {
			if src, ok := card.Find(sel.Image).First().Attr("src"); ok {
				if u, err := url.Parse(src); err == nil {
					p.Image = base.ResolveReference(u).String()
				}
			}
		}
		if sel.Rating != "" {
			p.Rating = ParseRating(card.Find(sel.Rating).First().Text())
		}
		if sel.Reviews != "" {
			p.Reviews = ParseCount(card.Find(sel.Reviews).First().Text())
		}

		// Structurally broken cards are skipped here; the merger re-checks
		// validity for everything anyway.
		if p.Valid() {
			items = append(items, p)
		}
	})

	return items, nil
}
