package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/scraper"
	"github.com/hawkshop/hawker/pkg/httpclient"
)

const searchPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="product-card">
    <h3 class="title">Wireless Mouse Pro</h3>
    <span class="price">$25.99</span>
    <a class="link" href="/p/mouse-pro">View</a>
    <img class="thumb" src="/img/mouse.jpg">
    <span class="rating">4.5</span>
    <span class="reviews">812 reviews</span>
  </div>
  <div class="product-card">
    <h3 class="title">Budget Mouse</h3>
    <span class="price">$9.99</span>
    <a class="link" href="https://other.example.com/budget">View</a>
  </div>
  <div class="product-card">
    <h3 class="title">Broken Card</h3>
    <span class="price">N/A</span>
  </div>
</body></html>`

func testSiteConfig(name string) config.SiteConfig {
	return config.SiteConfig{
		Name:  name,
		Store: "TechShop",
		Selectors: config.SelectorSet{
			Item:    ".product-card",
			Title:   ".title",
			Price:   ".price",
			Link:    ".link",
			Image:   ".thumb",
			Rating:  ".rating",
			Reviews: ".reviews",
		},
	}
}

func newTestFetcher(t *testing.T) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     time.Second,
		Fingerprint: httpclient.ProfileGo,
	})
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	return f
}

func TestSiteFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	cfg := testSiteConfig("techshop")
	cfg.SearchURL = srv.URL + "/search?q={query}"
	a := NewSiteAdapter(cfg, newTestFetcher(t), nil)

	items, err := a.Fetch(context.Background(), "wireless mouse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "wireless mouse" {
		t.Errorf("query = %q, want url-escaped round trip", gotQuery)
	}

	// The broken card has no link and no numeric price, so only two survive.
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	first := items[0]
	if first.Title != "Wireless Mouse Pro" || first.Price != 25.99 {
		t.Errorf("first item = %+v", first)
	}
	if first.Store != "TechShop" {
		t.Errorf("store = %q", first.Store)
	}
	if !strings.HasPrefix(first.Link, srv.URL) {
		t.Errorf("relative link not resolved: %q", first.Link)
	}
	if !strings.HasSuffix(first.Link, "/p/mouse-pro") {
		t.Errorf("link = %q", first.Link)
	}
	if first.Rating != 4.5 || first.Reviews != 812 {
		t.Errorf("rating/reviews = %v/%d", first.Rating, first.Reviews)
	}
	if !strings.HasPrefix(first.Image, srv.URL) {
		t.Errorf("relative image not resolved: %q", first.Image)
	}

	if items[1].Link != "https://other.example.com/budget" {
		t.Errorf("absolute link rewritten: %q", items[1].Link)
	}
}

func TestSiteFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testSiteConfig("techshop")
	cfg.SearchURL = srv.URL + "/search?q={query}"
	a := NewSiteAdapter(cfg, newTestFetcher(t), nil)

	if _, err := a.Fetch(context.Background(), "mouse"); err == nil {
		t.Error("expected error on 404")
	}
}

func TestSiteFetchBlockedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html>Attention Required! | Cloudflare</html>"))
	}))
	defer srv.Close()

	cfg := testSiteConfig("techshop")
	cfg.SearchURL = srv.URL + "/search?q={query}"
	a := NewSiteAdapter(cfg, newTestFetcher(t), nil)

	_, err := a.Fetch(context.Background(), "mouse")
	if err == nil {
		t.Fatal("expected error for a challenge page")
	}
	if !strings.Contains(err.Error(), "blocked") {
		t.Errorf("err = %v, want block classification", err)
	}
}

func TestSiteFetchNoCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no results</body></html>"))
	}))
	defer srv.Close()

	cfg := testSiteConfig("techshop")
	cfg.SearchURL = srv.URL + "/search?q={query}"
	a := NewSiteAdapter(cfg, newTestFetcher(t), nil)

	items, err := a.Fetch(context.Background(), "mouse")
	if err != nil {
		t.Fatalf("zero matches must not be an error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}

func TestSiteStoreFallsBackToName(t *testing.T) {
	cfg := testSiteConfig("techshop")
	cfg.Store = ""
	a := NewSiteAdapter(cfg, newTestFetcher(t), nil)
	if a.Store() != "techshop" {
		t.Errorf("Store() = %q, want site name", a.Store())
	}
}
