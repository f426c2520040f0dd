//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/fanout"
	"github.com/hawkshop/hawker/internal/genai"
	"github.com/hawkshop/hawker/internal/pipeline"
	"github.com/hawkshop/hawker/internal/product"
	"github.com/hawkshop/hawker/internal/ranking"
	"github.com/hawkshop/hawker/internal/scraper"
	"github.com/hawkshop/hawker/internal/source"
	"github.com/hawkshop/hawker/internal/storage"
	"github.com/hawkshop/hawker/internal/verdict"
	"github.com/hawkshop/hawker/pkg/httpclient"
)

// memBackend is an in-memory storage.Backend for verifying saved runs.
type memBackend struct {
	mu      sync.Mutex
	records []*storage.RunRecord
}

func (m *memBackend) Save(ctx context.Context, r *storage.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memBackend) Query(ctx context.Context, f storage.Filter) ([]*storage.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *memBackend) Close() error { return nil }

const storefrontPage = `<!DOCTYPE html>
<html><body>
<div class="product-card">
  <h3 class="title">Wireless Mouse Pro</h3>
  <span class="price">$25.99</span>
  <a class="link" href="/p/mouse-pro">View</a>
  <span class="rating">4.5</span>
  <span class="reviews">812 reviews</span>
</div>
<div class="product-card">
  <h3 class="title">Mouse Pad XL</h3>
  <span class="price">$5.00</span>
  <a class="link" href="/p/pad-xl">View</a>
</div>
</body></html>`

// fakeGenAI answers generateContent for both scoring and verdict prompts.
// Scoring prompts carry the candidate array after a "Candidates:" line, so
// the handler can echo back a score per real (merge-assigned) ID.
func fakeGenAI(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode genai request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Contents[0].Parts[0].Text

		var text string
		if strings.Contains(prompt, "relevanceScore") {
			idx := strings.Index(prompt, "Candidates:")
			if idx < 0 {
				t.Error("scoring prompt missing candidate list")
			}
			var candidates []struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				Accessory bool   `json:"is_accessory"`
			}
			if err := json.Unmarshal([]byte(strings.TrimSpace(prompt[idx+len("Candidates:"):])), &candidates); err != nil {
				t.Errorf("decode candidates from prompt: %v", err)
			}
			var entries []string
			for _, c := range candidates {
				relevance, penalty := 0.9, 0.0
				if c.Accessory {
					relevance, penalty = 0.2, 0.9
				}
				entries = append(entries, fmt.Sprintf(
					`{"id":%q,"relevanceScore":%.1f,"irrelevancePenalty":%.1f}`, c.ID, relevance, penalty))
			}
			text = "[" + strings.Join(entries, ",") + "]"
		} else {
			text = "The Wireless Mouse Pro is the best value at this price."
		}

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"parts": []map[string]string{{"text": text}}},
				"finishReason": "STOP",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func siteSelectors() config.SelectorSet {
	return config.SelectorSet{
		Item:    ".product-card",
		Title:   ".title",
		Price:   ".price",
		Link:    ".link",
		Rating:  ".rating",
		Reviews: ".reviews",
	}
}

func testRankingConfig() config.RankingConfig {
	return config.RankingConfig{
		RelevanceWeight:     3,
		ValueWeight:         1,
		PenaltyWeight:       5,
		IrrelevancePenalty:  0.9,
		TopN:                20,
		AccessoryPriceFloor: 1000,
		VerdictCandidates:   5,
	}
}

func TestIntegration_SearchEndToEnd(t *testing.T) {
	// 1. Fake upstreams: a healthy storefront, a storefront behind a bot
	// wall, a shopping API that repeats one storefront item, and the AI.
	siteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("storefront request missing query parameter")
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, storefrontPage)
	}))
	defer siteSrv.Close()

	blockedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "cf-browser-verification")
	}))
	defer blockedSrv.Close()

	serpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"shopping_results": [
			{"title": "Wireless Mouse Pro", "extracted_price": 25.99, "link": "https://shopping.example.com/r/1", "source": "TechShop"},
			{"title": "Ergo Mouse", "extracted_price": 32.50, "link": "https://shopping.example.com/r/2", "source": "OtherShop", "rating": 4.1, "reviews": 95}
		]}`)
	}))
	defer serpSrv.Close()

	aiSrv := fakeGenAI(t)
	defer aiSrv.Close()

	// 2. Wire the pipeline the way serve mode does, pointed at the fakes.
	cfg := &config.Config{
		Sources: config.SourcesConfig{
			Aggregator: config.AggregatorConfig{
				Enabled:      true,
				APIKey:       "test-key",
				RedirectHost: "shopping.example.com",
			},
		},
		Ranking: testRankingConfig(),
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: httpclient.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	adapters := []source.Adapter{
		source.NewSiteAdapter(config.SiteConfig{
			Name:      "techshop",
			Store:     "TechShop",
			SearchURL: siteSrv.URL + "/search?q={query}",
			Selectors: siteSelectors(),
		}, fetcher, nil),
		source.NewSiteAdapter(config.SiteConfig{
			Name:      "walledshop",
			Store:     "WalledShop",
			SearchURL: blockedSrv.URL + "/search?q={query}",
			Selectors: siteSelectors(),
		}, fetcher, nil),
		source.NewSerpAdapter("test-key", serpSrv.URL, "shopping.example.com", nil),
	}

	ai := genai.NewClient("test-key", aiSrv.URL, "test-model", 5*time.Second)
	backend := &memBackend{}

	pipe := pipeline.New(cfg, true, pipeline.Deps{
		Adapters: adapters,
		Executor: fanout.NewExecutor(6*time.Second, nil),
		Scorer:   ranking.NewScorer(ai, cfg.Ranking.IrrelevancePenalty, nil),
		Composer: ranking.NewComposer(cfg.Ranking),
		Verdict:  verdict.NewGenerator(ai, cfg.Ranking.VerdictCandidates, nil),
		Store:    backend,
	})

	// 3. Run a search.
	result, err := pipe.Run(context.Background(), "wireless mouse")
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	// 4. Verify merge, ranking, verdict, and persistence.
	if !result.Metadata.RankedByAI {
		t.Error("expected AI-ranked result")
	}

	// The healthy storefront yields 2 items; the aggregator yields 2 but
	// its TechShop duplicate is dropped against the direct batch.
	if len(result.Items) != 3 {
		for _, p := range result.Items {
			t.Logf("item: %s @ %.2f (%s)", p.Title, p.Price, p.Store)
		}
		t.Fatalf("expected 3 merged items, got %d", len(result.Items))
	}

	if result.Items[0].Title != "Wireless Mouse Pro" {
		t.Errorf("expected Wireless Mouse Pro ranked first, got %q", result.Items[0].Title)
	}
	for _, p := range result.Items {
		if p.Title == "Mouse Pad XL" && !p.Accessory {
			t.Error("expected the mouse pad to be flagged as accessory")
		}
		if !p.Scored {
			t.Errorf("expected %q to carry a composite score", p.Title)
		}
	}

	if !strings.Contains(result.Summary, "Wireless Mouse Pro") {
		t.Errorf("expected AI verdict in summary, got %q", result.Summary)
	}

	var blockedReport *product.SourceReport
	for i := range result.Metadata.Sources {
		if result.Metadata.Sources[i].Name == "walledshop" {
			blockedReport = &result.Metadata.Sources[i]
		}
	}
	if blockedReport == nil {
		t.Fatal("expected a source report for the blocked storefront")
	}
	if blockedReport.Err == "" || blockedReport.Count != 0 {
		t.Errorf("expected blocked storefront to report an error with 0 items, got %+v", blockedReport)
	}

	if result.Metadata.RedirectLinks != 1 {
		t.Errorf("expected 1 redirect link from the aggregator, got %d", result.Metadata.RedirectLinks)
	}
	if result.Metadata.DirectLinks != 2 {
		t.Errorf("expected 2 direct links, got %d", result.Metadata.DirectLinks)
	}

	if len(backend.records) != 1 {
		t.Fatalf("expected 1 saved run record, got %d", len(backend.records))
	}
	rec := backend.records[0]
	if rec.Query != "wireless mouse" || !rec.RankedByAI || rec.ItemCount != 3 {
		t.Errorf("saved record does not match run: %+v", rec)
	}
}

func TestIntegration_FallbackWithoutAI(t *testing.T) {
	siteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, storefrontPage)
	}))
	defer siteSrv.Close()

	cfg := &config.Config{Ranking: testRankingConfig()}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: httpclient.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	adapters := []source.Adapter{
		source.NewSiteAdapter(config.SiteConfig{
			Name:      "techshop",
			Store:     "TechShop",
			SearchURL: siteSrv.URL + "/search?q={query}",
			Selectors: siteSelectors(),
		}, fetcher, nil),
	}

	// No API key: scoring and verdict both degrade.
	ai := genai.NewClient("", "", "test-model", time.Second)

	pipe := pipeline.New(cfg, false, pipeline.Deps{
		Adapters: adapters,
		Executor: fanout.NewExecutor(6*time.Second, nil),
		Scorer:   ranking.NewScorer(ai, cfg.Ranking.IrrelevancePenalty, nil),
		Composer: ranking.NewComposer(cfg.Ranking),
		Verdict:  verdict.NewGenerator(ai, cfg.Ranking.VerdictCandidates, nil),
	})

	result, err := pipe.Run(context.Background(), "wireless mouse")
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if result.Metadata.RankedByAI {
		t.Error("expected heuristic ranking without AI")
	}

	// The cheap accessory is filtered and the survivor is price-sorted.
	if len(result.Items) != 1 || result.Items[0].Title != "Wireless Mouse Pro" {
		t.Fatalf("expected only Wireless Mouse Pro to survive the fallback filter, got %+v", result.Items)
	}
	if result.Items[0].Scored {
		t.Error("fallback results must not carry composite scores")
	}

	if !strings.Contains(result.Summary, "sorted by price") {
		t.Errorf("expected degradation note in summary, got %q", result.Summary)
	}
}
