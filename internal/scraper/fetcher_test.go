package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hawkshop/hawker/pkg/httpclient"
)

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := NewFetcher(FetchConfig{
		Timeout:     time.Second,
		Fingerprint: httpclient.ProfileGo,
	})
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	return f
}

func TestFetchSuccess(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html>results</html>"))
	}))
	defer srv.Close()

	res, err := newFetcher(t).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	if string(res.Body) != "<html>results</html>" {
		t.Errorf("body = %q", res.Body)
	}
	if res.Err != "" {
		t.Errorf("unexpected result error: %s", res.Err)
	}
	if res.Blocked {
		t.Error("clean page flagged as blocked")
	}
	if res.ID == "" {
		t.Error("result missing id")
	}
	if !strings.Contains(gotUA, "Mozilla") {
		t.Errorf("User-Agent = %q, pool not applied", gotUA)
	}
}

func TestFetchRotatesUserAgents(t *testing.T) {
	seen := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("User-Agent")] = true
	}))
	defer srv.Close()

	f := newFetcher(t)
	for i := 0; i < 4; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}

	if len(seen) < 2 {
		t.Errorf("saw %d distinct user agents, want rotation", len(seen))
	}
}

func TestFetchTransportFailureInResult(t *testing.T) {
	// Transport failures land in Result.Err, not the returned error.
	res, err := newFetcher(t).Fetch(context.Background(), "http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("transport failure should not return an error: %v", err)
	}
	if res.Err == "" {
		t.Error("expected Result.Err to be set")
	}
}

func TestFetchDetectsBlockPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res, err := newFetcher(t).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Blocked || res.BlockedBy != "Cloudflare" {
		t.Errorf("Blocked=%v BlockedBy=%q", res.Blocked, res.BlockedBy)
	}
}

func TestFetchContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := newFetcher(t).Fetch(ctx, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("context deadline not honored")
	}
	if res.Err == "" {
		t.Error("cancelled fetch should record an error")
	}
}
