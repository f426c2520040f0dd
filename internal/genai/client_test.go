package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("test-key", "", "test-model", time.Second, WithBaseURL(srv.URL))
	return c, srv
}

func TestGenerateTextSuccess(t *testing.T) {
	var gotPath string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected prompt payload: %+v", req)
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content":      map[string]interface{}{"parts": []map[string]string{{"text": "wor"}, {"text": "ld"}}},
					"finishReason": "STOP",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer srv.Close()

	text, err := c.GenerateText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "world" {
		t.Errorf("text = %q, want concatenated parts", text)
	}
	if !strings.Contains(gotPath, "test-model:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
}

func TestGenerateTextUnconfigured(t *testing.T) {
	c := NewClient("", "https://example.com", "m", time.Second)
	_, err := c.GenerateText(context.Background(), "hi")
	if !errors.Is(err, ErrUnconfigured) {
		t.Errorf("err = %v, want ErrUnconfigured", err)
	}
}

func TestGenerateTextBlockedPrompt(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	})
	defer srv.Close()

	_, err := c.GenerateText(context.Background(), "hi")
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("err = %v, want ErrBlocked", err)
	}
}

func TestGenerateTextBlockedCandidate(t *testing.T) {
	for _, reason := range []string{"SAFETY", "RECITATION"} {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates": [{"finishReason": "` + reason + `"}]}`))
		})

		_, err := c.GenerateText(context.Background(), "hi")
		srv.Close()
		if !errors.Is(err, ErrBlocked) {
			t.Errorf("finishReason %s: err = %v, want ErrBlocked", reason, err)
		}
	}
}

func TestGenerateTextTruncated(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [{"finishReason": "MAX_TOKENS"}]}`))
	})
	defer srv.Close()

	_, err := c.GenerateText(context.Background(), "hi")
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestGenerateTextEmptyResponse(t *testing.T) {
	payloads := []string{
		`{"candidates": []}`,
		`{"candidates": [{"content": {"parts": [{"text": "   "}]}, "finishReason": "STOP"}]}`,
	}
	for _, payload := range payloads {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(payload))
		})

		_, err := c.GenerateText(context.Background(), "hi")
		srv.Close()
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("payload %q: err = %v, want ErrEmpty", payload, err)
		}
	}
}

func TestGenerateTextHTTPError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := c.GenerateText(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status error", err)
	}
}

func TestGenerateTextMalformedJSON(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	defer srv.Close()

	if _, err := c.GenerateText(context.Background(), "hi"); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigured(t *testing.T) {
	if NewClient("", "", "", 0).Configured() {
		t.Error("empty key reported configured")
	}
	if !NewClient("k", "", "", 0).Configured() {
		t.Error("key present but not configured")
	}
}
