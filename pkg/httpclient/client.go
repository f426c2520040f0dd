// Package httpclient provides the HTTP client used by the site scrapers:
// configurable timeouts, redirect policy, cookie persistence, and a browser
// TLS fingerprint so storefronts see an ordinary browser handshake.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Fingerprint selects the TLS ClientHello profile. Empty means ProfileGo.
	Fingerprint Profile
	// Proxy, when set, routes requests through the returned proxy URL.
	// It may read a per-request proxy from the request context.
	Proxy func(*http.Request) (*url.URL, error)
	// Transport overrides the fingerprinted transport entirely (tests).
	Transport http.RoundTripper
}

// Client wraps a standard http.Client to provide configurable timeouts,
// redirect policies, cookie management and TLS fingerprinting.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		maxRedirects := cfg.MaxRedirects
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	} else {
		// Don't follow any redirects if max < 0
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	switch {
	case cfg.Transport != nil:
		c.Transport = cfg.Transport
	default:
		profile := cfg.Fingerprint
		if profile == "" {
			profile = ProfileGo
		}
		transport, err := newTransport(profile, cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Transport = transport
	}

	return &Client{Client: c}, nil
}

// Do executes an HTTP request. The provided context should control the
// overarching request timeout/cancellation independent of the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	// Always clone the request with the provided context
	reqWithCtx := req.Clone(ctx)

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
