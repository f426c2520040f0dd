// Package product defines the records flowing through the aggregation
// pipeline: listings collected from upstream sources, per-source fetch
// reports, and the final result returned to callers.
package product

import (
	"net/url"
	"strings"
	"time"
)

// SourceKind distinguishes direct storefront scrapers from aggregator APIs.
type SourceKind string

const (
	KindDirect     SourceKind = "direct"
	KindAggregator SourceKind = "aggregator"
)

// LinkKind classifies a listing URL as pointing at the storefront itself or
// at an aggregator redirect endpoint.
type LinkKind string

const (
	LinkDirect   LinkKind = "direct"
	LinkRedirect LinkKind = "redirect"
)

// Product is one shopping listing normalized from an upstream source.
// Score fields are zero until the listing passes through ranking; Scored
// marks the listings that did.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Store    string  `json:"store"`
	Link     string  `json:"link"`
	Image    string  `json:"image,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Reviews  int     `json:"reviews,omitempty"`
	Discount float64 `json:"discount,omitempty"`
	Source   string  `json:"source"`

	Accessory bool `json:"accessory,omitempty"`

	ValueScore         float64 `json:"valueScore,omitempty"`
	RelevanceScore     float64 `json:"relevanceScore,omitempty"`
	IrrelevancePenalty float64 `json:"irrelevancePenalty,omitempty"`
	CompositeScore     float64 `json:"compositeScore,omitempty"`
	Scored             bool    `json:"scored,omitempty"`
}

// Valid reports whether the listing satisfies the structural invariants the
// merger enforces: a non-empty title, a positive price, and a link.
func (p *Product) Valid() bool {
	return strings.TrimSpace(p.Title) != "" && p.Price > 0 && p.Link != ""
}

// LinkClass classifies the listing link against the aggregator's redirect
// host. An unparseable link counts as direct; it already survived validity.
func (p *Product) LinkClass(redirectHost string) LinkKind {
	if redirectHost == "" {
		return LinkDirect
	}
	u, err := url.Parse(p.Link)
	if err != nil {
		return LinkDirect
	}
	if strings.Contains(strings.ToLower(u.Hostname()), strings.ToLower(redirectHost)) {
		return LinkRedirect
	}
	return LinkDirect
}

// SourceStatus is the outcome class of a single adapter invocation.
type SourceStatus string

const (
	StatusOK    SourceStatus = "ok"
	StatusEmpty SourceStatus = "empty"
	StatusError SourceStatus = "error"
)

// SourceReport records the per-adapter outcome of one fan-out. Reports feed
// metadata and metrics only; ranking never reads them.
type SourceReport struct {
	Name   string       `json:"name"`
	Kind   SourceKind   `json:"type"`
	Count  int          `json:"count"`
	Status SourceStatus `json:"status"`
	Err    string       `json:"error,omitempty"`
}

// Strategy records which source families were enabled for a run.
type Strategy struct {
	Sites      bool `json:"sites"`
	Aggregator bool `json:"aggregator"`
	AIRanking  bool `json:"aiRanking"`
}

// Metadata carries run-level observability attached to an AggregationResult.
type Metadata struct {
	TotalResults  int            `json:"totalResults"`
	TopPrice      float64        `json:"topPrice"`
	TopStore      string         `json:"topStore"`
	RankedByAI    bool           `json:"rankedByAI"`
	FetchTime     int64          `json:"fetchTime"` // milliseconds
	DirectLinks   int            `json:"directLinks"`
	RedirectLinks int            `json:"redirectLinks"`
	Sources       []SourceReport `json:"sources"`
	Strategy      Strategy       `json:"strategy"`
}

// AggregationResult is the sole output of the pipeline: the ranked listings,
// the recommendation summary, and run metadata. Immutable once returned.
type AggregationResult struct {
	Items     []Product `json:"items"`
	Summary   string    `json:"summary"`
	Metadata  Metadata  `json:"metadata"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
}
