// Package verdict produces the natural-language recommendation paragraph
// for the top-ranked listings, with a deterministic local template when the
// text-generation provider is unavailable or unreliable.
package verdict

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/hawkshop/hawker/internal/metrics"
	"github.com/hawkshop/hawker/internal/product"
)

// TextGenerator is the provider surface the generator needs; genai.Client
// satisfies it.
type TextGenerator interface {
	Configured() bool
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator builds the recommendation summary.
type Generator struct {
	provider   TextGenerator
	candidates int
	logger     *slog.Logger
}

// NewGenerator creates a Generator considering up to maxCandidates
// top-ranked listings (default 5).
func NewGenerator(provider TextGenerator, maxCandidates int, logger *slog.Logger) *Generator {
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider:   provider,
		candidates: maxCandidates,
		logger:     logger,
	}
}

// Generate returns the recommendation paragraph and whether the provider
// produced it. Provider failure of any kind falls back to the local
// template; this never returns an error. The degradation note, when
// present, is appended verbatim.
func (g *Generator) Generate(ctx context.Context, query string, ranked []product.Product, note string) (string, bool) {
	top := ranked
	if len(top) > g.candidates {
		top = top[:g.candidates]
	}
	if len(top) == 0 {
		return "", false
	}

	if g.provider != nil && g.provider.Configured() {
		text, err := g.provider.GenerateText(ctx, g.buildPrompt(query, top))
		if err == nil {
			if note != "" {
				text = text + "\n\n" + note
			}
			return text, true
		}
		g.logger.Warn("verdict generation unavailable, using template", "err", err)
		metrics.VerdictFallbackTotal.WithLabelValues("provider_error").Inc()
	} else {
		metrics.VerdictFallbackTotal.WithLabelValues("unconfigured").Inc()
	}

	return g.template(top, note), false
}

func (g *Generator) buildPrompt(query string, top []product.Product) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A shopper searched for %q. These are the top ranked results:\n\n", query)
	for i, p := range top {
		fmt.Fprintf(&sb, "%d. %s — %.2f at %s", i+1, p.Title, p.Price, p.Store)
		if p.Rating > 0 {
			fmt.Fprintf(&sb, " (rated %.1f, %d reviews)", p.Rating, p.Reviews)
		}
		if p.Discount > 0 {
			fmt.Fprintf(&sb, ", %.0f%% off", p.Discount)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nIn one short, friendly paragraph, recommend the best-value item and justify the pick by comparing features and prices. Keep it under 120 words.")
	return sb.String()
}

const fallbackTmpl = `Our top pick is {{.Title}} from {{.Store}} at {{printf "%.2f" .Price}}.
{{- if gt .Discount 0.0}} It is currently {{printf "%.0f" .Discount}}% off.{{end}}
{{- if gt .Rating 0.0}} Buyers rate it {{printf "%.1f" .Rating}}{{if gt .Reviews 0}} across {{.Reviews}} reviews{{end}}.{{end}}
{{- if gt .Savings 0.0}} Choosing it over the priciest option ({{.MaxTitle}} at {{printf "%.2f" .MaxPrice}}) saves you {{printf "%.2f" .Savings}}.{{end}}
{{- if .Note}}

{{.Note}}{{end}}`

type fallbackData struct {
	Title    string
	Store    string
	Price    float64
	Discount float64
	Rating   float64
	Reviews  int
	MaxTitle string
	MaxPrice float64
	Savings  float64
	Note     string
}

// template renders the deterministic local verdict from the top candidate
// and a savings comparison against the most expensive candidate in the set.
func (g *Generator) template(top []product.Product, note string) string {
	best := top[0]
	data := fallbackData{
		Title:    best.Title,
		Store:    best.Store,
		Price:    best.Price,
		Discount: best.Discount,
		Rating:   best.Rating,
		Reviews:  best.Reviews,
		Note:     note,
	}

	for _, p := range top {
		if p.Price > data.MaxPrice {
			data.MaxPrice = p.Price
			data.MaxTitle = p.Title
		}
	}
	if data.MaxPrice > best.Price {
		data.Savings = data.MaxPrice - best.Price
	}

	t, err := template.New("verdict").Parse(fallbackTmpl)
	if err != nil {
		// The template is a compile-time constant; this cannot happen at
		// runtime, but degrade to a bare sentence rather than panic.
		return fmt.Sprintf("Our top pick is %s from %s at %.2f.", best.Title, best.Store, best.Price)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return fmt.Sprintf("Our top pick is %s from %s at %.2f.", best.Title, best.Store, best.Price)
	}
	return sb.String()
}
