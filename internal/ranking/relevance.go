package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hawkshop/hawker/internal/product"
)

// TextGenerator is the provider surface the relevance scorer needs;
// genai.Client satisfies it, tests inject fakes.
type TextGenerator interface {
	Configured() bool
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Score holds the externally assigned relevance signals for one listing.
type Score struct {
	Relevance float64
	Penalty   float64
}

// ScoringResult is the tagged outcome of the external scoring stage. Reason
// is non-empty exactly when scoring failed; callers then apply the fallback
// ranking instead of the composite score.
type ScoringResult struct {
	Scores map[string]Score
	Reason string
}

// Failed reports whether the external stage was unusable.
func (r ScoringResult) Failed() bool { return r.Reason != "" }

// Lookup returns the score for an id, or the neutral default when the
// provider silently omitted it. A missing id must not crater that listing.
func (r ScoringResult) Lookup(id string) Score {
	if s, ok := r.Scores[id]; ok {
		return s
	}
	return Score{Relevance: neutralRelevance, Penalty: 0}
}

const neutralRelevance = 0.5

// Scorer requests relevance scores for a bounded candidate slice from the
// external classifier. Every provider problem (missing credential, HTTP
// failure, malformed payload) surfaces as a failed ScoringResult, never as
// an error or panic past this boundary.
type Scorer struct {
	provider TextGenerator
	penalty  float64
	logger   *slog.Logger
}

// NewScorer creates a relevance scorer. penalty is the irrelevance penalty
// the classifier is instructed to assign (hand-tuned default 0.9).
func NewScorer(provider TextGenerator, penalty float64, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		provider: provider,
		penalty:  penalty,
		logger:   logger,
	}
}

type candidatePayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Accessory bool   `json:"is_accessory"`
}

type scoredPayload struct {
	ID                 string   `json:"id"`
	RelevanceScore     *float64 `json:"relevanceScore"`
	IrrelevancePenalty *float64 `json:"irrelevancePenalty"`
}

// Score asks the classifier to rate each candidate's relevance to the query
// and to penalize accessories when the query targets a primary product.
func (s *Scorer) Score(ctx context.Context, query string, candidates []product.Product) ScoringResult {
	if len(candidates) == 0 {
		return ScoringResult{Scores: map[string]Score{}}
	}
	if s.provider == nil || !s.provider.Configured() {
		return ScoringResult{Reason: "scoring provider not configured"}
	}

	prompt, err := s.buildPrompt(query, candidates)
	if err != nil {
		return ScoringResult{Reason: fmt.Sprintf("build scoring prompt: %v", err)}
	}

	text, err := s.provider.GenerateText(ctx, prompt)
	if err != nil {
		s.logger.Warn("relevance scoring unavailable", "err", err)
		return ScoringResult{Reason: fmt.Sprintf("scoring provider: %v", err)}
	}

	scores, err := parseScores(text)
	if err != nil {
		s.logger.Warn("relevance scoring returned malformed payload", "err", err)
		return ScoringResult{Reason: fmt.Sprintf("malformed scoring payload: %v", err)}
	}

	return ScoringResult{Scores: scores}
}

func (s *Scorer) buildPrompt(query string, candidates []product.Product) (string, error) {
	payload := make([]candidatePayload, 0, len(candidates))
	for _, c := range candidates {
		payload = append(payload, candidatePayload{
			ID:        c.ID,
			Title:     c.Title,
			Accessory: c.Accessory,
		})
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	queryKind := "a primary product"
	if QueryTargetsAccessory(query) {
		queryKind = "an accessory"
	}

	return fmt.Sprintf(`You are scoring shopping results for the search query %q (the query targets %s).

For each candidate below, return a JSON array with one object per candidate:
{"id": "<id>", "relevanceScore": <0.0-1.0>, "irrelevancePenalty": <0 or %.1f>}

Set irrelevancePenalty to %.1f only when the item is an accessory but the
query targets a primary product; otherwise 0. Return ONLY the JSON array.

Candidates:
%s`, query, queryKind, s.penalty, s.penalty, encoded), nil
}

// parseScores decodes the classifier output. Anything that is not a
// parseable array of complete entries is a scoring failure.
func parseScores(text string) (map[string]Score, error) {
	text = stripCodeFence(text)

	var entries []scoredPayload
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("expected JSON array: %w", err)
	}

	scores := make(map[string]Score, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.RelevanceScore == nil || e.IrrelevancePenalty == nil {
			return nil, fmt.Errorf("entry %d missing required fields", i)
		}
		scores[e.ID] = Score{
			Relevance: clamp01(*e.RelevanceScore),
			Penalty:   *e.IrrelevancePenalty,
		}
	}
	return scores, nil
}

// stripCodeFence unwraps ```json ... ``` blocks the provider tends to emit.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
