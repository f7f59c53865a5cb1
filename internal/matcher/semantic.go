package matcher

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// overlapStopWords is the short multilingual stop list used when comparing
// title word sets; listings come from German, Spanish and Portuguese
// storefronts as well as English ones.
var overlapStopWords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "para": {}, "com": {},
	"and": {}, "the": {}, "in": {}, "on": {}, "at": {},
	"with": {}, "for": {},
}

// SemanticMatcher is the last cascade stage: it embeds listing text and ranks
// candidates by cosine similarity, with lexical bonuses folded into the final
// confidence. The embedder is shared process-wide.
type SemanticMatcher struct {
	embedder Embedder
	cfg      config.MatcherConfig
}

func NewSemanticMatcher(embedder Embedder, cfg config.MatcherConfig) *SemanticMatcher {
	return &SemanticMatcher{embedder: embedder, cfg: cfg}
}

func (m *SemanticMatcher) Name() models.MatchMethod {
	return models.MatchMethodSemantic
}

// Match returns the best-confidence candidate among the top similarity
// matches, or ErrNoMatch when none clears both thresholds.
func (m *SemanticMatcher) Match(listing models.ProductListing, candidates []models.ProductListing) (*models.MatchResult, error) {
	top, err := m.TopMatches(listing, candidates)
	if err != nil {
		return nil, err
	}

	var best *models.MatchResult
	for i := range top {
		if top[i].Confidence < m.cfg.ConfidenceThreshold {
			continue
		}
		if best == nil || top[i].Confidence > best.Confidence {
			best = &top[i]
		}
	}
	if best == nil {
		return nil, models.ErrNoMatch
	}
	return best, nil
}

// TopMatches returns up to 10 candidates whose embedding similarity clears
// the similarity threshold, sorted by similarity descending.
func (m *SemanticMatcher) TopMatches(listing models.ProductListing, candidates []models.ProductListing) ([]models.MatchResult, error) {
	text := combinedText(listing)
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrNoMatch
	}

	source, err := m.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("embedding source listing: %w", err)
	}

	var matches []models.MatchResult
	now := time.Now().UTC()

	for _, c := range candidates {
		target, err := m.embedder.Embed(combinedText(c))
		if err != nil {
			return nil, fmt.Errorf("embedding candidate %s: %w", c.ID, err)
		}

		sim := cosineSimilarity(source, target)
		if sim < m.cfg.SimilarityThreshold {
			continue
		}

		overlap := titleOverlap(listing.Title, c.Title)
		matches = append(matches, models.MatchResult{
			SourceID:   listing.ID,
			TargetID:   c.ID,
			TargetASIN: c.ASIN,
			Method:     models.MatchMethodSemantic,
			Confidence: m.confidence(listing, c, sim, overlap),
			MatchedAt:  now,
			Semantic: &models.SemanticMatchDetail{
				Similarity:    sim,
				BrandMatch:    strings.EqualFold(listing.Brand, c.Brand),
				CategoryMatch: strings.EqualFold(listing.Category, c.Category),
				TitleOverlap:  overlap,
			},
		})
	}
	if len(matches) == 0 {
		return nil, models.ErrNoMatch
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Semantic.Similarity > matches[j].Semantic.Similarity
	})
	if len(matches) > 10 {
		matches = matches[:10]
	}
	return matches, nil
}

// confidence blends embedding similarity with lexical evidence. The sum of
// bonuses is capped at 0.99; this is a ranking heuristic, not a calibrated
// probability.
func (m *SemanticMatcher) confidence(a, b models.ProductListing, similarity, overlap float64) float64 {
	conf := similarity * 0.6

	brandA := strings.ToLower(a.Brand)
	brandB := strings.ToLower(b.Brand)
	if brandA != "" && brandB != "" {
		switch {
		case brandA == brandB:
			conf += 0.10
		case strings.Contains(brandA, brandB) || strings.Contains(brandB, brandA):
			conf += 0.05
		}
	}

	catA := strings.ToLower(a.Category)
	catB := strings.ToLower(b.Category)
	if catA != "" && catB != "" {
		switch {
		case catA == catB:
			conf += 0.10
		case strings.Contains(catA, catB) || strings.Contains(catB, catA):
			conf += 0.05
		}
	}

	conf += overlap * 0.15

	if conf > 0.99 {
		conf = 0.99
	}
	return conf
}

func combinedText(l models.ProductListing) string {
	parts := make([]string, 0, 3)
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	if l.Brand != "" {
		parts = append(parts, "Brand: "+l.Brand)
	}
	if l.Category != "" {
		parts = append(parts, "Category: "+l.Category)
	}
	return strings.Join(parts, " ")
}

func cosineSimilarity(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// titleOverlap is the Jaccard similarity of the two titles' word sets, with
// short and stop words removed.
func titleOverlap(a, b string) float64 {
	setA := overlapWords(a)
	setB := overlapWords(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func overlapWords(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if len(w) <= 2 {
			continue
		}
		if _, ok := overlapStopWords[w]; ok {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
