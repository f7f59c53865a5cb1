package matcher

import (
	"regexp"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)

	modelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b([A-Z]{1,3}\d{3,6}[A-Z]*)\b`), // RTX3080, MX570
		regexp.MustCompile(`\b(\d{3,4}[A-Z]{1,3})\b`),       // 3080TI
		regexp.MustCompile(`\b([A-Z]+\s?\d+[A-Z]*)\b`),      // RX 6700XT
	}

	capacityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s?(GB|TB|MB)`),
		regexp.MustCompile(`(?i)(\d+)\s?(inch|"|inches)`),
		regexp.MustCompile(`(?i)(\d+)\s?(W|watt|watts)`),
	}

	stopWords = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
		"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
		"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "was": {},
		"are": {}, "were": {}, "be": {}, "been": {}, "being": {},
		"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
		"will": {}, "would": {}, "should": {}, "could": {}, "can": {},
		"may": {}, "might": {}, "must": {},
	}

	// Retail listings frequently spell the same manufacturer differently.
	brandAliases = map[string][]string{
		"hp":      {"hewlett packard", "hewlett-packard"},
		"asus":    {"asustek"},
		"msi":     {"micro-star"},
		"lg":      {"lg electronics"},
		"samsung": {"samsung electronics"},
	}
)

// FuzzyMatcher scores candidate pairs on normalized title and brand text.
// All scores are on a 0-100 scale.
type FuzzyMatcher struct {
	cfg config.MatcherConfig
}

func NewFuzzyMatcher(cfg config.MatcherConfig) *FuzzyMatcher {
	return &FuzzyMatcher{cfg: cfg}
}

func (m *FuzzyMatcher) Name() models.MatchMethod {
	return models.MatchMethodFuzzy
}

// Match scores every candidate and returns the one with the highest combined
// score that clears all three thresholds. Ties keep the first-seen candidate.
func (m *FuzzyMatcher) Match(listing models.ProductListing, candidates []models.ProductListing) (*models.MatchResult, error) {
	var (
		best      *models.MatchResult
		bestScore float64
	)

	for _, c := range candidates {
		titleScore := m.TitleScore(listing.Title, c.Title)
		brandScore := m.BrandScore(listing.Brand, c.Brand)
		combined := titleScore*m.cfg.TitleWeight + brandScore*m.cfg.BrandWeight

		if titleScore < m.cfg.TitleThreshold ||
			brandScore < m.cfg.BrandThreshold ||
			combined < m.cfg.CombinedThreshold {
			continue
		}
		if combined <= bestScore {
			continue
		}

		bestScore = combined
		confidence := combined / 100
		if confidence > 0.99 {
			confidence = 0.99
		}
		best = &models.MatchResult{
			SourceID:   listing.ID,
			TargetID:   c.ID,
			TargetASIN: c.ASIN,
			Method:     models.MatchMethodFuzzy,
			Confidence: confidence,
			MatchedAt:  time.Now().UTC(),
			Fuzzy: &models.FuzzyMatchDetail{
				TitleScore:    titleScore,
				BrandScore:    brandScore,
				CombinedScore: combined,
			},
		}
	}

	if best == nil {
		return nil, models.ErrNoMatch
	}
	return best, nil
}

// TitleScore takes the best of the token-sort, token-set and partial ratios
// over normalized titles, then rewards matching model numbers and capacity
// tokens. Capped at 100.
func (m *FuzzyMatcher) TitleScore(a, b string) float64 {
	normA := normalizeText(a)
	normB := normalizeText(b)

	base := maxInt(
		fuzzy.TokenSortRatio(normA, normB),
		fuzzy.TokenSetRatio(normA, normB),
		fuzzy.PartialRatio(normA, normB),
	)

	modelA, capA := extractModelInfo(a)
	modelB, capB := extractModelInfo(b)

	bonus := 0
	if modelA != "" && modelB != "" {
		if strings.EqualFold(modelA, modelB) {
			bonus += 20
		} else if fuzzy.Ratio(modelA, modelB) > 80 {
			bonus += 10
		}
	}
	if capA != "" && capA == capB {
		bonus += 10
	}

	score := float64(base + bonus)
	if score > 100 {
		score = 100
	}
	return score
}

// BrandScore is 100 for normalized-equal brands, 95 for a known alias pair,
// otherwise the plain fuzzy ratio. Missing brands score 0.
func (m *FuzzyMatcher) BrandScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	normA := normalizeText(a)
	normB := normalizeText(b)

	if normA == normB {
		return 100
	}
	if isBrandAlias(normA, normB) {
		return 95
	}
	return float64(fuzzy.Ratio(normA, normB))
}

func isBrandAlias(a, b string) bool {
	for brand, aliases := range brandAliases {
		for _, alias := range aliases {
			if (a == brand && b == alias) || (b == brand && a == alias) {
				return true
			}
		}
	}
	return false
}

// normalizeText lowercases, strips punctuation and stop words, and collapses
// whitespace.
func normalizeText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = nonWordRe.ReplaceAllString(text, " ")
	text = multiSpaceRe.ReplaceAllString(text, " ")

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, ok := stopWords[w]; !ok {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// extractModelInfo pulls the first model-number token and the first
// capacity/size token out of a raw title.
func extractModelInfo(title string) (model, capacity string) {
	upper := strings.ToUpper(title)
	for _, re := range modelPatterns {
		if m := re.FindStringSubmatch(upper); m != nil {
			model = m[1]
			break
		}
	}
	for _, re := range capacityPatterns {
		if m := re.FindStringSubmatch(title); m != nil {
			capacity = m[1] + strings.ToUpper(m[2])
			break
		}
	}
	return model, capacity
}

func maxInt(values ...int) int {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
