package models

import "time"

type MatchMethod string

const (
	MatchMethodEAN      MatchMethod = "ean"
	MatchMethodFuzzy    MatchMethod = "fuzzy"
	MatchMethodSemantic MatchMethod = "semantic"
)

// MatchResult links a source-marketplace listing to a target-marketplace
// listing. Exactly one of the detail payloads is set, according to Method.
type MatchResult struct {
	SourceID   string      `json:"source_id"`
	TargetID   string      `json:"target_id"`
	TargetASIN string      `json:"target_asin,omitempty"`
	Method     MatchMethod `json:"method"`
	Confidence float64     `json:"confidence"`
	MatchedAt  time.Time   `json:"matched_at"`

	EAN      *EANMatchDetail      `json:"ean_detail,omitempty"`
	Fuzzy    *FuzzyMatchDetail    `json:"fuzzy_detail,omitempty"`
	Semantic *SemanticMatchDetail `json:"semantic_detail,omitempty"`
}

type EANMatchDetail struct {
	NormalizedEAN string `json:"normalized_ean"`
}

type FuzzyMatchDetail struct {
	TitleScore    float64 `json:"title_score"`
	BrandScore    float64 `json:"brand_score"`
	CombinedScore float64 `json:"combined_score"`
}

type SemanticMatchDetail struct {
	Similarity    float64 `json:"similarity"`
	BrandMatch    bool    `json:"brand_match"`
	CategoryMatch bool    `json:"category_match"`
	TitleOverlap  float64 `json:"title_overlap"`
}
