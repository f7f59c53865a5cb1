package matcher

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

type SemanticMatcherTestSuite struct {
	suite.Suite
	m        *SemanticMatcher
	embedder *HashingEmbedder
}

func (s *SemanticMatcherTestSuite) SetupTest() {
	embedder, err := NewHashingEmbedder(384)
	s.Require().NoError(err)
	s.embedder = embedder
	s.m = NewSemanticMatcher(embedder, config.Default().Matcher)
}

func TestSemanticMatcherTestSuite(t *testing.T) {
	suite.Run(t, new(SemanticMatcherTestSuite))
}

func (s *SemanticMatcherTestSuite) TestEmbedder_Deterministic() {
	a, err := s.embedder.Embed("Sony WH-1000XM5 Headphones")
	s.NoError(err)
	b, err := s.embedder.Embed("Sony WH-1000XM5 Headphones")
	s.NoError(err)
	s.Equal(a, b)
	s.Len(a, 384)
}

func (s *SemanticMatcherTestSuite) TestEmbedder_UnitNorm() {
	v, err := s.embedder.Embed("Bosch Serie 4 Washing Machine")
	s.NoError(err)

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	s.InDelta(1.0, norm, 1e-9)
}

func (s *SemanticMatcherTestSuite) TestCosineSimilarity_IdenticalText() {
	a, _ := s.embedder.Embed("identical product text")
	b, _ := s.embedder.Embed("identical product text")
	s.InDelta(1.0, cosineSimilarity(a, b), 1e-9)
}

func (s *SemanticMatcherTestSuite) TestMatch_IdenticalListing() {
	listing := models.ProductListing{
		ID:       "mm-1",
		Title:    "Dyson V15 Detect Absolute Cordless Vacuum",
		Brand:    "Dyson",
		Category: "Home",
	}
	candidates := []models.ProductListing{
		{
			ID:       "az-1",
			ASIN:     "B09BVQTJJS",
			Title:    listing.Title,
			Brand:    listing.Brand,
			Category: listing.Category,
		},
	}

	result, err := s.m.Match(listing, candidates)
	s.NoError(err)
	s.Equal("az-1", result.TargetID)
	s.Equal(models.MatchMethodSemantic, result.Method)
	// similarity 1.0: 0.6 + brand 0.10 + category 0.10 + overlap 0.15
	s.InDelta(0.95, result.Confidence, 1e-9)
	s.InDelta(1.0, result.Semantic.Similarity, 1e-9)
	s.True(result.Semantic.BrandMatch)
	s.True(result.Semantic.CategoryMatch)
}

func (s *SemanticMatcherTestSuite) TestMatch_RejectsDissimilar() {
	listing := models.ProductListing{
		ID:    "mm-1",
		Title: "Dyson V15 Detect Absolute Cordless Vacuum",
		Brand: "Dyson",
	}
	candidates := []models.ProductListing{
		{ID: "az-1", Title: "Kingston FURY Beast DDR5 RAM Module", Brand: "Kingston"},
	}

	_, err := s.m.Match(listing, candidates)
	s.ErrorIs(err, models.ErrNoMatch)
}

func (s *SemanticMatcherTestSuite) TestMatch_EmptyText() {
	_, err := s.m.Match(models.ProductListing{ID: "mm-1"}, []models.ProductListing{{ID: "az-1", Title: "x"}})
	s.ErrorIs(err, models.ErrNoMatch)
}

func (s *SemanticMatcherTestSuite) TestTopMatches_SortedAndCapped() {
	listing := models.ProductListing{
		ID:       "mm-1",
		Title:    "Apple iPad Air 5th Generation 64GB WiFi Blue",
		Brand:    "Apple",
		Category: "Electronics",
	}

	// Twelve near-identical candidates; all clear the similarity bar.
	var candidates []models.ProductListing
	for i := 0; i < 12; i++ {
		candidates = append(candidates, models.ProductListing{
			ID:       string(rune('a' + i)),
			Title:    listing.Title,
			Brand:    listing.Brand,
			Category: listing.Category,
		})
	}

	matches, err := s.m.TopMatches(listing, candidates)
	s.NoError(err)
	s.Len(matches, 10)
	for i := 1; i < len(matches); i++ {
		s.GreaterOrEqual(matches[i-1].Semantic.Similarity, matches[i].Semantic.Similarity)
	}
}

func (s *SemanticMatcherTestSuite) TestTitleOverlap() {
	s.Equal(1.0, titleOverlap("Sony Wireless Headphones", "sony wireless headphones"))
	s.Equal(0.0, titleOverlap("", "anything"))
	s.Greater(titleOverlap("Sony Wireless Headphones Black", "Sony Wireless Headphones"), 0.5)
}
