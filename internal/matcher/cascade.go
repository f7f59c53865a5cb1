package matcher

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// Strategy is one stage of the identity cascade. A stage that finds nothing
// actionable returns ErrNoMatch; any other error is a real failure.
type Strategy interface {
	Name() models.MatchMethod
	Match(listing models.ProductListing, candidates []models.ProductListing) (*models.MatchResult, error)
}

// Cascade runs its strategies in order and stops at the first match. Stages
// are ordered cheapest and most certain first so that the embedding stage
// only runs for listings the lexical stages could not resolve.
type Cascade struct {
	strategies []Strategy
	logger     *logrus.Logger
}

func NewCascade(cfg config.MatcherConfig, embedder Embedder, log *logrus.Logger) *Cascade {
	return &Cascade{
		strategies: []Strategy{
			NewEANMatcher(),
			NewFuzzyMatcher(cfg),
			NewSemanticMatcher(embedder, cfg),
		},
		logger: log,
	}
}

// NewCascadeWith builds a cascade from an explicit strategy list, in order.
func NewCascadeWith(log *logrus.Logger, strategies ...Strategy) *Cascade {
	return &Cascade{strategies: strategies, logger: log}
}

// Match resolves a listing against the candidate pool. An empty pool or a
// stage that finds nothing falls through to the next stage; only exhausting
// every stage yields ErrNoMatch.
func (c *Cascade) Match(listing models.ProductListing, candidates []models.ProductListing) (*models.MatchResult, error) {
	for _, strategy := range c.strategies {
		result, err := strategy.Match(listing, candidates)
		if err != nil {
			if errors.Is(err, models.ErrNoMatch) {
				continue
			}
			return nil, err
		}

		recordMatch(result.Method)
		c.logger.WithFields(logrus.Fields{
			"source_id":  result.SourceID,
			"target_id":  result.TargetID,
			"method":     result.Method,
			"confidence": result.Confidence,
		}).Debug("Listing matched")
		return result, nil
	}

	recordNoMatch()
	return nil, models.ErrNoMatch
}
