package matcher

import (
	"strings"
	"time"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// EANMatcher links listings by exact barcode identity. A validated EAN is a
// near-unique product key, so matches carry a fixed 0.95 confidence.
type EANMatcher struct{}

func NewEANMatcher() *EANMatcher {
	return &EANMatcher{}
}

func (m *EANMatcher) Name() models.MatchMethod {
	return models.MatchMethodEAN
}

func (m *EANMatcher) Match(listing models.ProductListing, candidates []models.ProductListing) (*models.MatchResult, error) {
	ean, ok := NormalizeEAN(listing.EAN)
	if !ok {
		return nil, models.ErrNoMatch
	}

	for _, c := range candidates {
		candidateEAN, ok := NormalizeEAN(c.EAN)
		if !ok || candidateEAN != ean {
			continue
		}
		return &models.MatchResult{
			SourceID:   listing.ID,
			TargetID:   c.ID,
			TargetASIN: c.ASIN,
			Method:     models.MatchMethodEAN,
			Confidence: 0.95,
			MatchedAt:  time.Now().UTC(),
			EAN:        &models.EANMatchDetail{NormalizedEAN: ean},
		}, nil
	}
	return nil, models.ErrNoMatch
}

// NormalizeEAN strips separators, lifts UPC-A codes to EAN-13 by prepending a
// zero, and validates the checksum. Returns false for anything that is not a
// well-formed EAN-8, EAN-13 or UPC-A code.
func NormalizeEAN(raw string) (string, bool) {
	ean := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	ean = strings.ReplaceAll(ean, "-", "")
	if ean == "" {
		return "", false
	}
	for _, r := range ean {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	// UPC-A is EAN-13 with an implicit leading zero.
	if len(ean) == 12 {
		ean = "0" + ean
	}

	if len(ean) != 8 && len(ean) != 13 {
		return "", false
	}
	if !validChecksum(ean) {
		return "", false
	}
	return ean, true
}

// validChecksum verifies the GS1 check digit: alternating 1/3 weights over
// the payload digits, check digit brings the sum to a multiple of 10.
func validChecksum(ean string) bool {
	n := len(ean)
	sum := 0
	for i := 0; i < n-1; i++ {
		digit := int(ean[i] - '0')
		// For even-length codes the odd positions carry weight 3, for
		// EAN-13 the even positions do.
		if (n-1-i)%2 == 1 {
			sum += digit * 3
		} else {
			sum += digit
		}
	}
	check := (10 - sum%10) % 10
	return check == int(ean[n-1]-'0')
}
