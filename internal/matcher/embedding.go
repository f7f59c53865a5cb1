package matcher

import (
	"hash/fnv"
	"math"
	"strings"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// Embedder turns listing text into a fixed-size vector. Implementations are
// constructed once at startup and must be safe for concurrent use.
type Embedder interface {
	Embed(text string) ([]float64, error)
	Dim() int
}

// HashingEmbedder is a deterministic feature-hashing embedder: each token is
// hashed into one of Dim buckets with a +-1 sign, token counts accumulate, and
// the result is L2-normalized. It needs no model artifacts and produces
// identical vectors for identical text, which keeps semantic matching
// reproducible across processes. A trained sentence-encoder behind the same
// interface is a drop-in upgrade.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) (*HashingEmbedder, error) {
	if dim <= 0 {
		return nil, models.ErrInvalidInput
	}
	return &HashingEmbedder{dim: dim}, nil
}

func (e *HashingEmbedder) Dim() int {
	return e.dim
}

func (e *HashingEmbedder) Embed(text string) ([]float64, error) {
	vec := make([]float64, e.dim)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dim))
		sign := 1.0
		if (sum>>63)&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
