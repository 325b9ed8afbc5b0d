package llm

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/vectra-io/vectra/internal/core"
)

// FakeEmbedder produces deterministic pseudo-random unit vectors seeded by
// the input text. Used in testing mode so the service runs without a real
// model: the same text always maps to the same vector.
type FakeEmbedder struct {
	dim int
}

func NewFakeEmbedder(dim int) *FakeEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &FakeEmbedder{dim: dim}
}

func (f *FakeEmbedder) EmbedTexts(_ context.Context, texts []string, dim int) ([][]float32, error) {
	if dim <= 0 {
		dim = f.dim
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.embedOne(t, dim)
	}
	return out, nil
}

func (f *FakeEmbedder) embedOne(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

var _ core.EmbeddingProvider = (*FakeEmbedder)(nil)
