package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// Mock is a deterministic test double: the same text always produces the
// same unit vector, so index rebuilds are byte-for-byte reproducible.
// Setting Disabled makes Embed return (nil, nil), simulating an absent
// provider.
type Mock struct {
	Dimensions int
	Disabled   bool
	// EmbedFunc overrides the default behaviour when set.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	calls int
}

// NewMock creates a deterministic mock with 32-dimensional vectors.
func NewMock() *Mock {
	return &Mock{Dimensions: 32}
}

// Embed returns a deterministic unit vector derived from an FNV hash of
// the text.
func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	if m.Disabled {
		return nil, nil
	}
	return deterministicVector(text, m.Dimensions), nil
}

// ModelName identifies the mock model.
func (m *Mock) ModelName() string {
	return "mock-deterministic"
}

// Calls returns how many times Embed was invoked.
func (m *Mock) Calls() int {
	return m.calls
}

// deterministicVector seeds an LCG from the FNV hash of text and
// normalises the result to unit length.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%2000)/1000.0 - 1.0
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq > 0 {
		inv := float32(1.0 / math.Sqrt(sumSq))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
