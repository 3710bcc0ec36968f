// Package embed maps chunk and query text to fixed-dimension unit vectors.
//
// Document-side text is prefixed with "passage: " and query-side text with
// "query: " before encoding. The e5 model family trains the two embedding
// spaces against these exact markers; changing them silently degrades
// retrieval quality without raising an error, so they are process-wide
// constants.
package embed

import (
	"context"
	"math"
)

const (
	// PassagePrefix marks document-side text. Must match the model's
	// training convention byte-for-byte.
	PassagePrefix = "passage: "
	// QueryPrefix marks query-side text.
	QueryPrefix = "query: "

	// DefaultModel is the default embedding model identifier.
	DefaultModel = "intfloat/multilingual-e5-small"
	// DefaultDimension is DefaultModel's output dimensionality.
	DefaultDimension = 384
	// DefaultBatchSize bounds texts per upstream request.
	DefaultBatchSize = 32
	// DefaultConcurrency bounds in-flight embedding requests.
	DefaultConcurrency = 4
	// DefaultRateLimit caps embedding requests per second.
	DefaultRateLimit = 32
)

// Encoder produces unit-normalized embedding vectors. Implementations must
// be safe for concurrent use once constructed.
type Encoder interface {
	// Encode embeds document-side texts, one vector per input, in order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// EncodeQuery embeds a single query-side text.
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	// Model returns the model identifier the encoder serves.
	Model() string
	// Dimension returns the vector dimensionality.
	Dimension() int
}

// Normalize scales v to unit L2 norm in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Dot returns the dot product of two vectors. For unit-normalized inputs
// this is their cosine similarity.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
