// Package embeddings defines the text-embedding capability used by the
// semantic similarity strategy.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding indicates an embedding operation failed. The dedup engine
// treats this as a signal to fall back to lexical similarity.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
