package answer

import (
	"context"

	"github.com/mindfit/coachd/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Completer generates the final answer text from the assembled prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (domain.CompletionResult, error)
}

// Retriever ranks stored passages against the query.
type Retriever interface {
	Retrieve(queryText string, queryVec []float32) ([]domain.ScoredPassage, error)
}
