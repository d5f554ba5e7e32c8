// Package answer composes retrieval-augmented answers: embed the query,
// retrieve the most relevant passages, and feed them to the completion model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindfit/coachd/internal/domain"
	"github.com/mindfit/coachd/internal/logger"
)

// contextSeparator joins retrieved passages inside the prompt. A full line of
// dashes keeps passage boundaries unambiguous for the model.
const contextSeparator = "\n---\n"

// promptTemplate frames the coaching role, the knowledge context, and the
// literal user question.
const promptTemplate = "You are a helpful mental fitness coach. " +
	"Use the following knowledge base to answer the user's question.\n\n" +
	"Knowledge Base:\n%s\n\nQuestion: %s\nAnswer:"

// ErrEmptyQuery rejects blank questions before any external call is made.
var ErrEmptyQuery = errors.New("query is empty")

// Answer is the composed result: the generated text plus the passages that
// grounded it, for observability.
type Answer struct {
	Text    string
	Sources []domain.ScoredPassage
}

// Service is the answer composition pipeline. It is stateless per call;
// conversation history, if any, is the caller's concern.
type Service struct {
	embed    Embedder
	retrieve Retriever
	complete Completer
}

// New creates an answer service.
func New(embed Embedder, retrieve Retriever, complete Completer) *Service {
	return &Service{embed: embed, retrieve: retrieve, complete: complete}
}

// Ask runs the pipeline for one question. Retrieval always completes before
// the completion call is issued; the context block must be fully assembled
// first.
func (s *Service) Ask(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}

	log := logger.FromContext(ctx)

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return Answer{}, fmt.Errorf("vectorize query: %w", err)
	}

	sources, err := s.retrieve.Retrieve(query, embResult.Embedding)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve passages: %w", err)
	}

	contextBlock := assembleContext(sources)
	log.Debug("context assembled",
		zap.Int("passages", len(sources)),
		zap.Float64("top_score", sources[0].Score),
	)

	prompt := fmt.Sprintf(promptTemplate, contextBlock, query)

	completion, err := s.complete.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return Answer{Text: completion.Text, Sources: sources}, nil
}

// assembleContext concatenates passage texts in rank order. Truncation is the
// retriever's K; the caller picks K small enough for the model's input limit.
func assembleContext(sources []domain.ScoredPassage) string {
	texts := make([]string, len(sources))
	for i, sp := range sources {
		texts[i] = sp.Text
	}
	return strings.Join(texts, contextSeparator)
}
