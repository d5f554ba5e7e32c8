package passage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mindfit/coachd/internal/domain"
)

// DefaultThrottle is the pause between consecutive embedding calls during a
// build. This is a deliberate rate-limit courtesy to the provider, not a
// performance knob.
const DefaultThrottle = 150 * time.Millisecond

// Segmenter splits one raw document into passages.
type Segmenter interface {
	Segment(text string) []string
}

// Builder runs the offline pipeline: segment each document, embed each chunk
// sequentially, collect successes. Chunks whose embedding fails are logged
// and dropped; partial knowledge is acceptable for an offline corpus.
type Builder struct {
	segmenter Segmenter
	embedder  domain.Embedder
	throttle  time.Duration
	logger    *zap.Logger
}

// NewBuilder creates a build pipeline.
func NewBuilder(segmenter Segmenter, embedder domain.Embedder, logger *zap.Logger) *Builder {
	return &Builder{
		segmenter: segmenter,
		embedder:  embedder,
		throttle:  DefaultThrottle,
		logger:    logger,
	}
}

// WithThrottle overrides the pause between embedding calls.
func (b *Builder) WithThrottle(d time.Duration) *Builder {
	b.throttle = d
	return b
}

// Build segments every document and embeds the resulting chunks in order.
// Documents that segment to nothing are logged and skipped. Returns an error
// only when the context is cancelled or no document produced any chunk.
func (b *Builder) Build(ctx context.Context, documents []string) ([]domain.Passage, error) {
	var chunks []string
	for i, doc := range documents {
		segs := b.segmenter.Segment(doc)
		if len(segs) == 0 {
			b.logger.Warn("document produced no passages, skipping",
				zap.Int("document", i),
				zap.Error(domain.ErrSegmentationEmpty),
			)
			continue
		}
		b.logger.Info("document segmented",
			zap.Int("document", i),
			zap.Int("chunks", len(segs)),
		)
		chunks = append(chunks, segs...)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to embed: %w", domain.ErrSegmentationEmpty)
	}

	passages := make([]domain.Passage, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			if err := sleep(ctx, b.throttle); err != nil {
				return nil, err
			}
		}

		res, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("build cancelled: %w", ctx.Err())
			}
			b.logger.Warn("failed to embed chunk, dropping",
				zap.Int("chunk", i+1),
				zap.Int("total", len(chunks)),
				zap.String("preview", preview(chunk)),
				zap.Error(err),
			)
			continue
		}

		b.logger.Debug("chunk embedded",
			zap.Int("chunk", i+1),
			zap.Int("total", len(chunks)),
			zap.Int("tokens", res.TotalTokens),
			zap.String("preview", preview(chunk)),
		)
		passages = append(passages, domain.Passage{Text: chunk, Embedding: res.Embedding})
	}

	return passages, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("build cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

func preview(s string) string {
	const n = 80
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
