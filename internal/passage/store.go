// Package passage holds the in-memory passage store and the offline build
// pipeline that produces it.
package passage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mindfit/coachd/internal/domain"
)

// Store is the read-only set of passages loaded at startup. It is never
// mutated once constructed; concurrent readers need no locking.
type Store struct {
	passages []domain.Passage
	loadErr  error
}

// Load reads the persisted passage file and deserializes it. The file is a
// flat JSON array of {text, embedding} records, written by the offline build.
// A missing or malformed file, or inconsistent embedding dimensionality,
// yields domain.ErrStoreUnavailable.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read passage file %s: %v: %w", path, err, domain.ErrStoreUnavailable)
	}

	var passages []domain.Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return nil, fmt.Errorf("parse passage file %s: %v: %w", path, err, domain.ErrStoreUnavailable)
	}

	if err := validate(passages); err != nil {
		return nil, fmt.Errorf("passage file %s: %v: %w", path, err, domain.ErrStoreUnavailable)
	}

	return &Store{passages: passages}, nil
}

// Unavailable creates a degraded store that remembers why loading failed.
// The serving process starts with it so health checks can report the cause
// while retrieval requests fail fast.
func Unavailable(err error) *Store {
	return &Store{loadErr: err}
}

// FromPassages wraps an already-built passage set. Used by the offline build
// and by tests.
func FromPassages(passages []domain.Passage) *Store {
	return &Store{passages: passages}
}

// Ready reports whether the store loaded successfully.
func (s *Store) Ready() error {
	if s.loadErr != nil {
		return fmt.Errorf("%v: %w", s.loadErr, domain.ErrStoreUnavailable)
	}
	return nil
}

// Passages returns the full passage set in insertion order. The returned
// slice and the vectors it holds are shared and must not be mutated.
func (s *Store) Passages() []domain.Passage {
	return s.passages
}

// Len returns the number of loaded passages.
func (s *Store) Len() int {
	return len(s.passages)
}

// Save persists the passage set as a flat JSON array, matching the format
// Load consumes.
func Save(path string, passages []domain.Passage) error {
	data, err := json.MarshalIndent(passages, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal passages: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write passage file %s: %w", path, err)
	}
	return nil
}

// validate checks that every record has text and that all embeddings share
// one dimensionality.
func validate(passages []domain.Passage) error {
	dim := 0
	for i, p := range passages {
		if p.Text == "" {
			return fmt.Errorf("record %d has empty text", i)
		}
		if len(p.Embedding) == 0 {
			return fmt.Errorf("record %d has no embedding", i)
		}
		if dim == 0 {
			dim = len(p.Embedding)
			continue
		}
		if len(p.Embedding) != dim {
			return fmt.Errorf("record %d has dimension %d, expected %d", i, len(p.Embedding), dim)
		}
	}
	return nil
}
