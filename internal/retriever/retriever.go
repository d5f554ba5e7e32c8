// Package retriever ranks stored passages against a query embedding.
package retriever

import (
	"fmt"
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mindfit/coachd/internal/domain"
	"github.com/mindfit/coachd/internal/passage"
)

// DefaultTopK is the number of passages returned per retrieval.
const DefaultTopK = 3

// Retriever scores the full passage set with cosine similarity and returns
// the top K. The dataset is small and static, so a linear scan over the
// in-memory store is the whole index.
type Retriever struct {
	store       *passage.Store
	topK        int
	filter      *UnitFilter
	filterTotal *prometheus.CounterVec
}

// New creates a Retriever over the given store. Non-positive topK uses
// DefaultTopK.
func New(store *passage.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, topK: topK}
}

// WithFilter installs an optional keyword pre-filter. filterTotal is a
// counter vec with label "result" ("applied"/"fallback"/"none"), passed
// explicitly; nil disables counting.
func (r *Retriever) WithFilter(f *UnitFilter, filterTotal *prometheus.CounterVec) *Retriever {
	r.filter = f
	r.filterTotal = filterTotal
	return r
}

// Retrieve ranks passages against the query embedding and returns the top K
// in non-increasing score order. Ties keep insertion order. The returned
// passages share the store's vectors and must be treated as read-only.
func (r *Retriever) Retrieve(queryText string, queryVec []float32) ([]domain.ScoredPassage, error) {
	if err := r.store.Ready(); err != nil {
		return nil, err
	}

	all := r.store.Passages()
	if len(all) == 0 {
		return nil, fmt.Errorf("store is empty: %w", domain.ErrNoPassagesAvailable)
	}

	candidates := r.applyFilter(queryText, all)

	scored := make([]domain.ScoredPassage, len(candidates))
	for i, p := range candidates {
		scored[i] = domain.ScoredPassage{
			Passage: p,
			Score:   cosine(queryVec, p.Embedding),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	return scored, nil
}

// applyFilter restricts candidates to passages matching the unit marker
// detected in the query. Zero matches fall back to the full set; the filter
// must never empty a non-empty store.
func (r *Retriever) applyFilter(queryText string, all []domain.Passage) []domain.Passage {
	if r.filter == nil {
		return all
	}

	marker, ok := r.filter.Marker(queryText)
	if !ok {
		r.incFilter("none")
		return all
	}

	var filtered []domain.Passage
	for _, p := range all {
		if r.filter.Contains(p.Text, marker) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		r.incFilter("fallback")
		return all
	}

	r.incFilter("applied")
	return filtered
}

func (r *Retriever) incFilter(result string) {
	if r.filterTotal != nil {
		r.filterTotal.WithLabelValues(result).Inc()
	}
}

// cosine computes dot(a,b) / (|a| * |b|) with float64 accumulation.
// Mismatched dimensions or a zero norm yield 0 rather than dividing by zero.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, aNorm, bNorm float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		aNorm += av * av
		bNorm += bv * bv
	}
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(aNorm) * math.Sqrt(bNorm))
}
