package retriever

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/mindfit/coachd/internal/domain"
	"github.com/mindfit/coachd/internal/passage"
)

func storeOf(passages ...domain.Passage) *passage.Store {
	return passage.FromPassages(passages)
}

func TestCosine_Bounds(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{-1, -1, -1},
		{0.5, 0.25, -0.75},
		{3, 4, 0},
	}
	for i, a := range vectors {
		for j, b := range vectors {
			got := cosine(a, b)
			if got < -1.0000001 || got > 1.0000001 {
				t.Errorf("cosine(v%d, v%d) = %v, outside [-1, 1]", i, j, got)
			}
		}
	}
}

func TestCosine_SelfSimilarity(t *testing.T) {
	v := []float32{0.3, -0.7, 1.2, 0.01}
	if got := cosine(v, v); math.Abs(got-1) > 1e-9 {
		t.Errorf("cosine(v, v) = %v, want 1", got)
	}
}

func TestCosine_ZeroNorm(t *testing.T) {
	if got := cosine([]float32{0, 0, 0}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("zero-norm similarity = %v, want 0", got)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	if got := cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("mismatched-dimension similarity = %v, want 0", got)
	}
}

func TestCosine_OppositeVectors(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	if got := cosine(a, b); math.Abs(got+1) > 1e-9 {
		t.Errorf("cosine(a, -a) = %v, want -1", got)
	}
}

func TestRetrieve_RankingOrder(t *testing.T) {
	store := storeOf(
		domain.Passage{Text: "far", Embedding: []float32{0, 1}},
		domain.Passage{Text: "near", Embedding: []float32{1, 0.1}},
		domain.Passage{Text: "exact", Embedding: []float32{1, 0}},
	)
	r := New(store, 3)

	got, err := r.Retrieve("anything", []float32{1, 0})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
	if got[0].Text != "exact" {
		t.Errorf("best match = %q, want %q", got[0].Text, "exact")
	}
}

func TestRetrieve_KLargerThanCandidates(t *testing.T) {
	store := storeOf(
		domain.Passage{Text: "only one", Embedding: []float32{1, 0}},
	)
	r := New(store, 5)

	got, err := r.Retrieve("q", []float32{1, 0})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly the candidate count, got %d", len(got))
	}
}

func TestRetrieve_StableTies(t *testing.T) {
	// Identical embeddings score identically; insertion order must hold.
	store := storeOf(
		domain.Passage{Text: "first", Embedding: []float32{1, 0}},
		domain.Passage{Text: "second", Embedding: []float32{1, 0}},
		domain.Passage{Text: "third", Embedding: []float32{1, 0}},
	)
	r := New(store, 3)

	got, err := r.Retrieve("q", []float32{1, 0})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, sp := range got {
		if sp.Text != want[i] {
			t.Errorf("position %d = %q, want %q", i, sp.Text, want[i])
		}
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	r := New(storeOf(), 3)
	_, err := r.Retrieve("q", []float32{1})
	if !errors.Is(err, domain.ErrNoPassagesAvailable) {
		t.Fatalf("expected ErrNoPassagesAvailable, got %v", err)
	}
}

func TestRetrieve_DegradedStore(t *testing.T) {
	r := New(passage.Unavailable(errors.New("boom")), 3)
	_, err := r.Retrieve("q", []float32{1})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRetrieve_UnitFilterWins(t *testing.T) {
	// "Week 3:" passage ranks last without the filter but must come first
	// once the query names week 3.
	queryVec := []float32{1, 0}
	store := storeOf(
		domain.Passage{Text: "general advice on focus", Embedding: []float32{1, 0}},
		domain.Passage{Text: "more general advice", Embedding: []float32{0.9, 0.1}},
		domain.Passage{Text: "Week 3: mental strength drills", Embedding: []float32{0, 1}},
	)
	r := New(store, 3).WithFilter(NewUnitFilter("Week"), nil)

	got, err := r.Retrieve("How can I build mental strength in week 3?", queryVec)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the week 3 passage, got %d results", len(got))
	}
	if got[0].Text != "Week 3: mental strength drills" {
		t.Errorf("unexpected passage: %q", got[0].Text)
	}
}

func TestRetrieve_FilterFallbackMatchesUnfiltered(t *testing.T) {
	queryVec := []float32{0.7, 0.3}
	store := storeOf(
		domain.Passage{Text: "passage alpha", Embedding: []float32{1, 0}},
		domain.Passage{Text: "passage beta", Embedding: []float32{0, 1}},
	)

	filtered := New(store, 2).WithFilter(NewUnitFilter("Week"), nil)
	unfiltered := New(store, 2)

	// Week 9 matches nothing; the filter must fall back to the full set.
	gotFiltered, err := filtered.Retrieve("what about week 9?", queryVec)
	if err != nil {
		t.Fatalf("filtered Retrieve: %v", err)
	}
	gotPlain, err := unfiltered.Retrieve("what about week 9?", queryVec)
	if err != nil {
		t.Fatalf("unfiltered Retrieve: %v", err)
	}
	if !reflect.DeepEqual(gotFiltered, gotPlain) {
		t.Errorf("fallback result differs from unfiltered:\nfiltered:   %v\nunfiltered: %v", gotFiltered, gotPlain)
	}
}

func TestUnitFilter_Marker(t *testing.T) {
	f := NewUnitFilter("Week")

	tests := []struct {
		query  string
		marker string
		ok     bool
	}{
		{"How do I prepare for week 7?", "Week 7:", true},
		{"WEEK 12 summary please", "Week 12:", true},
		{"week07 drills", "Week 7:", true},
		{"week3 drills", "Week 3:", true},
		{"tell me about weekends", "", false},
		{"no unit here", "", false},
	}

	for _, tt := range tests {
		marker, ok := f.Marker(tt.query)
		if ok != tt.ok {
			t.Errorf("Marker(%q) ok = %v, want %v", tt.query, ok, tt.ok)
			continue
		}
		if ok && marker != tt.marker {
			t.Errorf("Marker(%q) = %q, want %q", tt.query, marker, tt.marker)
		}
	}
}
