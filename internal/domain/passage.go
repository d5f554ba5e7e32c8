package domain

// KeyPrefix namespaces every key coachd writes to the cache store.
const KeyPrefix = "coachd:"

// Passage is a bounded unit of source text with its precomputed embedding.
// Passages are created once by the offline build and are immutable afterwards;
// the serving path only ever reads them.
type Passage struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// ScoredPassage is a Passage plus its cosine similarity to one query
// embedding. It exists only within a single retrieval call and is never
// persisted. Callers must treat the embedded vector as read-only.
type ScoredPassage struct {
	Passage
	Score float64
}
