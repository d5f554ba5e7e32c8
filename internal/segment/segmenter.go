// Package segment converts raw course documents into bounded passages
// suitable for embedding.
package segment

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the fallback window size in words.
	DefaultChunkSize = 200
	// introMinWords is the minimum word count for marker-based passages,
	// including the leading text before the first marker.
	introMinWords = 10
	// windowMinWords is the minimum word count for fixed-size fallback windows.
	windowMinWords = 20
)

// structuralWords are generic filler terms stripped during cleaning.
var structuralWords = regexp.MustCompile(
	`(?i)\b(author|book|lesson|correspondence course|part [0-9]+|introduction|foreword)\b`,
)

var (
	blankLines = regexp.MustCompile(`\n{2,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]{2,}`)
)

// Segmenter splits cleaned text at structural markers of the form
// "<Label> <number>:" and falls back to fixed-size word windows when no
// marker passages result.
type Segmenter struct {
	chunkSize   int
	marker      *regexp.Regexp
	normalize   *regexp.Regexp
	boilerplate []*regexp.Regexp
}

// New creates a Segmenter with the given fallback window size in words.
// Non-positive values use DefaultChunkSize. The default marker label is
// "Week" ("Week 7:" style headers).
func New(chunkSize int) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	s := &Segmenter{chunkSize: chunkSize}
	return s.WithMarkerLabel("Week")
}

// WithMarkerLabel sets the structural header label. Headers are matched
// case-insensitively as "<label> <number>:".
func (s *Segmenter) WithMarkerLabel(label string) *Segmenter {
	quoted := regexp.QuoteMeta(label)
	s.marker = regexp.MustCompile(fmt.Sprintf(`(?i)%s \d+:`, quoted))
	s.normalize = regexp.MustCompile(fmt.Sprintf(`\s*((?i:%s) \d+:)`, quoted))
	return s
}

// WithBoilerplate adds literal phrases stripped during cleaning, matched
// case-insensitively (document titles, author names).
func (s *Segmenter) WithBoilerplate(phrases []string) *Segmenter {
	for _, p := range phrases {
		if p == "" {
			continue
		}
		s.boilerplate = append(s.boilerplate, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(p)))
	}
	return s
}

// Segment cleans the document and splits it into passages. Marker-based
// splitting wins when it produces at least one passage; otherwise the word
// sequence is sliced into consecutive windows of chunkSize words. Empty or
// whitespace-only input yields an empty slice.
func (s *Segmenter) Segment(text string) []string {
	cleaned := s.Clean(text)
	if cleaned == "" {
		return nil
	}

	if chunks := s.splitAtMarkers(cleaned); len(chunks) > 0 {
		return chunks
	}
	return s.splitFixed(cleaned)
}

// Clean strips boilerplate phrases and structural filler words, collapses
// blank-line and whitespace runs, and trims.
func (s *Segmenter) Clean(text string) string {
	for _, re := range s.boilerplate {
		text = re.ReplaceAllString(text, "")
	}
	text = structuralWords.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// splitAtMarkers splits at every marker occurrence, keeping each marker
// together with the content that follows it. The leading text before the
// first marker becomes a standalone passage when long enough.
func (s *Segmenter) splitAtMarkers(text string) []string {
	// Ensure every marker starts its own line so markers embedded
	// mid-sentence still anchor a passage boundary.
	text = s.normalize.ReplaceAllString(text, "\n$1")

	locs := s.marker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var chunks []string
	if intro := strings.TrimSpace(text[:locs[0][0]]); wordCount(intro) > introMinWords {
		chunks = append(chunks, intro)
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chunk := strings.TrimSpace(text[loc[0]:end])
		if wordCount(chunk) > introMinWords {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// splitFixed slices the word sequence into consecutive windows of chunkSize
// words, discarding trailing windows at or below the minimum size.
func (s *Segmenter) splitFixed(text string) []string {
	words := strings.Fields(text)
	var chunks []string
	for i := 0; i < len(words); i += s.chunkSize {
		end := i + s.chunkSize
		if end > len(words) {
			end = len(words)
		}
		if end-i > windowMinWords {
			chunks = append(chunks, strings.Join(words[i:end], " "))
		}
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
