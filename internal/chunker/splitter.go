package chunker

import (
	"strings"

	"github.com/qrengage/docpipe/internal/ai"
)

// minChunkHeadroom keeps the window advancing: overlap is clamped so every
// chunk contributes at least this much new text.
const minChunkHeadroom = 50

// Boundary preference, most to least desirable. A chunk is cut at the last
// occurrence of the earliest class that fits inside the size budget; the
// empty separator is the hard character cut.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", "; ", " ", ""}

// Splitter produces bounded, overlapping segments. Size and overlap are
// measured by the configured measure function: runes in character mode,
// tokens in token mode.
type Splitter struct {
	chunkSize int
	overlap   int
	measure   func([]rune) int
}

// New returns a character-based splitter.
func New(chunkSize, overlap int) *Splitter {
	return newSplitter(chunkSize, overlap, func(rs []rune) int { return len(rs) })
}

// NewTokenAware returns a token-measured splitter when the tokenizer is
// loadable, else the character-based fallback.
func NewTokenAware(chunkSize, overlap int) *Splitter {
	if !ai.TokenizerAvailable() {
		return New(chunkSize, overlap)
	}
	return newSplitter(chunkSize, overlap, func(rs []rune) int { return ai.CountTokens(string(rs)) })
}

func newSplitter(chunkSize, overlap int, measure func([]rune) int) *Splitter {
	if chunkSize <= minChunkHeadroom {
		chunkSize = minChunkHeadroom + 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > chunkSize-minChunkHeadroom {
		overlap = chunkSize - minChunkHeadroom
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, measure: measure}
}

// Split segments text into chunks of at most chunkSize with up to overlap
// of carry-over between consecutive chunks. Empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := s.windowEnd(runes, start)
		var cut int
		if end >= len(runes) {
			cut = len(runes)
		} else {
			cut = s.findCut(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if cut >= len(runes) {
			break
		}
		next := cut - s.overlapRunes(runes, cut)
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// windowEnd returns the largest end position whose span from start fits the
// size budget. Character mode is a direct offset; token mode binary-searches
// since token counts grow monotonically with the span.
func (s *Splitter) windowEnd(runes []rune, start int) int {
	limit := len(runes)
	if s.measure(runes[start:]) <= s.chunkSize {
		return limit
	}
	lo, hi := start+1, limit
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.measure(runes[start:mid]) <= s.chunkSize {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// findCut picks the cut position inside (start, end] at the best available
// boundary class.
func (s *Splitter) findCut(runes []rune, start, end int) int {
	window := string(runes[start:end])
	for _, sep := range separators {
		if sep == "" {
			return end
		}
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		cut := start + len([]rune(window[:idx])) + len([]rune(sep))
		if cut > start && cut <= end {
			return cut
		}
	}
	return end
}

// overlapRunes returns how many runes before cut fit the overlap budget.
func (s *Splitter) overlapRunes(runes []rune, cut int) int {
	if s.overlap <= 0 {
		return 0
	}
	max := cut
	if s.measure(runes[:cut]) <= s.overlap {
		return max
	}
	lo, hi := 0, max
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.measure(runes[cut-mid:cut]) <= s.overlap {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// ChunkSize reports the configured size budget.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap reports the clamped overlap.
func (s *Splitter) Overlap() int {
	return s.overlap
}
