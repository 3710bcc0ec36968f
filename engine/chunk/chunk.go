// Package chunk splits section text into overlapping retrieval units.
// Both splitters are pure functions: no I/O, deterministic for identical
// inputs, safe to run in parallel across documents.
package chunk

import "strings"

// Piece is one chunk of a section's text. Index is 0-based and contiguous
// within the section; dropped (whitespace-only) windows do not consume an
// index.
type Piece struct {
	Content   string
	SourceRef string
	Index     int
}

// sentence terminators, searched right-to-left inside a window.
var terminators = []string{". ", "! ", "? ", "\n\n"}

// Split chunks text into windows of at most size characters with overlap
// characters carried between consecutive windows. When a window would cut
// mid-sentence, its right edge snaps back to just past the rightmost
// sentence terminator inside the window.
//
// size <= 0 or empty text yields an empty sequence, not an error. The next
// window start always strictly exceeds the previous one, so the loop
// terminates even for overlap >= size.
func Split(text string, size, overlap int, sourceRef string) []Piece {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	var pieces []Piece
	n := len(text)
	start := 0
	index := 0

	for start < n {
		end := start + size
		if end < n {
			// Snap to the rightmost terminator strictly inside the window.
			window := text[start:end]
			snap := -1
			for _, term := range terminators {
				if i := strings.LastIndex(window, term); i > snap {
					snap = i
				}
			}
			if snap > 0 {
				end = start + snap + 1
			}
		}

		sliceEnd := end
		if sliceEnd > n {
			sliceEnd = n
		}
		if piece := strings.TrimSpace(text[start:sliceEnd]); piece != "" {
			pieces = append(pieces, Piece{Content: piece, SourceRef: sourceRef, Index: index})
			index++
		}

		next := end - overlap
		if next <= end-size {
			// Overlap swallowed the whole window; resume at the snapped edge.
			next = end
		}
		if next <= start {
			// Snapping plus overlap moved us backwards; force progress past
			// the unsnapped right edge.
			next = start + size
		}
		start = next
	}

	return pieces
}

// SplitSentences splits text into sentences on ".", "!" or "?" followed by
// whitespace. Sentences are trimmed; empty ones are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		current.WriteByte(c)
		if (c == '.' || c == '!' || c == '?') && i+1 < len(text) && isSpace(text[i+1]) {
			flush()
		}
	}
	flush()
	return sentences
}

// SplitBySentences buckets whole sentences into chunks under an approximate
// character budget of size, carrying trailing sentences forward as overlap
// context for the next chunk. Used when sentence integrity matters more
// than exact size control.
func SplitBySentences(text string, size, overlap int, sourceRef string) []Piece {
	sentences := SplitSentences(text)
	if len(sentences) == 0 || size <= 0 {
		return nil
	}

	var pieces []Piece
	var current []string
	index := 0
	length := 0

	emit := func() {
		pieces = append(pieces, Piece{
			Content:   strings.Join(current, " "),
			SourceRef: sourceRef,
			Index:     index,
		})
		index++
	}

	for _, sentence := range sentences {
		if length+len(sentence) > size && len(current) > 0 {
			emit()

			// Keep as many trailing sentences as fit in the overlap budget.
			carried := 0
			var carry []string
			for i := len(current) - 1; i >= 0; i-- {
				if carried+len(current[i]) > overlap {
					break
				}
				carry = append([]string{current[i]}, carry...)
				carried += len(current[i])
			}
			current = carry
			length = carried
		}
		current = append(current, sentence)
		length += len(sentence)
	}

	if len(current) > 0 {
		emit()
	}
	return pieces
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
