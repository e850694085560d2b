package ingest

import "strings"

const (
	// DefaultChunkSize is the target chunk length in bytes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many bytes consecutive chunks share.
	DefaultChunkOverlap = 200
)

// Splitter cuts text into chunks of roughly chunkSize bytes, preferring to
// break at paragraph, then line, then word boundaries. Consecutive chunks
// overlap so sentences cut at a boundary stay retrievable from both sides.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a Splitter. Non-positive chunkSize or a negative or
// oversized overlap falls back to the defaults.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// separators are tried in order; the first one present in the text decides
// where it may break. The empty separator means a hard cut.
var separators = []string{"\n\n", "\n", " ", ""}

// Split cuts text into chunks. Whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := ""
	rest := seps
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardCut(text)
	}

	pieces := strings.Split(text, sep)

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if len(piece) <= s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		// An oversized piece cannot join a chunk; flush what we have and
		// recurse into it with the finer separators.
		chunks = append(chunks, s.merge(pending, sep)...)
		pending = nil
		chunks = append(chunks, s.split(piece, rest)...)
	}
	chunks = append(chunks, s.merge(pending, sep)...)
	return chunks
}

// merge joins pieces with sep into chunks of at most chunkSize bytes,
// carrying up to overlap bytes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks []string
	var current []string
	total := 0

	flush := func() {
		chunk := strings.TrimSpace(strings.Join(current, sep))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	joined := func(extra int) int {
		n := total + extra
		if len(current) > 0 {
			n += len(sep) * len(current)
		}
		return n
	}

	for _, piece := range pieces {
		if joined(len(piece)) > s.chunkSize && len(current) > 0 {
			flush()
			// Keep trailing pieces within the overlap budget.
			for len(current) > 0 && (total > s.overlap || joined(len(piece)) > s.chunkSize) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece)
	}
	flush()
	return chunks
}

// hardCut slices text into fixed windows when no separator is usable.
func (s *Splitter) hardCut(text string) []string {
	step := s.chunkSize - s.overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
