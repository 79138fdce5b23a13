package chunk

import (
	"fmt"
	"strings"
)

const (
	DefaultSize    = 1200
	DefaultOverlap = 200
)

// Chunk is one fixed-size slice of a transcript. Offset is the rune
// index of the chunk's start in the normalized text.
type Chunk struct {
	Ordinal int    `json:"ordinal"`
	Offset  int    `json:"offset"`
	Text    string `json:"text"`
}

// Splitter slices text into fixed-size character windows with overlap.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the window parameters. Zero values select the
// defaults; overlap must be smaller than size.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split normalizes whitespace and slices the text. Empty input yields no
// chunks; the final chunk may be shorter than the window.
func (s *Splitter) Split(text string) []Chunk {
	text = normalize(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := s.size - s.overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Ordinal: len(chunks),
			Offset:  start,
			Text:    string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
