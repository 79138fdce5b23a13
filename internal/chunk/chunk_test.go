package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitterValidation(t *testing.T) {
	_, err := NewSplitter(100, 100)
	assert.Error(t, err)

	_, err = NewSplitter(100, 150)
	assert.Error(t, err)

	s, err := NewSplitter(0, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, s.size)
	assert.Equal(t, DefaultOverlap, s.overlap)
}

func TestSplitEmpty(t *testing.T) {
	s, err := NewSplitter(10, 2)
	require.NoError(t, err)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestSplitShortText(t *testing.T) {
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)

	chunks := s.Split("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, "hello world", chunks[0].Text)
}

func TestSplitOverlap(t *testing.T) {
	s, err := NewSplitter(10, 4)
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := s.Split(text)
	require.Len(t, chunks, 4)

	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "ghijklmnop", chunks[1].Text)
	assert.Equal(t, "mnopqrstuv", chunks[2].Text)
	assert.Equal(t, "stuvwxyz", chunks[3].Text)

	// every chunk starts size-overlap after the previous one
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Offset+6, chunks[i].Offset)
		assert.Equal(t, i, chunks[i].Ordinal)
	}
}

func TestSplitOffsetsAreRuneIndexes(t *testing.T) {
	s, err := NewSplitter(4, 0)
	require.NoError(t, err)

	// each of these runes is multibyte, so byte and rune offsets diverge
	chunks := s.Split("ααααββββ")
	require.Len(t, chunks, 2)
	assert.Equal(t, "αααα", chunks[0].Text)
	assert.Equal(t, "ββββ", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, 4, chunks[1].Offset)
}

func TestSplitNormalizesWhitespace(t *testing.T) {
	s, err := NewSplitter(100, 0)
	require.NoError(t, err)

	chunks := s.Split("one\n\ntwo\t three   four")
	require.Len(t, chunks, 1)
	assert.Equal(t, "one two three four", chunks[0].Text)
}

func TestSplitExactWindow(t *testing.T) {
	s, err := NewSplitter(10, 2)
	require.NoError(t, err)

	chunks := s.Split(strings.Repeat("a", 10))
	require.Len(t, chunks, 1)
	assert.Equal(t, 10, len(chunks[0].Text))
}
