package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortTextEmitsSingleChunk(t *testing.T) {
	c := NewChunker(DefaultOptions())
	chunks := c.Chunk("short page body", []Heading{{Level: 1, Text: "Intro"}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "Intro", chunks[0].Heading)
	assert.Equal(t, "short page body", chunks[0].Body)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunk_EmptyTextEmitsNoChunks(t *testing.T) {
	c := NewChunker(DefaultOptions())
	assert.Empty(t, c.Chunk("", nil))
	assert.Empty(t, c.Chunk("   \n  ", nil))
}

func TestChunk_PartitionsOversizeTextBySections(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 50, MinChunkSize: 5, Overlap: 0})

	sectionA := strings.Repeat("a", 20)
	sectionB := strings.Repeat("b", 20)
	text := "Alpha\n" + sectionA + "\nBeta\n" + sectionB

	chunks := c.Chunk(text, []Heading{{Level: 1, Text: "Alpha"}, {Level: 1, Text: "Beta"}})

	require.GreaterOrEqual(t, len(chunks), 2)
	headings := make(map[string]bool)
	for _, ch := range chunks {
		headings[ch.Heading] = true
		assert.LessOrEqual(t, len(ch.Body), 50)
	}
	assert.True(t, headings["Alpha"])
	assert.True(t, headings["Beta"])
}

func TestChunk_EmissionOrderIsDenseZeroBased(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 30, MinChunkSize: 5, Overlap: 0})

	text := strings.Repeat("para one words here. ", 3) + "\n\n" + strings.Repeat("para two words here. ", 3) + "\n\n" + strings.Repeat("para three words here. ", 3)
	chunks := c.Chunk(text, nil)

	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestChunk_OversizeSectionSplitsByParagraphWithOverlapPrefix(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 40, MinChunkSize: 5, Overlap: 10})

	p1 := strings.Repeat("x", 30)
	p2 := strings.Repeat("y", 30)
	text := p1 + "\n\n" + p2 + "\n\n" + strings.Repeat("z", 30)

	chunks := c.Chunk(text, nil)
	require.GreaterOrEqual(t, len(chunks), 2)

	// a later chunk should begin with a suffix of the previous chunk's body
	found := false
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Body
		if len(prevTail) > 10 {
			prevTail = prevTail[len(prevTail)-10:]
		}
		if strings.HasPrefix(chunks[i].Body, prevTail) {
			found = true
		}
	}
	assert.True(t, found, "expected at least one chunk to carry an overlap prefix")
}

func TestChunk_SingleOversizeParagraphFallsBackToSentenceSplitting(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 40, MinChunkSize: 5, Overlap: 0})

	para := "First sentence is here. Second sentence follows now. Third one wraps up things."
	chunks := c.Chunk(para, nil)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Body), 40)
	}
	assert.Greater(t, len(chunks), 1)
}

func TestChunk_SingleOversizeSentenceFallsBackToWordSplitting(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 20, MinChunkSize: 5, Overlap: 0})

	para := strings.Repeat("word ", 20)
	chunks := c.Chunk(para, nil)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Body), 20)
	}
	assert.Greater(t, len(chunks), 1)
}

func TestChunk_WordLongerThanMaxChunkSizeIsEmittedWhole(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 5, MinChunkSize: 1, Overlap: 0})

	longWord := strings.Repeat("w", 30)
	chunks := c.Chunk(longWord+" x", nil)

	require.NotEmpty(t, chunks)
	found := false
	for _, ch := range chunks {
		if ch.Body == longWord {
			found = true
		}
	}
	assert.True(t, found, "an overlong single word must survive intact even though it exceeds maxChunkSize")
}

func TestMergeTrailingSmallChunk_FusesShortTailWithinBudget(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 200, MinChunkSize: 50, Overlap: 0})

	chunks := []Chunk{
		{Index: 0, Body: strings.Repeat("a", 100)},
		{Index: 1, Body: "tiny"},
	}

	merged := c.mergeTrailingSmallChunk(chunks)
	require.Len(t, merged, 1)
	assert.Contains(t, merged[0].Body, "tiny")
}

func TestMergeTrailingSmallChunk_LeavesChunksWhenCombinedExceedsBudget(t *testing.T) {
	c := NewChunker(Options{MaxChunkSize: 100, MinChunkSize: 50, Overlap: 0})

	chunks := []Chunk{
		{Index: 0, Body: strings.Repeat("a", 95)},
		{Index: 1, Body: "tiny"},
	}

	merged := c.mergeTrailingSmallChunk(chunks)
	require.Len(t, merged, 2)
}

func TestPartitionSections_NoHeadingsReturnsSingleSection(t *testing.T) {
	sections := partitionSections("just body text", nil)
	require.Len(t, sections, 1)
	assert.Equal(t, "", sections[0].heading)
}

func TestPartitionSections_HeadingSearchAdvancesPastPreviousMatch(t *testing.T) {
	text := "Intro\nbody\nIntro\nmore body about Intro"
	sections := partitionSections(text, []Heading{{Level: 1, Text: "Intro"}, {Level: 1, Text: "Intro"}})

	require.Len(t, sections, 2)
	assert.Equal(t, 0, sections[0].offset)
	assert.Greater(t, sections[1].offset, sections[0].offset)
}
