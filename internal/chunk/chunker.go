// Package chunk splits a page's extracted plain text into size-bounded,
// heading-aware chunks for embedding and keyword indexing.
package chunk

import (
	"regexp"
	"strings"
)

// Defaults per the chunking algorithm; all three are overridable via
// Options for callers that need smaller/larger budgets (e.g. tests).
const (
	DefaultMaxChunkSize = 1500
	DefaultMinChunkSize = 100
	DefaultOverlap      = 100
)

// Chunk is one emission of the Chunker: a contiguous slice of a page's
// plain text plus the heading in effect at that point. Offsets are
// diagnostic only — they describe where in the source text the chunk's
// own content begins/ends and are not load-bearing for retrieval.
type Chunk struct {
	Index       int
	Heading     string
	Body        string
	StartOffset int
	EndOffset   int
}

// Options configures chunk size bounds. A zero Options is invalid; use
// NewChunker or DefaultOptions to obtain one with defaults applied.
type Options struct {
	MaxChunkSize int
	MinChunkSize int
	Overlap      int
}

// DefaultOptions returns the algorithm's documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: DefaultMaxChunkSize,
		MinChunkSize: DefaultMinChunkSize,
		Overlap:      DefaultOverlap,
	}
}

// Chunker splits plain text plus a heading list into Chunks.
type Chunker struct {
	opts Options
}

// NewChunker builds a Chunker from opts. A zero or negative MaxChunkSize
// or MinChunkSize takes its default; a negative Overlap takes
// DefaultOverlap, while a zero Overlap is kept and means no overlap.
func NewChunker(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = DefaultOverlap
	}
	return &Chunker{opts: opts}
}

// Heading is one entry from the Extractor's heading list: a heading's
// literal text, used to locate section breaks in the plain text by
// substring search.
type Heading struct {
	Level int
	Text  string
}

var (
	paragraphSplit = regexp.MustCompile(`\n\n+`)
	sentenceSplit  = regexp.MustCompile(`[.!?]\s+`)
)

// Chunk splits text into size-bounded, heading-aware chunks. headings is
// the Extractor's ordered heading list; it is used only to find section
// breaks and to label chunks, never to alter the text itself.
func (c *Chunker) Chunk(text string, headings []Heading) []Chunk {
	if len(text) <= c.opts.MaxChunkSize {
		heading := ""
		if len(headings) > 0 {
			heading = headings[0].Text
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Chunk{{Index: 0, Heading: heading, Body: text, StartOffset: 0, EndOffset: len(text)}}
	}

	sections := partitionSections(text, headings)

	var out []Chunk
	for _, sec := range sections {
		if len(sec.body) <= c.opts.MaxChunkSize {
			if strings.TrimSpace(sec.body) == "" {
				continue
			}
			out = append(out, Chunk{Heading: sec.heading, Body: sec.body, StartOffset: sec.offset, EndOffset: sec.offset + len(sec.body)})
			continue
		}
		out = append(out, c.splitOversizeSection(sec)...)
	}

	out = c.mergeTrailingSmallChunk(out)

	for i := range out {
		out[i].Index = i
	}
	return out
}

// section is a (heading, text) pair for the span of text following one
// heading break and preceding the next.
type section struct {
	heading string
	body    string
	offset  int
}

// partitionSections splits text at each heading's literal first
// occurrence (search starts after the previous match, so a heading text
// that repeats verbatim in body content doesn't cause a false break).
func partitionSections(text string, headings []Heading) []section {
	if len(headings) == 0 {
		return []section{{heading: "", body: text, offset: 0}}
	}

	type breakPoint struct {
		pos     int
		heading string
	}
	var breaks []breakPoint
	searchFrom := 0
	for _, h := range headings {
		idx := strings.Index(text[searchFrom:], h.Text)
		if idx == -1 {
			continue
		}
		pos := searchFrom + idx
		breaks = append(breaks, breakPoint{pos: pos, heading: h.Text})
		searchFrom = pos + len(h.Text)
	}

	if len(breaks) == 0 {
		return []section{{heading: "", body: text, offset: 0}}
	}

	var sections []section
	if breaks[0].pos > 0 {
		sections = append(sections, section{heading: "", body: text[:breaks[0].pos], offset: 0})
	}
	for i, b := range breaks {
		end := len(text)
		if i+1 < len(breaks) {
			end = breaks[i+1].pos
		}
		sections = append(sections, section{heading: b.heading, body: text[b.pos:end], offset: b.pos})
	}
	return sections
}

// splitOversizeSection accumulates paragraphs greedily within
// maxChunkSize, prepending overlap characters of the previous chunk on
// overflow, falling back to sentence- then word-splitting for any single
// paragraph that alone exceeds maxChunkSize.
func (c *Chunker) splitOversizeSection(sec section) []Chunk {
	paragraphs := paragraphSplit.Split(sec.body, -1)

	var out []Chunk
	var current strings.Builder
	currentOffset := sec.offset
	var prevBody string

	flush := func() {
		body := current.String()
		if strings.TrimSpace(body) == "" {
			current.Reset()
			return
		}
		out = append(out, Chunk{Heading: sec.heading, Body: body, StartOffset: currentOffset, EndOffset: currentOffset + len(body)})
		prevBody = body
		currentOffset += len(body)
		current.Reset()
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > c.opts.MaxChunkSize {
			if current.Len() > 0 {
				flush()
			}
			out = append(out, c.splitOversizeParagraph(sec.heading, para, currentOffset)...)
			if len(out) > 0 {
				currentOffset = out[len(out)-1].EndOffset
			}
			continue
		}

		candidate := para
		if current.Len() > 0 {
			candidate = current.String() + "\n\n" + para
		}
		if current.Len() > 0 && len(candidate) > c.opts.MaxChunkSize {
			flush()
			if c.opts.Overlap > 0 && len(prevBody) > 0 {
				overlap := prevBody
				if len(overlap) > c.opts.Overlap {
					overlap = overlap[len(overlap)-c.opts.Overlap:]
				}
				current.WriteString(overlap)
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		} else {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	if current.Len() > 0 {
		flush()
	}

	return out
}

// splitOversizeParagraph falls back to sentence splitting, then word
// splitting, for a single paragraph that alone exceeds maxChunkSize.
func (c *Chunker) splitOversizeParagraph(heading, para string, offset int) []Chunk {
	sentences := sentenceSplit.Split(para, -1)
	if len(sentences) > 1 {
		return c.accumulate(heading, sentences, " ", offset)
	}

	words := strings.Fields(para)
	return c.accumulate(heading, words, " ", offset)
}

// accumulate greedily packs units (sentences or words) joined by sep into
// chunks no larger than maxChunkSize, except a single unit that alone
// exceeds the limit is emitted whole.
func (c *Chunker) accumulate(heading string, units []string, sep string, offset int) []Chunk {
	var out []Chunk
	var current strings.Builder
	currentOffset := offset

	flush := func() {
		body := current.String()
		if body == "" {
			return
		}
		out = append(out, Chunk{Heading: heading, Body: body, StartOffset: currentOffset, EndOffset: currentOffset + len(body)})
		currentOffset += len(body)
		current.Reset()
	}

	for _, u := range units {
		if u == "" {
			continue
		}
		candidate := u
		if current.Len() > 0 {
			candidate = current.String() + sep + u
		}
		if current.Len() > 0 && len(candidate) > c.opts.MaxChunkSize {
			flush()
			current.WriteString(u)
		} else {
			if current.Len() > 0 {
				current.WriteString(sep)
			}
			current.WriteString(u)
		}
	}
	flush()
	return out
}

// mergeTrailingSmallChunk fuses the final chunk into its predecessor when
// the last chunk is smaller than minChunkSize and the combined length
// still fits within maxChunkSize.
func (c *Chunker) mergeTrailingSmallChunk(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	last := chunks[len(chunks)-1]
	if len(last.Body) >= c.opts.MinChunkSize {
		return chunks
	}
	prev := chunks[len(chunks)-2]
	merged := prev.Body + "\n\n" + last.Body
	if len(merged) > c.opts.MaxChunkSize {
		return chunks
	}
	prev.Body = merged
	prev.EndOffset = last.EndOffset
	return append(chunks[:len(chunks)-2], prev)
}
