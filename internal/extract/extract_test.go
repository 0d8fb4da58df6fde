package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_MarkdownContentTypeGoesThroughMarkdownPath(t *testing.T) {
	body := []byte("# Guide\n\nSome intro text.\n\n## Setup\n\nMore text.\n")
	doc, err := Extract("https://docs.example.com/guide.md", body, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Guide", doc.Title)
	require.Len(t, doc.Headings, 2)
	assert.Equal(t, 1, doc.Headings[0].Level)
	assert.Equal(t, "Guide", doc.Headings[0].Text)
	assert.Equal(t, 2, doc.Headings[1].Level)
	assert.Equal(t, "Setup", doc.Headings[1].Text)
}

func TestExtractMarkdown_StripsFrontmatterAndComments(t *testing.T) {
	body := []byte("---\ntitle: Guide\n---\n<!-- hidden -->\n# Guide\n\nbody text\n")
	doc, err := extractMarkdown("https://docs.example.com/guide", body)
	require.NoError(t, err)
	assert.NotContains(t, doc.Content, "title: Guide")
	assert.NotContains(t, doc.Content, "hidden")
	assert.Contains(t, doc.Content, "body text")
}

func TestExtractMarkdown_DetectsLinksSameHostOnly(t *testing.T) {
	body := []byte("See [setup](/setup) and [other site](https://other.example.com/x) and [external](https://docs.example.com/y#frag).")
	doc, err := extractMarkdown("https://docs.example.com/guide", body)
	require.NoError(t, err)
	assert.Contains(t, doc.Links, "https://docs.example.com/setup")
	assert.Contains(t, doc.Links, "https://docs.example.com/y")
	assert.NotContains(t, doc.Links, "https://other.example.com/x")
}

func TestExtractMarkdown_EmptyBodyYieldsEmptyContentNoError(t *testing.T) {
	doc, err := extractMarkdown("https://docs.example.com/empty", []byte("   \n\n  "))
	require.NoError(t, err)
	assert.Empty(t, doc.Content)
	assert.Empty(t, doc.Headings)
}

func TestExtractHTML_ExtractsTitleFromTitleTag(t *testing.T) {
	body := []byte(`<html><head><title>My Page</title></head><body><article><p>hello world</p></article></body></html>`)
	doc, err := extractHTML("https://docs.example.com/page", body)
	require.NoError(t, err)
	assert.Equal(t, "My Page", doc.Title)
	assert.Contains(t, doc.Content, "hello world")
}

func TestExtractHTML_FallsBackToFirstH1WhenNoTitleTag(t *testing.T) {
	body := []byte(`<html><body><article><h1>Main Heading</h1><p>content</p></article></body></html>`)
	doc, err := extractHTML("https://docs.example.com/page", body)
	require.NoError(t, err)
	assert.Equal(t, "Main Heading", doc.Title)
}

func TestExtractHTML_ExtractsHeadingsInDocumentOrderWithOffsets(t *testing.T) {
	body := []byte(`<html><body><article><h1>Intro</h1><p>intro text here</p><h2>Details</h2><p>details text here</p></article></body></html>`)
	doc, err := extractHTML("https://docs.example.com/page", body)
	require.NoError(t, err)
	require.Len(t, doc.Headings, 2)
	assert.Equal(t, "Intro", doc.Headings[0].Text)
	assert.Equal(t, 1, doc.Headings[0].Level)
	assert.Equal(t, "Details", doc.Headings[1].Text)
	assert.Equal(t, 2, doc.Headings[1].Level)
	assert.True(t, doc.Headings[1].Offset > doc.Headings[0].Offset)
	assert.Equal(t, "Intro", doc.Content[doc.Headings[0].Offset:doc.Headings[0].Offset+len("Intro")])
}

func TestExtractHTML_LinksAreSameHostDedupedAndDefragged(t *testing.T) {
	body := []byte(`<html><body>
		<a href="/a">one</a>
		<a href="/a#section">duplicate of one</a>
		<a href="https://other.example.com/b">external</a>
		<a href="/c">three</a>
	</body></html>`)
	doc, err := extractHTML("https://docs.example.com/page", body)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://docs.example.com/a",
		"https://docs.example.com/c",
	}, doc.Links)
}

func TestExtractHTML_ScriptAndStyleContentIsExcluded(t *testing.T) {
	body := []byte(`<html><body><article><script>var x = "should not appear";</script><style>.a{color:red}</style><p>visible text</p></article></body></html>`)
	doc, err := extractHTML("https://docs.example.com/page", body)
	require.NoError(t, err)
	assert.NotContains(t, doc.Content, "should not appear")
	assert.NotContains(t, doc.Content, "color:red")
	assert.Contains(t, doc.Content, "visible text")
}

func TestExtractHTML_NoTripleNewlinesInContent(t *testing.T) {
	body := []byte(`<html><body><article><p>one</p><div></div><div></div><div></div><p>two</p></article></body></html>`)
	doc, err := extractHTML("https://docs.example.com/page", body)
	require.NoError(t, err)
	assert.False(t, strings.Contains(doc.Content, "\n\n\n"))
}

func TestExtractHTML_EmptyBodyYieldsEmptyContentNoError(t *testing.T) {
	doc, err := extractHTML("https://docs.example.com/empty", []byte(`<html><body></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, doc.Content)
	assert.Empty(t, doc.Headings)
}
