// Package extract implements the Extractor (C5): turning a fetched
// page body into plain text, a title, same-host links, and a heading
// list, dispatching on content type between an HTML path and a
// Markdown path.
package extract

// Heading is one heading found while walking a page, with the
// character offset at which it begins within Document.Content.
type Heading struct {
	Level  int
	Text   string
	Offset int
}

// Document is the Extractor's output: {url, title, content, links,
// headings}, where Content is plain text with normalised whitespace
// (no triple newlines, no tabs, trimmed lines).
type Document struct {
	URL      string
	Title    string
	Content  string
	Links    []string
	Headings []Heading
}
