package extract

import (
	"strings"

	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
)

// Extract dispatches by contentType: anything recognised as Markdown
// (see fetch.DetectContentType) goes through the Markdown path,
// everything else through the HTML path.
func Extract(rawURL string, body []byte, contentType string) (*Document, error) {
	if isMarkdown(contentType, rawURL, body) {
		return extractMarkdown(rawURL, body)
	}
	return extractHTML(rawURL, body)
}

func isMarkdown(contentType, rawURL string, body []byte) bool {
	if strings.Contains(contentType, "markdown") {
		return true
	}
	return fetch.DetectContentType(rawURL, body, contentType) == fetch.MarkdownContentType
}

// normalizeWhitespace collapses runs of 3+ newlines to exactly 2
// (no triple newlines), expands tabs to single spaces, trims every
// line, and trims the whole result.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(strings.TrimSpace(line), " ")
	}
	s = strings.Join(lines, "\n")

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
