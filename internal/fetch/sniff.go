package fetch

import (
	"strings"
)

// MarkdownContentType is the canonical content type DetectContentType
// reports for content sniffed as Markdown, regardless of what the
// server's Content-Type header said.
const MarkdownContentType = "text/markdown"

// DetectContentType content-sniffs a fetched body to decide whether it
// should be treated as Markdown, overriding the server-declared content
// type: URLs ending in .md/.mdx, bodies starting with a heading marker,
// or bodies opening with YAML frontmatter are all classified as
// Markdown regardless of what the server sent.
func DetectContentType(rawURL string, body []byte, declared string) string {
	if looksLikeMarkdownURL(rawURL) || looksLikeMarkdownBody(body) {
		return MarkdownContentType
	}
	return declared
}

func looksLikeMarkdownURL(rawURL string) bool {
	u := rawURL
	if idx := strings.IndexAny(u, "?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.HasSuffix(u, ".md") || strings.HasSuffix(u, ".mdx")
}

func looksLikeMarkdownBody(body []byte) bool {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	switch {
	case strings.HasPrefix(trimmed, "# "):
		return true
	case strings.HasPrefix(trimmed, "## "):
		return true
	case strings.HasPrefix(trimmed, "---"):
		// YAML frontmatter: a second "---" delimiter must close it.
		rest := trimmed[3:]
		return strings.Contains(rest, "\n---")
	default:
		return false
	}
}
