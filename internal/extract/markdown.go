package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// mdFrontmatterPattern matches a leading YAML frontmatter block,
	// same shape as the teacher's markdown chunker.
	mdFrontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)

	// mdCommentPattern matches HTML comments embedded in Markdown.
	mdCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

	// mdHeadingPattern matches ATX headings, recording level and text.
	mdHeadingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

	// mdLinkPattern matches inline links: [text](href).
	mdLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
)

func extractMarkdown(rawURL string, body []byte) (*Document, error) {
	text := string(body)
	text = mdCommentPattern.ReplaceAllString(text, "")
	if m := mdFrontmatterPattern.FindString(text); m != "" {
		text = text[len(m):]
	}

	links := extractMarkdownLinks(text, rawURL)
	headings, content := extractMarkdownHeadings(text)

	title := ""
	if len(headings) > 0 {
		title = headings[0].Text
	}

	return &Document{
		URL:      rawURL,
		Title:    title,
		Content:  content,
		Links:    links,
		Headings: headings,
	}, nil
}

// extractMarkdownHeadings records level/text/offset for each ATX
// heading, measuring offset in the normalised content that is
// returned alongside it.
func extractMarkdownHeadings(text string) ([]Heading, string) {
	normalized := normalizeWhitespace(text)

	var headings []Heading
	matches := mdHeadingPattern.FindAllStringSubmatchIndex(normalized, -1)
	for _, m := range matches {
		level := len(normalized[m[2]:m[3]])
		heading := strings.TrimSpace(normalized[m[4]:m[5]])
		headings = append(headings, Heading{
			Level:  level,
			Text:   heading,
			Offset: m[0],
		})
	}
	return headings, normalized
}

func extractMarkdownLinks(text, rawURL string) []string {
	base, err := url.Parse(rawURL)
	seen := make(map[string]bool)
	var links []string

	for _, m := range mdLinkPattern.FindAllStringSubmatch(text, -1) {
		href := m[2]
		resolved := href
		if err == nil {
			if u, perr := url.Parse(href); perr == nil {
				resolved = base.ResolveReference(u).String()
			}
		}
		normalized, ok := sameHostNoFragment(base, resolved, err == nil)
		if !ok {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		links = append(links, normalized)
	}
	return links
}

// sameHostNoFragment strips the fragment from link and reports whether
// it shares base's host (when base is known).
func sameHostNoFragment(base *url.URL, link string, haveBase bool) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	u.Fragment = ""
	if haveBase && u.Host != "" && u.Host != base.Host {
		return "", false
	}
	return u.String(), true
}
