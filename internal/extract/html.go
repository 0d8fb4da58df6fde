package extract

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// blockElements is the set of HTML elements treated as block-level for
// the purpose of emitting a newline at their boundary when flattening
// a node tree to plain text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "aside": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "tr": true, "td": true, "th": true,
	"blockquote": true, "pre": true, "br": true, "hr": true,
}

var headingLevels = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
}

func extractHTML(rawURL string, body []byte) (*Document, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(rawURL)

	title := firstText(doc, "title")
	if title == "" {
		title = firstText(doc, "h1")
	}

	links := extractHTMLLinks(doc, base)

	mainNode := readableMainNode(body, base)
	if mainNode == nil {
		mainNode = findTag(doc, "body")
	}
	if mainNode == nil {
		mainNode = doc
	}

	var sb strings.Builder
	var rawHeadings []rawHeading
	walkText(mainNode, &sb, &rawHeadings)

	content := normalizeWhitespace(sb.String())

	var headings []Heading
	if strings.TrimSpace(content) != "" {
		headings = locateHeadings(rawHeadings, content)
	}

	return &Document{
		URL:      rawURL,
		Title:    strings.TrimSpace(title),
		Content:  content,
		Links:    links,
		Headings: headings,
	}, nil
}

// readableMainNode runs a Readability-style main-content reducer over
// body, returning the reduced node tree, or nil if it yields nothing
// usable (the caller falls back to document.body).
func readableMainNode(body []byte, base *url.URL) *html.Node {
	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return nil
	}
	return article.Node
}

// firstText returns the trimmed text content of the first element with
// the given tag name, found in document order.
func firstText(n *html.Node, tag string) string {
	node := findTag(n, tag)
	if node == nil {
		return ""
	}
	var sb strings.Builder
	collectText(node, &sb)
	return strings.TrimSpace(sb.String())
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// rawHeading is a heading's level and text as encountered during
// walkText, before its offset within the final normalised content is
// known.
type rawHeading struct {
	Level int
	Text  string
}

// walkText flattens n to plain text, emitting a newline at block-level
// element boundaries, and records the level/text of every h1-h6
// encountered along the way, in document order, into headings.
func walkText(n *html.Node, sb *strings.Builder, headings *[]rawHeading) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}

	if n.Type == html.ElementNode {
		if level, ok := headingLevels[n.Data]; ok {
			var hsb strings.Builder
			collectText(n, &hsb)
			text := strings.TrimSpace(hsb.String())
			if text != "" {
				*headings = append(*headings, rawHeading{Level: level, Text: text})
				sb.WriteString("\n" + text + "\n")
			}
			return
		}
		if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb, headings)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		sb.WriteString("\n")
	}
}

// locateHeadings recovers each heading's offset within the final
// normalised content by locating its text sequentially, the same
// literal-substring-search idiom the chunker uses for its own heading
// partitioning (search resumes past the previous match).
func locateHeadings(raw []rawHeading, content string) []Heading {
	var headings []Heading
	searchFrom := 0
	for _, rh := range raw {
		idx := strings.Index(content[searchFrom:], rh.Text)
		if idx < 0 {
			continue
		}
		offset := searchFrom + idx
		headings = append(headings, Heading{Level: rh.Level, Text: rh.Text, Offset: offset})
		searchFrom = offset + len(rh.Text)
	}
	return headings
}

func extractHTMLLinks(doc *html.Node, base *url.URL) []string {
	seen := make(map[string]bool)
	var links []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				resolved := attr.Val
				if base != nil {
					if u, err := url.Parse(attr.Val); err == nil {
						resolved = base.ResolveReference(u).String()
					}
				}
				normalized, ok := sameHostNoFragment(base, resolved, base != nil)
				if !ok || seen[normalized] {
					continue
				}
				seen[normalized] = true
				links = append(links, normalized)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}
