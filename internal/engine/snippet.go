package engine

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	paragraphBoundary = regexp.MustCompile(`\n\n`)
	sentenceBoundary  = regexp.MustCompile(`[.!?]\s+`)
	wordBoundary      = regexp.MustCompile(`\s+`)
)

// applyBudgetFilter implements 4.9.5 step 6 / 4.9.7 / P5: iterate admitted
// results in score order, maintaining a running character total; a result
// is admitted in full if it keeps the total within maxTotalChars, or (if
// formatSnippets is on and at least 200 chars of budget remain) admitted
// as a truncated snippet sized to fit; the very first result is always
// admitted regardless of its size.
func (e *Engine) applyBudgetFilter(results []Result, maxTotalChars int, formatSnippets bool) ([]Result, int, bool) {
	var out []Result
	total := 0
	truncated := false

	for i, r := range results {
		body := r.Content
		if formatSnippets {
			r.Snippet = e.formatSnippet(r, body)
			body = r.Snippet.Content
		}
		size := len(body)

		if i == 0 {
			out = append(out, finalizeResult(r, body))
			total += size
			continue
		}

		if total+size <= maxTotalChars {
			out = append(out, finalizeResult(r, body))
			total += size
			continue
		}

		remaining := maxTotalChars - total
		if remaining >= 200 && formatSnippets {
			snippetBody := truncateToBudget(r.Content, remaining)
			r.Snippet = e.formatSnippetWithContent(r, snippetBody)
			out = append(out, finalizeResult(r, snippetBody))
			total += len(snippetBody)
			truncated = true
		} else {
			truncated = true
		}
		break
	}

	return out, total, truncated
}

func finalizeResult(r Result, body string) Result {
	r.Content = body
	return r
}

// formatSnippet builds the snippet for a result whose content already
// fits within budget (no forced truncation).
func (e *Engine) formatSnippet(r Result, content string) *Snippet {
	return e.formatSnippetWithContent(r, content)
}

func (e *Engine) formatSnippetWithContent(r Result, content string) *Snippet {
	title := r.Title
	if title == "" {
		title = "Untitled"
	}
	breadcrumb := deriveBreadcrumb(r.Heading, r.URL)

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", title)
	fmt.Fprintf(&sb, "Source: %s\n", r.URL)
	if breadcrumb != "" {
		fmt.Fprintf(&sb, "[Section: %s]\n", breadcrumb)
	}
	sb.WriteString("\n")
	sb.WriteString(content)

	formatted := sb.String()
	return &Snippet{
		Formatted:  formatted,
		Title:      title,
		URL:        r.URL,
		Breadcrumb: breadcrumb,
		Content:    content,
		CharCount:  len(content),
	}
}

// deriveBreadcrumb derives a breadcrumb from (heading, url-path) per
// 4.9.7: take up to the last two URL path segments excluding "docs" and
// "api", title-case them, join with " > "; if the last segment already
// appears in the heading (case-insensitive), just use the heading.
func deriveBreadcrumb(heading, rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}
	segments := strings.Split(strings.Trim(path.Clean("/"+p), "/"), "/")

	var filtered []string
	for _, seg := range segments {
		lower := strings.ToLower(seg)
		if lower == "docs" || lower == "api" || seg == "" {
			continue
		}
		filtered = append(filtered, seg)
	}
	if len(filtered) == 0 {
		return heading
	}
	if len(filtered) > 2 {
		filtered = filtered[len(filtered)-2:]
	}

	last := filtered[len(filtered)-1]
	if heading != "" && strings.Contains(strings.ToLower(heading), strings.ToLower(last)) {
		return heading
	}

	titled := make([]string, len(filtered))
	for i, seg := range filtered {
		titled[i] = titleCaseSegment(seg)
	}
	return strings.Join(titled, " > ")
}

func titleCaseSegment(seg string) string {
	words := strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// truncateToBudget truncates content to fit within budget characters,
// preferring a paragraph boundary within the last half of the budget,
// else a sentence boundary within the last half, else a word boundary
// within the last 30%, else a hard cut. An ellipsis is appended unless
// the content already fit whole.
func truncateToBudget(content string, budget int) string {
	if len(content) <= budget {
		return content
	}

	ellipsis := "…"
	target := budget - len(ellipsis)
	if target <= 0 {
		if budget <= 0 {
			return ""
		}
		return content[:budget]
	}

	window := content[:target]
	halfStart := target / 2

	if idx := lastMatchAfter(paragraphBoundary, window, halfStart); idx >= 0 {
		return content[:idx] + ellipsis
	}
	if idx := lastMatchAfter(sentenceBoundary, window, halfStart); idx >= 0 {
		return content[:idx] + ellipsis
	}

	wordStart := target * 7 / 10
	if idx := lastMatchAfter(wordBoundary, window, wordStart); idx >= 0 {
		return content[:idx] + ellipsis
	}

	return content[:target] + ellipsis
}

// lastMatchAfter returns the start offset of the last match of re within
// window that starts at or after minStart, or -1 if none.
func lastMatchAfter(re *regexp.Regexp, window string, minStart int) int {
	matches := re.FindAllStringIndex(window, -1)
	best := -1
	for _, m := range matches {
		if m[0] >= minStart {
			best = m[0]
		}
	}
	return best
}
