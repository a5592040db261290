package shimon

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"agentsplatform/internal/domain/knowledge"
)

// rulingLayout describes where a ruling site keeps each field
type rulingLayout struct {
	source   string
	item     string
	title    string
	date     string
	content  string
	judge    string
	category string
}

var rulingLayouts = map[string]rulingLayout{
	"supreme.court": {source: "supreme_court", item: "ruling-item", title: "h2", date: "date", content: "content", judge: "judge", category: "category"},
	"nevo":          {source: "nevo", item: "verdict", title: "h3", date: "verdict-date", content: "verdict-text", judge: "verdict-judge", category: "verdict-tag"},
	"takdin":        {source: "takdin", item: "psak-item", title: "h2", date: "psak-date", content: "psak-summary", judge: "psak-judge", category: "psak-subject"},
	"psakdin":       {source: "psakdin", item: "article-item", title: "h2", date: "article-date", content: "article-body", judge: "article-judge", category: "article-tag"},
}

// layoutFor picks the layout by a substring of the source URL
func layoutFor(sourceURL string) (rulingLayout, bool) {
	for marker, layout := range rulingLayouts {
		if strings.Contains(sourceURL, marker) {
			return layout, true
		}
	}
	return rulingLayout{}, false
}

// ParseRulings extracts rulings from a listing page. Items missing a title,
// date, content or link are skipped.
func ParseRulings(r io.Reader, sourceURL string, now time.Time) ([]knowledge.Ruling, error) {
	layout, ok := layoutFor(sourceURL)
	if !ok {
		return nil, nil
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var rulings []knowledge.Ruling
	for _, item := range findAll(doc, "div", layout.item) {
		title := textOf(findFirst(item, layout.title, ""))
		date := textOf(findFirst(item, "span", layout.date))
		content := textOf(findFirst(item, "div", layout.content))
		link := attr(findFirst(item, "a", ""), "href")
		if title == "" || date == "" || content == "" || link == "" {
			continue
		}

		id := attr(item, "data-id")
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
		}

		rulings = append(rulings, knowledge.Ruling{
			ID:         id,
			Title:      title,
			Date:       date,
			Content:    content,
			Judges:     textsOf(findAll(item, "span", layout.judge)),
			Categories: textsOf(findAll(item, "span", layout.category)),
			Source:     layout.source,
			URL:        link,
			Timestamp:  now.UTC().Format(time.RFC3339),
		})
	}
	return rulings, nil
}

// ParseGuidelines extracts guideline-style blocks: div.<itemClass> with a
// heading, div.content, span.category and a link.
func ParseGuidelines(r io.Reader, itemClass, source string) ([]knowledge.Guideline, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []knowledge.Guideline
	for _, item := range findAll(doc, "div", itemClass) {
		title := textOf(findFirst(item, "h2", ""))
		if title == "" {
			title = textOf(findFirst(item, "h3", ""))
		}
		content := textOf(findFirst(item, "div", "content"))
		if title == "" || content == "" {
			continue
		}
		link := attr(findFirst(item, "a", ""), "href")

		id := attr(item, "data-id")
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"|"+link+"|"+title)).String()
		}

		out = append(out, knowledge.Guideline{
			ID:       id,
			Title:    title,
			Content:  content,
			Category: textOf(findFirst(item, "span", "category")),
			URL:      link,
			Source:   source,
		})
	}
	return out, nil
}

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return true
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func matches(n *html.Node, tag, class string) bool {
	return n.Type == html.ElementNode && n.Data == tag && hasClass(n, class)
}

// findAll returns matching descendants in document order, without descending into matches
func findAll(root *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if matches(c, tag, class) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func findFirst(root *html.Node, tag, class string) *html.Node {
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if matches(c, tag, class) {
			return c
		}
		if n := findFirst(c, tag, class); n != nil {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf concatenates the text nodes under n, collapsing whitespace
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func textsOf(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := textOf(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}
