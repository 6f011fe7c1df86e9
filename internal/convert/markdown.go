package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkdownConverter walks the rendered HTML's DOM and emits Markdown,
// preserving links and images (spec.md §4.6) since no dedicated
// HTML-to-Markdown library is available to wrap.
type MarkdownConverter struct{}

func NewMarkdownConverter() *MarkdownConverter { return &MarkdownConverter{} }

func (c *MarkdownConverter) Convert(ctx context.Context, htmlBytes []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	walkMarkdown(doc, &b)
	return []byte(strings.TrimSpace(collapseBlankLines(b.String())) + "\n"), nil
}

func walkMarkdown(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head:
			return
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.Hr:
			b.WriteString("\n---\n")
			return
		case atom.Img:
			alt := attr(n, "alt")
			src := attr(n, "src")
			fmt.Fprintf(b, "![%s](%s)", alt, src)
			return
		case atom.A:
			href := attr(n, "href")
			b.WriteString("[")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walkMarkdown(c, b)
			}
			fmt.Fprintf(b, "](%s)", href)
			return
		}
	}

	prefix, suffix := blockMarkers(n)
	b.WriteString(prefix)

	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkMarkdown(c, b)
	}

	b.WriteString(suffix)
}

// blockMarkers returns the Markdown syntax wrapping an element's children.
func blockMarkers(n *html.Node) (prefix, suffix string) {
	if n.Type != html.ElementNode {
		return "", ""
	}
	switch n.DataAtom {
	case atom.H1:
		return "\n# ", "\n"
	case atom.H2:
		return "\n## ", "\n"
	case atom.H3:
		return "\n### ", "\n"
	case atom.H4:
		return "\n#### ", "\n"
	case atom.P, atom.Div:
		return "\n", "\n"
	case atom.Strong, atom.B:
		return "**", "**"
	case atom.Em, atom.I:
		return "_", "_"
	case atom.Code:
		return "`", "`"
	case atom.Li:
		return "\n- ", ""
	case atom.Tr:
		return "\n| ", " |"
	case atom.Td, atom.Th:
		return "", " | "
	default:
		return "", ""
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
