package extraction

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// toMarkdown renders the given node tree to markdown. No pack example ships
// an HTML-to-markdown library, so conversion walks the parsed goquery/x/net
// node tree directly; table support follows the pipe-table convention
// (header row retained, cells escape '|').
func toMarkdown(scope *goquery.Selection) string {
	var b strings.Builder
	scope.Contents().Each(func(_ int, s *goquery.Selection) {
		renderNode(&b, s)
	})
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func renderNode(b *strings.Builder, s *goquery.Selection) {
	for _, n := range s.Nodes {
		renderSingle(b, n)
	}
}

func renderSingle(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "br":
			b.WriteString("  \n")
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			b.WriteString("\n" + strings.Repeat("#", level) + " ")
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		case "p", "div", "section", "article":
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		case "strong", "b":
			b.WriteString("**")
			renderChildren(b, n)
			b.WriteString("**")
			return
		case "em", "i":
			b.WriteString("_")
			renderChildren(b, n)
			b.WriteString("_")
			return
		case "a":
			href := attr(n, "href")
			b.WriteString("[")
			renderChildren(b, n)
			b.WriteString("](" + href + ")")
			return
		case "img":
			alt := attr(n, "alt")
			src := attr(n, "src")
			b.WriteString("![" + alt + "](" + src + ")")
			return
		case "ul", "ol":
			renderList(b, n, n.Data == "ol")
			b.WriteString("\n")
			return
		case "table":
			renderTable(b, n)
			return
		case "code":
			b.WriteString("`")
			renderChildren(b, n)
			b.WriteString("`")
			return
		case "pre":
			b.WriteString("\n```\n")
			renderChildren(b, n)
			b.WriteString("\n```\n")
			return
		default:
			renderChildren(b, n)
			return
		}
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderSingle(b, c)
	}
}

func renderList(b *strings.Builder, n *html.Node, ordered bool) {
	i := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		if ordered {
			b.WriteString("\n" + strconv.Itoa(i) + ". ")
			i++
		} else {
			b.WriteString("\n- ")
		}
		renderChildren(b, c)
	}
}

// renderTable emits a pipe table: header row retained, every cell escapes
// the pipe character so a cell value can never break the row structure.
func renderTable(b *strings.Builder, n *html.Node) {
	var rows [][]string
	var headerSeen bool

	walkRows(n, func(cells []string, isHeader bool) {
		if isHeader {
			headerSeen = true
		}
		rows = append(rows, cells)
	})

	if len(rows) == 0 {
		return
	}

	b.WriteString("\n")
	header := rows[0]
	b.WriteString("| " + strings.Join(escapeCells(header), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	start := 1
	if !headerSeen {
		start = 1
	}
	for _, row := range rows[start:] {
		b.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	b.WriteString("\n")
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(strings.TrimSpace(c), "|", "\\|")
	}
	return out
}

func walkRows(n *html.Node, emit func(cells []string, isHeader bool)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "thead", "tbody", "tfoot":
			walkRows(c, emit)
		case "tr":
			var cells []string
			isHeader := false
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type != html.ElementNode {
					continue
				}
				if cell.Data == "th" {
					isHeader = true
				}
				if cell.Data == "td" || cell.Data == "th" {
					var cb strings.Builder
					renderChildren(&cb, cell)
					cells = append(cells, collapseBlankLines(cb.String()))
				}
			}
			emit(cells, isHeader)
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

