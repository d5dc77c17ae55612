package extraction

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseBody(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Find("body")
}

// ============================================================================
// Inline formatting
// ============================================================================

func TestToMarkdown_RendersHeadingsAndEmphasis(t *testing.T) {
	body := parseBody(t, `<body><h1>Title</h1><p>Some <strong>bold</strong> and <em>italic</em> text.</p></body>`)

	md := toMarkdown(body)

	assert.Contains(t, md, "# Title")
	assert.Contains(t, md, "**bold**")
	assert.Contains(t, md, "_italic_")
}

func TestToMarkdown_RendersLinksAndImages(t *testing.T) {
	body := parseBody(t, `<body><a href="/x">link text</a><img src="/pic.png" alt="a pic"></body>`)

	md := toMarkdown(body)

	assert.Contains(t, md, "[link text](/x)")
	assert.Contains(t, md, "![a pic](/pic.png)")
}

func TestToMarkdown_DropsScriptAndStyleContent(t *testing.T) {
	body := parseBody(t, `<body><script>alert(1)</script><style>.x{color:red}</style><p>real text</p></body>`)

	md := toMarkdown(body)

	assert.NotContains(t, md, "alert")
	assert.NotContains(t, md, "color:red")
	assert.Contains(t, md, "real text")
}

// ============================================================================
// Lists
// ============================================================================

func TestToMarkdown_RendersOrderedAndUnorderedLists(t *testing.T) {
	ul := parseBody(t, `<body><ul><li>one</li><li>two</li></ul></body>`)
	assert.Contains(t, toMarkdown(ul), "- one")
	assert.Contains(t, toMarkdown(ul), "- two")

	ol := parseBody(t, `<body><ol><li>first</li><li>second</li></ol></body>`)
	md := toMarkdown(ol)
	assert.Contains(t, md, "1. first")
	assert.Contains(t, md, "2. second")
}

// ============================================================================
// Tables
// ============================================================================

func TestToMarkdown_RendersTableAsPipeTable(t *testing.T) {
	body := parseBody(t, `<body><table>
		<thead><tr><th>Name</th><th>Price</th></tr></thead>
		<tbody><tr><td>Widget</td><td>$5</td></tr></tbody>
	</table></body>`)

	md := toMarkdown(body)

	assert.Contains(t, md, "| Name | Price |")
	assert.Contains(t, md, "| Widget | $5 |")
	assert.Contains(t, md, "---")
}

func TestToMarkdown_EscapesPipeCharacterInCells(t *testing.T) {
	body := parseBody(t, `<body><table><tr><td>a | b</td></tr></table></body>`)

	md := toMarkdown(body)

	assert.Contains(t, md, `a \| b`)
}
