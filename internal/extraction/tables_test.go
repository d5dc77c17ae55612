package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Header detection: thead > bare first row > none
// ============================================================================

func TestExtractTables_UsesTheadForHeaders(t *testing.T) {
	e := New()
	html := `<html><body><table>
		<thead><tr><th>Name</th><th>Price</th></tr></thead>
		<tbody><tr><td>Widget</td><td>5</td></tr></tbody>
	</table></body></html>`

	out, err := e.Extract(html, "https://example.com/")
	require.NoError(t, err)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, []string{"Name", "Price"}, out.Tables[0].Headers)
	assert.Equal(t, [][]string{{"Widget", "5"}}, out.Tables[0].Rows)
}

func TestExtractTables_FallsBackToFirstRowAsHeaderWithoutThead(t *testing.T) {
	e := New()
	html := `<html><body><table>
		<tr><th>Col A</th><th>Col B</th></tr>
		<tr><td>1</td><td>2</td></tr>
	</table></body></html>`

	out, err := e.Extract(html, "https://example.com/")
	require.NoError(t, err)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, []string{"Col A", "Col B"}, out.Tables[0].Headers)
	assert.Equal(t, [][]string{{"1", "2"}}, out.Tables[0].Rows)
}

// ============================================================================
// Projection: header-keyed rows, missing cells default to ""
// ============================================================================

func TestExtractTables_ProjectionDefaultsMissingCellsToEmptyString(t *testing.T) {
	e := New()
	html := `<html><body><table>
		<thead><tr><th>A</th><th>B</th><th>C</th></tr></thead>
		<tbody><tr><td>only-a</td></tr></tbody>
	</table></body></html>`

	out, err := e.Extract(html, "https://example.com/")
	require.NoError(t, err)
	require.Len(t, out.Tables, 1)
	require.Len(t, out.Tables[0].Projection, 1)
	assert.Equal(t, "only-a", out.Tables[0].Projection[0]["A"])
	assert.Equal(t, "", out.Tables[0].Projection[0]["B"])
	assert.Equal(t, "", out.Tables[0].Projection[0]["C"])
}

// ============================================================================
// Caption and id
// ============================================================================

func TestExtractTables_CapturesCaptionAndID(t *testing.T) {
	e := New()
	html := `<html><body><table id="prices">
		<caption>Price List</caption>
		<thead><tr><th>Item</th></tr></thead>
		<tbody><tr><td>x</td></tr></tbody>
	</table></body></html>`

	out, err := e.Extract(html, "https://example.com/")
	require.NoError(t, err)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "Price List", out.Tables[0].Caption)
	assert.Equal(t, "prices", out.Tables[0].ID)
}

// ============================================================================
// Multiple tables
// ============================================================================

func TestExtractTables_ExtractsMultipleTablesIndependently(t *testing.T) {
	e := New()
	html := `<html><body>
		<table><thead><tr><th>X</th></tr></thead><tbody><tr><td>1</td></tr></tbody></table>
		<table><thead><tr><th>Y</th></tr></thead><tbody><tr><td>2</td></tr></tbody></table>
	</body></html>`

	out, err := e.Extract(html, "https://example.com/")
	require.NoError(t, err)
	require.Len(t, out.Tables, 2)
	assert.Equal(t, []string{"X"}, out.Tables[0].Headers)
	assert.Equal(t, []string{"Y"}, out.Tables[1].Headers)
}

func TestExtractTables_NoTablesYieldsEmptySlice(t *testing.T) {
	e := New()
	html := `<html><body><p>` + strings.Repeat("word ", 20) + `</p></body></html>`

	out, err := e.Extract(html, "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, out.Tables)
}
