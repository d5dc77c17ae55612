package extraction

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// extractTables walks every <table> under scope and produces a
// models.Table per element, including a header-keyed JSON projection.
// Missing cells in a row default to "" in both the Rows and Projection
// views.
func (e *Extractor) extractTables(scope *goquery.Selection) []models.Table {
	var tables []models.Table

	scope.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var headers []string
		headerRow := tbl.Find("thead tr").First()
		if headerRow.Length() == 0 {
			headerRow = tbl.Find("tr").First()
		}
		headerRow.Find("th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(th.Text()))
		})
		if len(headers) == 0 {
			headerRow.Find("td").Each(func(_ int, td *goquery.Selection) {
				headers = append(headers, strings.TrimSpace(td.Text()))
			})
		}

		var rows [][]string
		bodyRows := tbl.Find("tbody tr")
		if bodyRows.Length() == 0 {
			bodyRows = tbl.Find("tr")
		}
		bodyRows.Each(func(i int, tr *goquery.Selection) {
			// Skip the row we already consumed as the header, when there
			// was no explicit thead.
			if tbl.Find("thead tr").Length() == 0 && tr.IsSelection(tbl.Find("tr").First()) {
				return
			}
			var row []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				row = append(row, strings.TrimSpace(td.Text()))
			})
			if len(row) > 0 {
				rows = append(rows, row)
			}
		})

		caption := strings.TrimSpace(tbl.Find("caption").First().Text())
		id, _ := tbl.Attr("id")

		projection := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(row) {
					item[h] = row[i]
				} else {
					item[h] = ""
				}
			}
			projection = append(projection, item)
		}

		tables = append(tables, models.Table{
			Headers:    headers,
			Rows:       rows,
			Caption:    caption,
			ID:         id,
			Projection: projection,
		})
	})

	return tables
}
