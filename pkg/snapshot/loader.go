// Package snapshot turns a fetched transaction table into detail records.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Cell is one table cell. Parts holds the text of each nested child node,
// bare text nodes included.
type Cell struct {
	Text  string
	Parts []string
}

// Row is one table row.
type Row []Cell

// TableLoader turns a raw table body into rows of cells.
type TableLoader interface {
	LoadTable(raw string) ([]Row, error)
}

// HTMLLoader loads a fragment of <tr> elements.
type HTMLLoader struct{}

// LoadTable parses raw as the body of a table and returns one Row per tr.
func (HTMLLoader) LoadTable(raw string) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(wrapTable(raw)))
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot html: %w", err)
	}

	var rows []Row
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row Row
		tr.Children().Each(func(_ int, td *goquery.Selection) {
			cell := Cell{Text: td.Text()}
			td.Contents().Each(func(_ int, part *goquery.Selection) {
				cell.Parts = append(cell.Parts, part.Text())
			})
			row = append(row, cell)
		})
		rows = append(rows, row)
	})

	return rows, nil
}

// wrapTable makes a bare row fragment parseable; tr outside a table is dropped by the HTML parser.
func wrapTable(raw string) string {
	return "<html><body><table><tbody>" + raw + "</tbody></table></body></html>"
}
