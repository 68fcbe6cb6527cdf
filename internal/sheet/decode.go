package sheet

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"

	"sitestock/internal/errs"
	"sitestock/internal/util"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte("\xEF\xBB\xBF")
)

// Table is a headerless grid of cells: row 0 is data like every other row
// and columns are addressed by position only.
type Table [][]string

// Width is the cell count of the widest row.
func (t Table) Width() int {
	w := 0
	for _, row := range t {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Decode parses a fetched body as xlsx, an HTML table, or CSV.
func Decode(body []byte, contentType string) (Table, error) {
	switch {
	case len(bytes.TrimSpace(body)) == 0:
		return nil, &errs.FormatError{Reason: "empty document"}
	case bytes.HasPrefix(body, zipMagic):
		return decodeXLSX(body)
	case isHTML(contentType, body):
		return decodeHTML(body)
	default:
		return decodeCSV(body)
	}
}

func decodeXLSX(body []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, &errs.FormatError{Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &errs.FormatError{Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &errs.FormatError{Reason: "cannot read sheet " + sheets[0], Err: err}
	}
	return Table(rows), nil
}

// decodeHTML reads the first table of the page. Only td cells are data; th
// cells carry row numbers or column letters in published sheets.
func decodeHTML(body []byte) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &errs.FormatError{Reason: "cannot parse HTML", Err: err}
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, &errs.FormatError{Reason: "HTML page contains no table"}
	}

	out := Table{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := []string{}
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, util.CollapseSpaces(td.Text()))
		})
		if len(cells) > 0 {
			out = append(out, cells)
		}
	})
	return out, nil
}

func decodeCSV(body []byte) (Table, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(body)

	records, err := r.ReadAll()
	if err != nil {
		return nil, &errs.FormatError{Reason: "cannot parse CSV", Err: err}
	}
	return Table(records), nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas,
// which is how spreadsheet software in comma-decimal locales writes CSV.
func sniffDelimiter(body []byte) rune {
	first := body
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		first = body[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) || bytes.Contains(head, []byte("<table"))
}
