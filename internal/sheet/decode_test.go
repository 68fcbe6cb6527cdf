package sheet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"sitestock/internal/errs"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestDecodeXLSXKeepsFirstRow(t *testing.T) {
	blob := mkXLSX([][]any{
		{"1", "Bag cement 50kg", "A"},
		{"2", "Sand", "B"},
	})
	table, err := Decode(blob, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 {
		t.Fatalf("rows=%d", len(table))
	}
	if table[0][1] != "Bag cement 50kg" {
		t.Fatalf("first row treated as header: %v", table[0])
	}
	if table.Width() != 3 {
		t.Fatalf("width=%d", table.Width())
	}
}

func TestDecodeCSVSemicolon(t *testing.T) {
	body := []byte("\xEF\xBB\xBF1;Цемент;3,5\n2;Песок;10\n")
	table, err := Decode(body, "text/csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 || table[0][1] != "Цемент" || table[0][2] != "3,5" {
		t.Fatalf("table=%v", table)
	}
}

func TestDecodeHTMLSkipsHeaderCells(t *testing.T) {
	html := `<html><body><table>
<thead><tr><th></th><th>A</th><th>B</th></tr></thead>
<tbody>
<tr><th>1</th><td>10</td><td> Steel  pipe </td></tr>
<tr><th>2</th><td>11</td><td>Rebar</td></tr>
</tbody></table></body></html>`
	table, err := Decode([]byte(html), "text/html; charset=utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 {
		t.Fatalf("rows=%d", len(table))
	}
	if table[0][0] != "10" || table[0][1] != "Steel pipe" {
		t.Fatalf("row=%v", table[0])
	}
}

func TestDecodeFailures(t *testing.T) {
	cases := map[string][]byte{
		"empty":         []byte("  \n"),
		"html no table": []byte("<html><body><p>Sign in</p></body></html>"),
		"broken zip":    append([]byte("PK\x03\x04"), []byte("garbage")...),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(body, "")
			if !errors.Is(err, errs.ErrFormat) {
				t.Fatalf("err=%v", err)
			}
		})
	}
}
