package stock

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"sitestock/internal/errs"
	"sitestock/internal/sheet"
)

func row(name, store, qty, shelf string) []string {
	cells := make([]string, MinColumns)
	cells[0] = "x"
	cells[ColName] = name
	cells[ColStore] = store
	cells[ColQuantity] = qty
	cells[ColShelf] = shelf
	return cells
}

func TestNormalizeTooFewColumns(t *testing.T) {
	table := sheet.Table{make([]string, 10), make([]string, 8)}
	_, err := Normalize(table)
	var fe *errs.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v", err)
	}
	if fe.Required != 17 || fe.Found != 10 {
		t.Fatalf("required=%d found=%d", fe.Required, fe.Found)
	}
}

func TestNormalizeEmptyTable(t *testing.T) {
	if _, err := Normalize(nil); !errors.Is(err, errs.ErrFormat) {
		t.Fatalf("err=%v", err)
	}
}

func TestNormalizeRowsAndCandidates(t *testing.T) {
	table := sheet.Table{
		row("Bag cement 50kg", "A", "10", "S1"),
		row("", "A", "99", "S9"),
		row("  Sand ", "B", "3,5", "S2"),
		row("BAG CEMENT 50KG", "B", "5", "S3"),
		row("Gravel", "C", "", "S4"),
	}

	s, err := Normalize(table)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Rows) != 4 || s.SkippedRows != 1 {
		t.Fatalf("rows=%d skipped=%d", len(s.Rows), s.SkippedRows)
	}
	want := []string{"bag cement 50kg", "sand", "gravel"}
	if len(s.Candidates) != len(want) {
		t.Fatalf("candidates=%v", s.Candidates)
	}
	for i := range want {
		if s.Candidates[i] != want[i] {
			t.Fatalf("candidates=%v", s.Candidates)
		}
	}
	if got := s.Rows[1].Quantity.String(); got != "3.5" {
		t.Fatalf("qty=%s", got)
	}
	if !s.Rows[3].Quantity.IsZero() {
		t.Fatal("blank quantity must be zero")
	}

	cement := s.RowsFor(" Bag Cement 50KG")
	if len(cement) != 2 || cement[0].Store != "A" || cement[1].Store != "B" {
		t.Fatalf("rows for cement=%v", cement)
	}
	if cement[1].RowNumber != 4 {
		t.Fatalf("row number=%d", cement[1].RowNumber)
	}
}

func TestNormalizeShortRowsInsideWideTable(t *testing.T) {
	table := sheet.Table{
		row("Rebar", "A", "2", "S1"),
		{"x", "Nails"},
	}
	s, err := Normalize(table)
	if err != nil {
		t.Fatal(err)
	}
	nails := s.RowsFor("nails")
	if len(nails) != 1 || nails[0].Store != "" || !nails[0].Quantity.IsZero() {
		t.Fatalf("nails=%v", nails)
	}
}

func TestNormalizeRejectsShiftedLayout(t *testing.T) {
	table := sheet.Table{
		row("Rebar", "A", "Склад 1", "S1"),
		row("Sand", "B", "Склад 2", "S2"),
	}
	if _, err := Normalize(table); !errors.Is(err, errs.ErrFormat) {
		t.Fatalf("err=%v", err)
	}
}

func TestNormalizeTalliesBadQuantities(t *testing.T) {
	table := sheet.Table{
		row("Name", "Store", "Qty", "Shelf"),
		row("Sand", "B", "4", "S2"),
	}
	s, err := Normalize(table)
	if err != nil {
		t.Fatal(err)
	}
	if s.BadQuantities != 1 || len(s.Rows) != 2 {
		t.Fatalf("bad=%d rows=%d", s.BadQuantities, len(s.Rows))
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0.125", "0.125", true},
		{"1.005", "1.005", true},
		{"2.000", "2", true},
		{"12.375", "12.375", true},
		{" 7 ", "7", true},
		{"3,5", "3.5", true},
		{"1 250,5", "1250.5", true},
		{"1,250", "1250", true},
		{"n/a", "0", false},
	}
	for _, tc := range cases {
		got, ok := parseQuantity(tc.in)
		if ok != tc.ok || got.String() != tc.want {
			t.Fatalf("parseQuantity(%q)=%s,%v want %s,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func mkStockXLSX(t *testing.T, rows [][3]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	name := f.GetSheetName(0)
	for r, row := range rows {
		for i, col := range []int{ColName, ColStore, ColQuantity} {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+1)
			_ = f.SetCellValue(name, cell, row[i])
		}
		cell, _ := excelize.CoordinatesToCellName(ColShelf+1, r+1)
		_ = f.SetCellValue(name, cell, "S1")
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalizeXLSXFractionalQuantities(t *testing.T) {
	blob := mkStockXLSX(t, [][3]any{
		{"Wire 2.5mm", "A", 0.125},
		{"Wire 2.5mm", "B", 1.005},
		{"Sand", "A", 12.375},
		{"Nails", "C", 2000},
	})
	table, err := sheet.Decode(blob, "")
	if err != nil {
		t.Fatal(err)
	}
	s, err := Normalize(table)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"0.125", "1.005", "12.375", "2000"}
	if len(s.Rows) != len(want) || s.BadQuantities != 0 {
		t.Fatalf("rows=%+v bad=%d", s.Rows, s.BadQuantities)
	}
	for i, w := range want {
		if got := s.Rows[i].Quantity.String(); got != w {
			t.Fatalf("row %d quantity=%s want %s", i, got, w)
		}
	}
}
