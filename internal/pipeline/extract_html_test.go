package pipeline

import "testing"

func TestParseNoteHTMLTable(t *testing.T) {
	html := `<table>
<tr><th>№</th><th>Наименование</th><th>Кол-во</th><th>Ед. изм.</th></tr>
<tr><td>1</td><td>Цемент М500</td><td>10</td><td>мешков</td></tr>
<tr><td>2</td><td>Песок  речной</td><td>2,5</td><td>т</td></tr>
<tr><td></td><td>Итого</td><td>12,5</td><td></td></tr>
</table>`
	items := parseNoteHTMLTable(html)
	if len(items) != 2 {
		t.Fatalf("len=%d items=%+v", len(items), items)
	}
	if *items[0].Name != "Цемент М500" || *items[0].Qty != 10 || *items[0].Unit != "мешок" {
		t.Fatalf("item0=%+v", items[0])
	}
	if *items[1].Name != "Песок речной" || *items[1].Qty != 2.5 {
		t.Fatalf("item1=%+v", items[1])
	}
}

func TestParseNoteHTMLTableSkipsSingleRowTables(t *testing.T) {
	if items := parseNoteHTMLTable(`<table><tr><td>Песок</td><td>5</td></tr></table>`); len(items) != 0 {
		t.Fatalf("items=%+v", items)
	}
}
