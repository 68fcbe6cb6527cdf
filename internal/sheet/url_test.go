package sheet

import "testing"

func TestResolveURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			in:   "https://docs.google.com/spreadsheets/d/ABC123/edit#gid=0",
			want: "https://docs.google.com/spreadsheets/d/ABC123/export?format=xlsx",
		},
		{
			in:   " https://docs.google.com/spreadsheets/d/1a-B_c/edit?usp=sharing ",
			want: "https://docs.google.com/spreadsheets/d/1a-B_c/export?format=xlsx",
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/ABC123/export?format=csv",
			want: "https://docs.google.com/spreadsheets/d/ABC123/export?format=csv",
		},
		{
			in:   "https://files.example.com/stock.xlsx",
			want: "https://files.example.com/stock.xlsx",
		},
	}
	for _, tc := range cases {
		if got := ResolveURL(tc.in); got != tc.want {
			t.Fatalf("ResolveURL(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestSpreadsheetID(t *testing.T) {
	id, ok := SpreadsheetID("https://docs.google.com/spreadsheets/d/ABC123/edit#gid=0")
	if !ok || id != "ABC123" {
		t.Fatalf("id=%q ok=%v", id, ok)
	}
	if _, ok := SpreadsheetID("https://example.com/spreadsheets/d/ABC123/edit"); ok {
		t.Fatal("non-google host must not yield an id")
	}
}
