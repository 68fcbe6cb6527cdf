package util

import "testing"

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Bag Cement 50KG \t"); got != "bag cement 50kg" {
		t.Fatalf("got %q", got)
	}
}

func TestTokenSortKey(t *testing.T) {
	a := TokenSortKey("steel pipe 20mm")
	b := TokenSortKey("pipe  20mm steel")
	if a != b || a != "20mm pipe steel" {
		t.Fatalf("a=%q b=%q", a, b)
	}
	if TokenSortKey("   ") != "" {
		t.Fatal("blank input must give empty key")
	}
}

func TestSafeGet(t *testing.T) {
	row := []string{"a", " b "}
	if SafeGet(row, 1) != "b" || SafeGet(row, 5) != "" || SafeGet(row, -1) != "" {
		t.Fatal("unexpected SafeGet result")
	}
}
