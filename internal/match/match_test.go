package match

import "testing"

func TestTokenSortRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"cement bag 50kg", "bag cement 50kg", 100},
		{"pipe 20mm steel", "steel pipe 20mm", 100},
		{"pipe  20mm", "20mm pipe", 100},
		{"abc", "abd", 67},
		{"abc", "xyz", 0},
		{"", "sand", 0},
		{"", "", 0},
	}
	for _, tc := range cases {
		if got := TokenSortRatio(tc.a, tc.b); got != tc.want {
			t.Fatalf("TokenSortRatio(%q, %q)=%d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTokenSortRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"rebar 12mm", "rebar 10mm"},
		{"цемент м500", "цемент м400 мешок"},
		{"tape measure", "6mm bit drill"},
	}
	for _, p := range pairs {
		if TokenSortRatio(p[0], p[1]) != TokenSortRatio(p[1], p[0]) {
			t.Fatalf("asymmetric score for %q / %q", p[0], p[1])
		}
	}
}

func TestBestReorderedName(t *testing.T) {
	m := NewMatcher([]string{"sand", "bag cement 50kg"}, 80)
	res := m.Best("  Cement bag 50kg ")
	if !res.OK || res.Name != "bag cement 50kg" || res.Score != 100 {
		t.Fatalf("res=%+v", res)
	}
}

func TestBestBelowThreshold(t *testing.T) {
	m := NewMatcher([]string{"hammer", "tape measure"}, DefaultThreshold)
	res := m.Best("drill bit 6mm")
	if res.OK || res.Score != 0 || res.Name != "" {
		t.Fatalf("res=%+v", res)
	}
}

func TestBestTieKeepsFirstCandidate(t *testing.T) {
	m := NewMatcher([]string{"abd", "abe"}, 60)
	res := m.Best("abc")
	if !res.OK || res.Name != "abd" || res.Score != 67 {
		t.Fatalf("res=%+v", res)
	}

	m = NewMatcher([]string{"abe", "abd"}, 60)
	if res := m.Best("abc"); res.Name != "abe" {
		t.Fatalf("res=%+v", res)
	}
}

func TestBestThresholdIsInclusive(t *testing.T) {
	if res := NewMatcher([]string{"abd"}, 67).Best("abc"); !res.OK {
		t.Fatalf("score equal to threshold must match: %+v", res)
	}
	if res := NewMatcher([]string{"abd"}, 68).Best("abc"); res.OK {
		t.Fatalf("score below threshold must not match: %+v", res)
	}
}

func TestBestEmptyInputs(t *testing.T) {
	if res := NewMatcher(nil, 0).Best("sand"); res.OK {
		t.Fatalf("res=%+v", res)
	}
	if res := NewMatcher([]string{"sand"}, 0).Best("   "); res.OK {
		t.Fatalf("res=%+v", res)
	}
}

func TestNewMatcherThresholdFallback(t *testing.T) {
	if got := NewMatcher(nil, 150).Threshold(); got != DefaultThreshold {
		t.Fatalf("threshold=%d", got)
	}
	if got := NewMatcher(nil, -1).Threshold(); got != DefaultThreshold {
		t.Fatalf("threshold=%d", got)
	}
}

func TestBestMemoizesQuery(t *testing.T) {
	m := NewMatcher([]string{"sand"}, 80)
	first := m.Best("Sand")
	m.candidates = nil
	if again := m.Best(" sand"); again != first {
		t.Fatalf("first=%+v again=%+v", first, again)
	}
}
