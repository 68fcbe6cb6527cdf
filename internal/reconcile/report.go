package reconcile

import (
	"sort"
	"strings"

	"sitestock/internal"
	"sitestock/internal/match"
	"sitestock/internal/stock"
)

// Table is the result of one reconciliation, sorted by score descending and
// then by planned name.
type Table struct {
	Rows      []internal.ReconciliationRow
	Threshold int
}

// Found returns the rows that have stock locations.
func (t Table) Found() []internal.ReconciliationRow {
	return t.filter(true)
}

func (t Table) NotFound() []internal.ReconciliationRow {
	return t.filter(false)
}

func (t Table) filter(found bool) []internal.ReconciliationRow {
	out := []internal.ReconciliationRow{}
	for _, row := range t.Rows {
		if (row.Stores != internal.Placeholder) == found {
			out = append(out, row)
		}
	}
	return out
}

// DistinctPlanned drops repeated planned names, comparing trimmed names.
// The first occurrence and its unit are kept.
func DistinctPlanned(plan []internal.PlannedMaterial) []internal.PlannedMaterial {
	seen := map[string]struct{}{}
	out := make([]internal.PlannedMaterial, 0, len(plan))
	for _, p := range plan {
		key := strings.TrimSpace(p.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, internal.PlannedMaterial{Name: key, Unit: strings.TrimSpace(p.Unit)})
	}
	return out
}

// MatchAll runs the matcher once per distinct planned name.
func MatchAll(plan []internal.PlannedMaterial, m *match.Matcher) []internal.MatchResult {
	distinct := DistinctPlanned(plan)
	out := make([]internal.MatchResult, 0, len(distinct))
	for _, p := range distinct {
		res := m.Best(p.Name)
		mr := internal.MatchResult{Planned: p}
		if res.OK {
			name := res.Name
			mr.MatchedStockName = &name
			mr.Score = res.Score
		}
		out = append(out, mr)
	}
	return out
}

// Reconcile matches plan against the normalized stock sheet and builds the
// report table.
func Reconcile(plan []internal.PlannedMaterial, s *stock.Sheet, threshold int) Table {
	m := match.NewMatcher(s.Candidates, threshold)
	return buildTable(MatchAll(plan, m), newAggregator(s), m.Threshold())
}

func buildTable(results []internal.MatchResult, agg *aggregator, threshold int) Table {
	rows := make([]internal.ReconciliationRow, 0, len(results))
	for _, res := range results {
		row := internal.ReconciliationRow{
			PlannedName: res.Planned.Name,
			Unit:        res.Planned.Unit,
			Stores:      internal.Placeholder,
			Shelves:     internal.Placeholder,
		}
		if res.Matched() {
			folded := agg.get(*res.MatchedStockName)
			row.Quantity = folded.TotalQuantity.Round(2).InexactFloat64()
			row.Stores = folded.StoresDisplay()
			row.Shelves = folded.ShelvesDisplay()
			row.Score = res.Score
			row.StockName = folded.StockName
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].PlannedName < rows[j].PlannedName
	})
	return Table{Rows: rows, Threshold: threshold}
}
