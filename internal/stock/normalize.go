// Package stock turns a fetched warehouse sheet into stock rows and the
// candidate names the matcher searches.
//
// Sheets are read by position. A stock sheet must have at least 17 columns
// with the material name in column B, the store in M, the quantity in N and
// the shelf code in Q (zero-based 1, 12, 13, 16). Sheets with another layout
// are misread; the only guard is the quantity column check in Normalize.
package stock

import (
	"strings"

	"github.com/shopspring/decimal"

	"sitestock/internal"
	"sitestock/internal/errs"
	"sitestock/internal/sheet"
	"sitestock/internal/util"
)

const (
	MinColumns = 17

	ColName     = 1
	ColStore    = 12
	ColQuantity = 13
	ColShelf    = 16
)

type Sheet struct {
	Rows []internal.StockRow
	// Candidates holds every distinct normalized name once, in the order
	// the names first appear in the sheet.
	Candidates []string

	SkippedRows   int
	BadQuantities int

	byName map[string][]int
}

// Normalize validates the table shape and extracts the stock rows. Rows
// without a name are dropped; a blank or unreadable quantity counts as zero.
func Normalize(table sheet.Table) (*Sheet, error) {
	if width := table.Width(); width < MinColumns {
		return nil, &errs.FormatError{Required: MinColumns, Found: width}
	}

	s := &Sheet{byName: map[string][]int{}}
	filledQty := 0
	for i, cells := range table {
		name := util.CollapseSpaces(util.SafeGet(cells, ColName))
		if name == "" {
			s.SkippedRows++
			continue
		}

		qtyCell := util.SafeGet(cells, ColQuantity)
		qty := decimal.Zero
		if qtyCell != "" {
			filledQty++
			if parsed, ok := parseQuantity(qtyCell); ok {
				qty = parsed
			} else {
				s.BadQuantities++
			}
		}

		row := internal.StockRow{
			RowNumber: i + 1,
			Name:      name,
			Store:     util.SafeGet(cells, ColStore),
			Quantity:  qty,
			Shelf:     util.SafeGet(cells, ColShelf),
		}

		key := util.NormalizeName(name)
		if _, seen := s.byName[key]; !seen {
			s.Candidates = append(s.Candidates, key)
		}
		s.byName[key] = append(s.byName[key], len(s.Rows))
		s.Rows = append(s.Rows, row)
	}

	if filledQty > 0 && s.BadQuantities == filledQty {
		return nil, &errs.FormatError{Reason: "quantity column N holds no numbers, the sheet layout does not match"}
	}
	return s, nil
}

// RowsFor returns the rows whose name normalizes to name, in sheet order.
func (s *Sheet) RowsFor(name string) []internal.StockRow {
	idx := s.byName[util.NormalizeName(name)]
	out := make([]internal.StockRow, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Rows[i])
	}
	return out
}

// parseQuantity reads a plain dot-decimal number first, which is how xlsx
// raw cells arrive. Only cells that fail that are read as locale text with a
// comma decimal or grouped thousands.
func parseQuantity(cell string) (decimal.Decimal, bool) {
	if d, err := decimal.NewFromString(strings.TrimSpace(cell)); err == nil {
		return d, true
	}
	d, err := decimal.NewFromString(util.NormalizeNumericToken(cell))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
