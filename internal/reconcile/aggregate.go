package reconcile

import (
	"github.com/shopspring/decimal"

	"sitestock/internal"
	"sitestock/internal/stock"
)

// aggregator folds the stock rows behind a matched name. It lives for one
// reconciliation run and computes each name at most once.
type aggregator struct {
	sheet *stock.Sheet
	cache map[string]internal.AggregatedStock
	calls int
}

func newAggregator(s *stock.Sheet) *aggregator {
	return &aggregator{sheet: s, cache: map[string]internal.AggregatedStock{}}
}

func (a *aggregator) get(name string) internal.AggregatedStock {
	if agg, ok := a.cache[name]; ok {
		return agg
	}
	a.calls++

	rows := a.sheet.RowsFor(name)
	agg := internal.AggregatedStock{
		StockName:     name,
		TotalQuantity: decimal.Zero,
		Stores:        make([]string, 0, len(rows)),
		Shelves:       make([]string, 0, len(rows)),
	}
	for _, row := range rows {
		agg.TotalQuantity = agg.TotalQuantity.Add(row.Quantity)
		agg.Stores = append(agg.Stores, row.Store)
		agg.Shelves = append(agg.Shelves, row.Shelf)
	}

	a.cache[name] = agg
	return agg
}
