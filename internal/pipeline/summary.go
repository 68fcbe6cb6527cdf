package pipeline

import (
	"github.com/shopspring/decimal"

	"sitestock/internal"
	"sitestock/internal/util"
)

// Summarize compares planned and received quantities per material, in plan
// order. Ledger rows without a material id are grouped by name after the
// planned materials with a planned quantity of zero. Units are not converted.
func Summarize(materials []internal.MaterialRecord, shipments []internal.Shipment) []internal.LedgerRow {
	received := map[int]decimal.Decimal{}
	counts := map[int]int{}

	type unplanned struct {
		row      internal.LedgerRow
		received decimal.Decimal
	}
	var extraOrder []string
	extra := map[string]*unplanned{}

	for _, s := range shipments {
		qty := decimal.NewFromFloat(s.Qty)
		if s.MaterialID != nil {
			received[*s.MaterialID] = received[*s.MaterialID].Add(qty)
			counts[*s.MaterialID]++
			continue
		}
		key := util.NormalizeName(s.MaterialName)
		u, ok := extra[key]
		if !ok {
			u = &unplanned{row: internal.LedgerRow{Name: s.MaterialName, Unit: s.Unit}}
			extra[key] = u
			extraOrder = append(extraOrder, key)
		}
		u.received = u.received.Add(qty)
		u.row.Shipments++
	}

	out := make([]internal.LedgerRow, 0, len(materials)+len(extraOrder))
	for _, m := range materials {
		planned := decimal.NewFromFloat(m.PlannedQty)
		got := received[m.ID]
		out = append(out, internal.LedgerRow{
			MaterialID:  util.IntPtr(m.ID),
			Name:        m.Name,
			Unit:        m.Unit,
			Planned:     planned.Round(2).InexactFloat64(),
			Received:    got.Round(2).InexactFloat64(),
			Outstanding: planned.Sub(got).Round(2).InexactFloat64(),
			Shipments:   counts[m.ID],
		})
	}
	for _, key := range extraOrder {
		u := extra[key]
		u.row.Received = u.received.Round(2).InexactFloat64()
		out = append(out, u.row)
	}
	return out
}
