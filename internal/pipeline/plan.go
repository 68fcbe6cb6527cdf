package pipeline

import (
	"sitestock/internal"
	"sitestock/internal/sheet"
	"sitestock/internal/util"
)

var planQtyProbes = append(append([]string{}, qtyProbes...), "план", "planned")

// ParsePlanTable reads a bill of materials. The header row, if any, must be
// within the first three rows and rows above it are ignored; without one the
// columns are name, unit, planned quantity.
func ParsePlanTable(table sheet.Table) []internal.MaterialRecord {
	cols := columns{name: 0, unit: 1, qty: 2}
	first := 0
	for i := 0; i < len(table) && i < 3; i++ {
		cells := normalizeCells(table[i])
		probe := inferColumns(cells)
		if probe.name < 0 {
			continue
		}
		probe.qty = findHeaderIndex(lowerCells(cells), planQtyProbes)
		cols, first = probe, i+1
		break
	}

	out := []internal.MaterialRecord{}
	for _, row := range table[first:] {
		cells := normalizeCells(row)
		name := pickCell(cells, cols.name, -1)
		if name == "" || isLikelyNoise(name) {
			continue
		}
		m := internal.MaterialRecord{Name: name}
		if unit := pickCell(cells, cols.unit, -1); unit != "" {
			m.Unit = util.NormalizeUnit(unit)
		}
		if qty, ok := util.ParseCellNumber(pickCell(cells, cols.qty, -1)); ok {
			m.PlannedQty = qty
		}
		out = append(out, m)
	}
	return out
}

// ParsePlanXLSX reads the first worksheet of an xlsx bill of materials.
func ParsePlanXLSX(blob []byte) ([]internal.MaterialRecord, error) {
	table, err := sheet.Decode(blob, "")
	if err != nil {
		return nil, err
	}
	return ParsePlanTable(table), nil
}

func lowerCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, util.NormalizeName(c))
	}
	return out
}
