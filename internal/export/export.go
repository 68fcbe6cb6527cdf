// Package export writes reconciliation tables and ledger summaries as xlsx.
package export

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"sitestock/internal"
	"sitestock/internal/reconcile"
)

const (
	FoundSheet    = "found"
	NotFoundSheet = "not found"
	LedgerSheet   = "ledger"
)

var reconciliationHeaders = []string{"planned_name", "unit", "quantity", "stores", "shelves", "score", "stock_name"}

var ledgerHeaders = []string{"material", "unit", "planned", "received", "outstanding", "shipments", "planned_material"}

// Reconciliation writes found rows and not-found rows to separate sheets,
// each in table order.
func Reconciliation(table reconcile.Table, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), FoundSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(NotFoundSheet); err != nil {
		return err
	}

	writeReconciliationRows(f, FoundSheet, table.Found())
	writeReconciliationRows(f, NotFoundSheet, table.NotFound())
	return save(f, outputPath)
}

func writeReconciliationRows(f *excelize.File, sheet string, rows []internal.ReconciliationRow) {
	writeHeader(f, sheet, reconciliationHeaders)
	for i, row := range rows {
		set := rowSetter(f, sheet, i+2)
		set(1, row.PlannedName)
		set(2, row.Unit)
		set(3, row.Quantity)
		set(4, row.Stores)
		set(5, row.Shelves)
		set(6, row.Score)
		set(7, row.StockName)
	}
}

// Ledger writes the planned-vs-received summary. Unplanned rows have an empty
// planned_material cell.
func Ledger(rows []internal.LedgerRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), LedgerSheet); err != nil {
		return err
	}
	writeHeader(f, LedgerSheet, ledgerHeaders)
	for i, row := range rows {
		set := rowSetter(f, LedgerSheet, i+2)
		set(1, row.Name)
		set(2, row.Unit)
		set(3, row.Planned)
		set(4, row.Received)
		set(5, row.Outstanding)
		set(6, row.Shipments)
		if row.MaterialID != nil {
			set(7, *row.MaterialID)
		} else {
			set(7, "")
		}
	}
	return save(f, outputPath)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func rowSetter(f *excelize.File, sheet string, r int) func(col int, value any) {
	return func(col int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, r)
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
