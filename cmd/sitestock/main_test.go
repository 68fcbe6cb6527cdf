package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadPlanXLSX(t *testing.T) {
	f := excelize.NewFile()
	name := f.GetSheetName(0)
	for r, row := range [][]any{
		{"Наименование", "Ед. изм.", "План"},
		{"Цемент М500", "мешков", 40},
		{"Песок речной", "т", 10.5},
	} {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(name, cell, v)
		}
	}
	path := filepath.Join(t.TempDir(), "plan.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	plan, err := readPlan(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || plan[0].Name != "Цемент М500" || plan[0].Unit != "мешок" || plan[1].PlannedQty != 10.5 {
		t.Fatalf("plan=%+v", plan)
	}
}

func TestReadPlanCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.csv")
	if err := os.WriteFile(path, []byte("Песок речной,т,10\nГвозди,кг,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	plan, err := readPlan(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || plan[1].Name != "Гвозди" || plan[1].PlannedQty != 2 {
		t.Fatalf("plan=%+v", plan)
	}
}
