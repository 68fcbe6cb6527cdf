package pipeline

import (
	"testing"

	"sitestock/internal/sheet"
)

func TestParsePlanTableWithHeader(t *testing.T) {
	table := sheet.Table{
		{"Смета: корпус Б"},
		{"Материал", "Ед.", "Кол-во план"},
		{"Cement bag 50kg", "мешков", "40"},
		{"Rebar 12mm", "м", "1 250,5"},
		{"", "", ""},
		{"Итого", "", "1290"},
	}
	plan := ParsePlanTable(table)
	if len(plan) != 2 {
		t.Fatalf("plan=%+v", plan)
	}
	if plan[0].Name != "Cement bag 50kg" || plan[0].Unit != "мешок" || plan[0].PlannedQty != 40 {
		t.Fatalf("plan[0]=%+v", plan[0])
	}
	if plan[1].PlannedQty != 1250.5 {
		t.Fatalf("plan[1]=%+v", plan[1])
	}
}

func TestParsePlanXLSXHeaderless(t *testing.T) {
	plan, err := ParsePlanXLSX(mkXLSX([][]any{
		{"Sand", "т", 12},
		{"Drill bit 6mm", "шт"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || plan[0].PlannedQty != 12 || plan[1].PlannedQty != 0 || plan[1].Unit != "шт" {
		t.Fatalf("plan=%+v", plan)
	}
}

func TestParsePlanXLSXFractionalQuantities(t *testing.T) {
	plan, err := ParsePlanXLSX(mkXLSX([][]any{
		{"Наименование", "Ед.", "План"},
		{"Wire 2.5mm", "м", 0.125},
		{"Grout", "кг", 1.005},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || plan[0].PlannedQty != 0.125 || plan[1].PlannedQty != 1.005 {
		t.Fatalf("plan=%+v", plan)
	}
}
