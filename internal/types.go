package internal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder is shown in place of store and shelf for unmatched materials.
const Placeholder = "—"

// LocationSeparator joins store and shelf values of aggregated stock rows.
const LocationSeparator = "; "

type Project struct {
	ID        int
	Name      string
	CreatedAt string
}

type PlannedMaterial struct {
	Name string
	Unit string
}

// MaterialRecord is a planned material as kept by the plan store.
type MaterialRecord struct {
	ID         int
	ProjectID  int
	Name       string
	Unit       string
	PlannedQty float64
}

func (m MaterialRecord) Planned() PlannedMaterial {
	return PlannedMaterial{Name: m.Name, Unit: m.Unit}
}

// StockRow is one line of a fetched warehouse stock sheet.
type StockRow struct {
	RowNumber int
	Name      string
	Store     string
	Quantity  decimal.Decimal
	Shelf     string
}

type MatchResult struct {
	Planned          PlannedMaterial
	MatchedStockName *string
	Score            int
}

func (r MatchResult) Matched() bool {
	return r.MatchedStockName != nil
}

type AggregatedStock struct {
	StockName     string
	TotalQuantity decimal.Decimal
	Stores        []string
	Shelves       []string
}

func (a AggregatedStock) StoresDisplay() string {
	return strings.Join(a.Stores, LocationSeparator)
}

func (a AggregatedStock) ShelvesDisplay() string {
	return strings.Join(a.Shelves, LocationSeparator)
}

type ReconciliationRow struct {
	PlannedName string  `json:"plannedName"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"aggregatedQuantity"`
	Stores      string  `json:"storesDisplay"`
	Shelves     string  `json:"shelvesDisplay"`
	Score       int     `json:"score"`
	StockName   string  `json:"stockName,omitempty"`
}

type ShipmentSource string

const (
	SourceManual    ShipmentSource = "manual"
	SourceNoteText  ShipmentSource = "note_text"
	SourceNoteTable ShipmentSource = "note_html_table"
	SourceXLSX      ShipmentSource = "xlsx"
	SourcePDF       ShipmentSource = "pdf"
)

// NoteItem is one line extracted from a delivery note.
type NoteItem struct {
	LineNo  int
	Source  ShipmentSource
	RawLine string
	Name    *string
	Qty     *float64
	Unit    *string
	Meta    map[string]any
}

type Shipment struct {
	ID           int
	ProjectID    int
	MaterialID   *int
	MaterialName string
	Qty          float64
	Unit         string
	ReceivedAt   string
	Supplier     string
	Source       ShipmentSource
	RawLine      string
	MatchScore   int
	NoteRef      string
}

// LedgerRow compares planned and received quantities of one material.
type LedgerRow struct {
	MaterialID  *int
	Name        string
	Unit        string
	Planned     float64
	Received    float64
	Outstanding float64
	Shipments   int
}

// RunLog is one recorded reconciliation or intake run.
type RunLog struct {
	TraceID   string
	Kind      string
	ProjectID int
	Ref       string
	Status    string
	Timings   map[string]float64
	Counts    map[string]int
	CreatedAt string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
