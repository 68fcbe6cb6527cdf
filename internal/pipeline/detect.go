package pipeline

import (
	"regexp"
	"strings"

	"sitestock/internal/util"
)

// DetectResult scores a message out of 100. Signals lists what was found,
// in the order checked.
type DetectResult struct {
	IsNote  bool
	Score   int
	Signals []string
}

const noteScoreCut = 50

var (
	reNoteNumber = regexp.MustCompile(`(?i)(накладн\p{L}*|торг-?12|упд|waybill|delivery\s+note|packing\s+list)\s*(?:№|no\.?|#)?\s*\d+`)
	reNoteWord   = regexp.MustCompile(`(?i)накладн|торг-?12|упд|отгруз|поставк|waybill|delivery|packing\s+list`)
	reSupplier   = regexp.MustCompile(`(?im)^\s*(поставщик|грузоотправитель|отправитель|supplier|consignor|shipper)\s*:`)
	reNoteFile   = regexp.MustCompile(`(?i)torg|upd|nakl|накладн|торг|упд|waybill`)
)

// DetectDeliveryNote decides whether a message carries a delivery note: a
// numbered note header, a supplier header, lines with a quantity and a unit,
// an item table in the HTML body, or a spreadsheet or pdf attachment.
func DetectDeliveryNote(subject, text, html string, attachmentNames []string) DetectResult {
	res := DetectResult{}
	add := func(points int, signal string) {
		res.Score += points
		res.Signals = append(res.Signals, signal)
	}

	switch {
	case reNoteNumber.MatchString(subject) || reNoteNumber.MatchString(text):
		add(40, "note_number")
	case reNoteWord.MatchString(subject):
		add(20, "note_word")
	}

	if reSupplier.MatchString(text) {
		add(20, "supplier")
	}

	switch n := countUnitLines(text); {
	case n >= 2:
		add(30, "unit_lines")
	case n == 1:
		add(15, "unit_line")
	}

	if strings.Contains(strings.ToLower(html), "<table") && len(parseNoteHTMLTable(html)) > 0 {
		add(30, "item_table")
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(strings.TrimSpace(name))
		if !strings.HasSuffix(ln, ".xlsx") && !strings.HasSuffix(ln, ".xls") && !strings.HasSuffix(ln, ".pdf") {
			continue
		}
		if reNoteFile.MatchString(ln) {
			add(30, "note_attachment")
		} else {
			add(15, "attachment")
		}
		break
	}

	if res.Score > 100 {
		res.Score = 100
	}
	res.IsNote = res.Score >= noteScoreCut
	return res
}

// countUnitLines counts lines naming something with a quantity and a unit,
// like "Цемент М500 10 мешков".
func countUnitLines(text string) int {
	count := 0
	for _, line := range splitLines(text) {
		if !reLetters.MatchString(line) {
			continue
		}
		if parsed := util.ParseQty(line); parsed.Qty != nil && parsed.Unit != nil {
			count++
		}
	}
	return count
}
