package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"sitestock/internal"
	"sitestock/internal/util"
)

var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^--+$`),
	regexp.MustCompile(`(?i)^спасибо`),
	regexp.MustCompile(`(?i)^с уважением`),
	regexp.MustCompile(`(?i)^тел[:\s.]`),
	regexp.MustCompile(`(?i)^e-?mail[:\s]`),
	regexp.MustCompile(`(?i)^http`),
	regexp.MustCompile(`(?i)^(итого|всего|total)(?:$|[\s:.,])`),
	regexp.MustCompile(`(?i)^(отпустил|принял|получил|сдал|водитель|подпись)`),
	regexp.MustCompile(`(?i)^(накладная|ттн|упд|торг-12)\s*(№|n|#)`),
}

var (
	reLetters     = regexp.MustCompile(`[A-Za-zА-Яа-яЁё]`)
	reDigit       = regexp.MustCompile(`\d`)
	reSeparators  = regexp.MustCompile(`[;|]+`)
	rePositionNum = regexp.MustCompile(`^\d{1,3}[.)]\s+`)
)

var (
	nameProbes = []string{"наимен", "материал", "товар", "номенк", "позиц", "name", "material", "item", "description"}
	qtyProbes  = []string{"кол", "qty", "quantity", "отпущ"}
	unitProbes = []string{"ед", "unit", "изм", "uom"}
)

// Note is what a delivery note message carries once parsed.
type Note struct {
	Items           []internal.NoteItem
	Subject         string
	From            string
	Date            string
	Text            string
	HTML            string
	AttachmentNames []string
}

// ExtractNoteFromRaw parses an RFC 822 message and collects delivery lines
// from its text, HTML tables and xlsx/pdf attachments.
func ExtractNoteFromRaw(raw []byte) (Note, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Note{}, err
	}

	note := Note{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Date:    env.GetHeader("Date"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	items := make([]internal.NoteItem, 0)
	if env.HTML != "" {
		items = append(items, parseNoteHTMLTable(env.HTML)...)
	}
	if env.Text != "" && len(items) == 0 {
		items = append(items, parseNoteText(env.Text)...)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		note.AttachmentNames = append(note.AttachmentNames, filename)
		lower := strings.ToLower(filename)

		var extra []internal.NoteItem
		switch {
		case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm"):
			extra, err = parseXLSX(att.Content)
		case strings.HasSuffix(lower, ".pdf"):
			extra, err = parsePDF(att.Content)
		default:
			continue
		}
		if err != nil {
			continue
		}
		for i := range extra {
			if extra[i].Meta == nil {
				extra[i].Meta = map[string]any{}
			}
			extra[i].Meta["attachment"] = filename
		}
		items = append(items, extra...)
	}

	note.Items = dedupeItems(items)
	for i := range note.Items {
		note.Items[i].LineNo = i + 1
	}
	return note, nil
}

func parseNoteText(text string) []internal.NoteItem {
	lines := splitLines(text)
	out := make([]internal.NoteItem, 0, len(lines))
	lineNo := 0
	for _, line := range lines {
		lineNo++
		item := lineToNoteItem(internal.SourceNoteText, lineNo, line)
		if item == nil {
			continue
		}
		if !reLetters.MatchString(item.RawLine) || item.Qty == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}

func parseNoteHTMLTable(html string) []internal.NoteItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.NoteItem{}
	globalLine := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(util.CollapseSpaces(cell.Text())))
		})

		nameIdx := findHeaderIndex(headers, nameProbes)
		qtyIdx := findHeaderIndex(headers, qtyProbes)
		unitIdx := findHeaderIndex(headers, unitProbes)

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}

			nameCell := pickCell(cells, nameIdx, 0)
			qtyCell := ""
			if qtyIdx >= 0 && qtyIdx < len(cells) {
				qtyCell = cells[qtyIdx]
			} else {
				for i, c := range cells {
					if i != nameIdx && reDigit.MatchString(c) {
						qtyCell = c
						break
					}
				}
			}

			parsed := util.ParseQty(qtyCell)
			if nameCell == "" || parsed.Qty == nil || isLikelyNoise(nameCell) {
				return
			}

			globalLine++
			item := internal.NoteItem{
				LineNo:  globalLine,
				Source:  internal.SourceNoteTable,
				RawLine: strings.Join(cells, " | "),
				Name:    util.StringPtr(nameCell),
				Qty:     parsed.Qty,
				Unit:    parsed.Unit,
				Meta:    map[string]any{"row": cells},
			}
			if unitCell := pickCell(cells, unitIdx, -1); unitCell != "" {
				item.Unit = util.StringPtr(util.NormalizeUnit(unitCell))
			}
			out = append(out, item)
		})
	})

	return out
}

func parseXLSX(content []byte) ([]internal.NoteItem, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lineNo := 0
	out := []internal.NoteItem{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil || len(rows) == 0 {
			continue
		}

		cols := columns{name: -1, qty: -1, unit: -1}
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && cols.name < 0 {
				cols = inferColumns(cells)
				if cols.name >= 0 || cols.qty >= 0 {
					continue
				}
			}

			if cols.name < 0 {
				cols = columns{name: 0, qty: 1, unit: 2}
			}
			name := pickCell(cells, cols.name, 0)
			qtyCell := pickCell(cells, cols.qty, -1)
			var parsed util.ParsedQty
			if v, ok := util.ParseCellNumber(qtyCell); ok {
				parsed.Qty = util.FloatPtr(v)
			} else {
				if qtyCell == "" {
					qtyCell = strings.Join(cells, " ")
				}
				parsed = util.ParseQty(qtyCell)
			}
			if name == "" || parsed.Qty == nil || isLikelyNoise(name) {
				continue
			}

			lineNo++
			item := internal.NoteItem{
				LineNo:  lineNo,
				Source:  internal.SourceXLSX,
				RawLine: strings.Join(cells, " | "),
				Name:    util.StringPtr(name),
				Qty:     parsed.Qty,
				Unit:    parsed.Unit,
				Meta:    map[string]any{"sheet": sheet, "rowNumber": i + 1},
			}
			if unit := pickCell(cells, cols.unit, -1); unit != "" {
				item.Unit = util.StringPtr(util.NormalizeUnit(unit))
			}
			out = append(out, item)
		}
	}

	return out, nil
}

func parsePDF(content []byte) ([]internal.NoteItem, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.NoteItem{}
	lineNo := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			lineNo++
			item := lineToNoteItem(internal.SourcePDF, lineNo, line)
			if item == nil || item.Name == nil || item.Qty == nil {
				continue
			}
			out = append(out, *item)
		}
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// lineToNoteItem splits a free-text line into material name and quantity.
// The quantity is the last number with a unit; what remains is the name.
func lineToNoteItem(source internal.ShipmentSource, lineNo int, rawLine string) *internal.NoteItem {
	compact := util.CollapseSpaces(rawLine)
	if compact == "" || isLikelyNoise(compact) {
		return nil
	}

	parsed := util.ParseQty(compact)
	name := rePositionNum.ReplaceAllString(parsed.Rest, "")
	name = util.CollapseSpaces(reSeparators.ReplaceAllString(name, " "))
	name = strings.Trim(name, " -–:,")
	if len([]rune(name)) <= 1 {
		name = compact
	}

	item := internal.NoteItem{
		LineNo:  lineNo,
		Source:  source,
		RawLine: compact,
		Name:    util.StringPtr(name),
		Qty:     parsed.Qty,
		Unit:    parsed.Unit,
		Meta:    map[string]any{},
	}
	if parsed.QtyRaw != nil {
		item.Meta["qtyRaw"] = *parsed.QtyRaw
	}
	return &item
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func dedupeItems(items []internal.NoteItem) []internal.NoteItem {
	seen := map[string]struct{}{}
	out := make([]internal.NoteItem, 0, len(items))
	for _, item := range items {
		qtyKey := "null"
		if item.Qty != nil {
			qtyKey = fmt.Sprintf("%g", *item.Qty)
		}
		key := string(item.Source) + "|" + item.RawLine + "|" + qtyKey
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

type columns struct {
	name, qty, unit int
}

func inferColumns(headers []string) columns {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(h))
	}
	return columns{
		name: findHeaderIndex(norm, nameProbes),
		qty:  findHeaderIndex(norm, qtyProbes),
		unit: findHeaderIndex(norm, unitProbes),
	}
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.CollapseSpaces(c))
	}
	return out
}
