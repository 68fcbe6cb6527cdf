package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const unitAlternation = `шт|штук|pcs|pc|м2|м²|м3|м³|м\.?|метр|кг|kg|т\.?|тонн|л\.?|мешок|мешков|мешка|меш\.?|bags?|рул\.?|рулон|уп\.?|упак|компл\.?|m2|m3|m`

var (
	unitPattern     = regexp.MustCompile(`(?i)(?:\d|\s)(` + unitAlternation + `)(?:$|[\s.,;|)])`)
	withUnitPattern = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(` + unitAlternation + `)(?:$|[\s.,;|)])`)
	numberPattern   = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	reThousandsDot  = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reThousandsComa = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
	// Rest is the input with the matched quantity and its unit cut out.
	Rest string
}

// ParseQty finds the quantity of a delivery-note line: the last number followed
// by a unit, or the last number when no unit follows any of them.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, "\u00A0", " ")

	qtyRaw := ""
	qtyToken := ""
	unitToken := ""
	rest := line

	if last, start, end := lastSubmatch(withUnitPattern, line); last != nil {
		qtyRaw = strings.TrimSpace(last[1] + " " + last[2])
		qtyToken = strings.TrimSpace(last[1])
		unitToken = last[2]
		rest = line[:start] + " " + line[end:]
	} else if last, start, end := lastSubmatch(numberPattern, line); last != nil {
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = strings.TrimSpace(last[1])
		rest = line[:start] + " " + line[end:]
	}

	var qtyPtr *float64
	if qtyToken != "" {
		if parsed, ok := ParseNumber(qtyToken); ok {
			qtyPtr = FloatPtr(parsed)
		}
	}

	var unitPtr *string
	if unitToken == "" {
		if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
			unitToken = um[1]
		}
	}
	if unitToken != "" {
		u := NormalizeUnit(unitToken)
		unitPtr = &u
	}

	var qtyRawPtr *string
	if qtyRaw != "" {
		qtyRawPtr = &qtyRaw
	}

	return ParsedQty{Qty: qtyPtr, Unit: unitPtr, QtyRaw: qtyRawPtr, Rest: CollapseSpaces(rest)}
}

// lastSubmatch returns the groups of the last match of re in line and the
// byte span from the start of the first group to the end of the last one.
// Scanning resumes right after the number group, so a unit boundary consumed
// by one match can still open the next one.
func lastSubmatch(re *regexp.Regexp, line string) (last []string, start, end int) {
	for pos := 0; pos < len(line); {
		loc := re.FindStringSubmatchIndex(line[pos:])
		if loc == nil {
			break
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = line[pos+loc[2*i] : pos+loc[2*i+1]]
			}
		}
		last = groups
		start, end = pos+loc[2], pos+loc[len(loc)-1]
		pos += loc[3]
	}
	return last, start, end
}

// ParseNumber parses a quantity cell written with either decimal separator
// and optional thousands grouping.
func ParseNumber(token string) (float64, bool) {
	norm := NormalizeNumericToken(token)
	if norm == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseCellNumber reads a spreadsheet cell. Raw xlsx values are plain
// dot-decimal, so "1.005" is one and five thousandths here while ParseNumber
// reads it as a grouped thousand.
func ParseCellNumber(cell string) (float64, bool) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v, true
	}
	return ParseNumber(cell)
}

func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "шт", "штук", "pcs", "pc":
		return "шт"
	case "м", "м.", "метр", "m":
		return "м"
	case "м2", "м²", "m2":
		return "м2"
	case "м3", "м³", "m3":
		return "м3"
	case "kg", "кг":
		return "кг"
	case "т", "т.", "тонн":
		return "т"
	case "л", "л.":
		return "л"
	case "мешок", "мешков", "мешка", "меш", "меш.", "bag", "bags":
		return "мешок"
	case "рул", "рул.", "рулон":
		return "рул"
	case "уп", "уп.", "упак":
		return "уп"
	case "компл", "компл.":
		return "компл"
	default:
		return u
	}
}

func NormalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(token), "\u00A0", "")
	compact = strings.ReplaceAll(compact, " ", "")
	if reThousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reThousandsComa.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
