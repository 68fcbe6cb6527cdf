package sheet

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	reSheetsEdit = regexp.MustCompile(`^(.*/spreadsheets/d/)([A-Za-z0-9_-]+)/edit.*$`)
	reSheetsID   = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)
)

// ResolveURL rewrites a Google Sheets edit link into its xlsx export link.
// Any other URL is returned unchanged apart from surrounding whitespace.
//
//	https://docs.google.com/spreadsheets/d/ABC123/edit#gid=0
//	https://docs.google.com/spreadsheets/d/ABC123/export?format=xlsx
func ResolveURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := reSheetsEdit.FindStringSubmatch(raw); m != nil {
		return m[1] + m[2] + "/export?format=xlsx"
	}
	return raw
}

// SpreadsheetID returns the document id of a docs.google.com spreadsheet URL.
func SpreadsheetID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.EqualFold(u.Hostname(), "docs.google.com") {
		return "", false
	}
	m := reSheetsID.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func isRemote(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
