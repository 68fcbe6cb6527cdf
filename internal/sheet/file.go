package sheet

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"sitestock/internal/errs"
)

// LoadFile reads a stock sheet saved locally. A .eml file yields its first
// spreadsheet attachment, for sheets the warehouse sends by mail.
func LoadFile(path string) (Table, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.FormatError{Reason: "cannot read file " + filepath.Base(path), Err: err}
	}
	return decodeNamed(filepath.Base(path), "", blob)
}

func decodeNamed(name, contentType string, blob []byte) (Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".eml":
		return decodeEnvelope(blob)
	case ".xlsx", ".xlsm":
		return decodeXLSX(blob)
	case ".html", ".htm":
		return decodeHTML(blob)
	case ".csv":
		return decodeCSV(blob)
	default:
		return Decode(blob, contentType)
	}
}

func decodeEnvelope(raw []byte) (Table, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, &errs.FormatError{Reason: "cannot parse message", Err: err}
	}
	for _, att := range env.Attachments {
		if isSpreadsheetAttachment(att.FileName, att.ContentType) {
			return decodeNamed(att.FileName, att.ContentType, att.Content)
		}
	}
	return nil, &errs.FormatError{Reason: "message has no spreadsheet attachment"}
}

func isSpreadsheetAttachment(name, contentType string) bool {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	ct := strings.ToLower(contentType)
	return ct == xlsxMIME || ct == "text/csv"
}
