package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sitestock/internal"
)

// ExtractItemsFromInput reads delivery lines from literal text ("text",
// "html") or from a file ("xlsx", "pdf", "eml", or "file" to pick by
// extension).
func ExtractItemsFromInput(inputType string, input string) ([]internal.NoteItem, error) {
	if inputType == "file" {
		inputType = typeFromExtension(input)
	}
	switch inputType {
	case "text":
		return parseNoteText(input), nil
	case "html":
		return parseNoteHTMLTable(input), nil
	case "xlsx", "pdf", "eml", "txt", "htm":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		switch inputType {
		case "xlsx":
			return parseXLSX(blob)
		case "pdf":
			return parsePDF(blob)
		case "txt":
			return parseNoteText(string(blob)), nil
		case "htm":
			return parseNoteHTMLTable(string(blob)), nil
		default:
			note, err := ExtractNoteFromRaw(blob)
			if err != nil {
				return nil, err
			}
			return note.Items, nil
		}
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}

func typeFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".pdf":
		return "pdf"
	case ".eml":
		return "eml"
	case ".html", ".htm":
		return "htm"
	default:
		return "txt"
	}
}
