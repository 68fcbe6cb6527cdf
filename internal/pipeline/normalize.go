package pipeline

import (
	"sitestock/internal"
	"sitestock/internal/util"
)

// NoteLine is a delivery line with the lookup key used to match it to the plan.
type NoteLine struct {
	internal.NoteItem
	Key string
}

func NormalizeItems(items []internal.NoteItem) []NoteLine {
	out := make([]NoteLine, 0, len(items))
	for _, item := range items {
		source := item.RawLine
		if item.Name != nil {
			source = *item.Name
		}
		out = append(out, NoteLine{
			NoteItem: item,
			Key:      util.NormalizeName(util.CollapseSpaces(source)),
		})
	}
	return out
}
