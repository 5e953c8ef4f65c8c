// Package snapshot persists per-source raw and processed tiers and merges
// them into a single fallback record.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/matchpulse/feedgate/internal/feed"
)

// defaultKeyFields identify a table row when a source does not configure
// its own natural key.
var defaultKeyFields = []string{"date", "home", "away"}

// Merge combines the raw (slow bulk) and processed (fast incremental)
// tiers. Table rows are concatenated and de-duplicated by natural key with
// the most recently saved row winning; maps are shallow-merged with the
// processed tier taking precedence; lists are concatenated. Merging a
// record with itself is idempotent for table shapes.
func Merge(raw, processed feed.Record, keyFields []string) feed.Record {
	shape := processed.Shape
	if shape == "" {
		shape = raw.Shape
	}
	switch shape {
	case feed.ShapeTable:
		return mergeTables(raw, processed, keyFields)
	case feed.ShapeMap:
		return mergeMaps(raw, processed)
	case feed.ShapeList:
		return mergeLists(raw, processed)
	default:
		return processed
	}
}

func mergeTables(raw, processed feed.Record, keyFields []string) feed.Record {
	if len(keyFields) == 0 {
		keyFields = defaultKeyFields
	}
	merged := feed.Record{Shape: feed.ShapeTable}
	index := make(map[string]int)
	// Raw first, processed second: later rows overwrite earlier ones so the
	// incremental tier always wins for a shared key.
	for _, row := range append(append([]feed.Row{}, raw.Rows...), processed.Rows...) {
		key := rowKey(row, keyFields)
		if at, seen := index[key]; seen {
			merged.Rows[at] = row
			continue
		}
		index[key] = len(merged.Rows)
		merged.Rows = append(merged.Rows, row)
	}
	return merged
}

func mergeMaps(raw, processed feed.Record) feed.Record {
	merged := feed.Record{Shape: feed.ShapeMap, Fields: make(map[string]any, len(raw.Fields)+len(processed.Fields))}
	for k, v := range raw.Fields {
		merged.Fields[k] = v
	}
	for k, v := range processed.Fields {
		merged.Fields[k] = v
	}
	return merged
}

func mergeLists(raw, processed feed.Record) feed.Record {
	merged := feed.Record{Shape: feed.ShapeList}
	merged.Items = append(merged.Items, raw.Items...)
	merged.Items = append(merged.Items, processed.Items...)
	return merged
}

func rowKey(row feed.Row, keyFields []string) string {
	parts := make([]string, 0, len(keyFields))
	for _, f := range keyFields {
		parts = append(parts, fmt.Sprint(row[f]))
	}
	return strings.Join(parts, "\x1f")
}
