// Package feed defines core types shared across the ingestion subsystems.
package feed

import (
	"time"
)

// Shape tags the structural form of a fetched record. It is declared at
// source construction time rather than sniffed from stored bytes.
type Shape string

// Record shapes understood by the snapshot merge rules.
const (
	ShapeTable Shape = "table"
	ShapeMap   Shape = "map"
	ShapeList  Shape = "list"
)

// Row is one table-shaped record entry.
type Row map[string]any

// Record is the normalized result of one source fetch. Exactly one of
// Rows, Fields, or Items is populated depending on Shape.
type Record struct {
	Shape  Shape          `json:"shape"`
	Rows   []Row          `json:"rows,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Items  []any          `json:"items,omitempty"`
}

// Empty reports whether the record carries no data for its shape.
func (r Record) Empty() bool {
	switch r.Shape {
	case ShapeTable:
		return len(r.Rows) == 0
	case ShapeMap:
		return len(r.Fields) == 0
	case ShapeList:
		return len(r.Items) == 0
	default:
		return true
	}
}

// EmptyRecord returns the configured empty sentinel for a shape.
func EmptyRecord(shape Shape) Record {
	return Record{Shape: shape}
}

// Provenance tells a consumer where a returned record came from, so
// downstream confidence scoring can discount stale or defaulted data.
type Provenance string

// Provenance values attached to every Result.
const (
	ProvenanceLive    Provenance = "live"
	ProvenanceCache   Provenance = "cache"
	ProvenanceDefault Provenance = "default"
)

// Result pairs a record with its provenance and fetch time.
type Result struct {
	Record     Record     `json:"record"`
	Provenance Provenance `json:"provenance"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// Snapshot is the merged view of the durable local tiers for one source.
// The raw/processed tier split is a store-internal concern; consumers see
// the merged record only.
type Snapshot struct {
	Record     Record    `json:"record"`
	CapturedAt time.Time `json:"captured_at"`
}

// FetchArgs carries the per-call parameters a SourceClient needs to build
// its request (path, query values, provider-specific identifiers).
type FetchArgs map[string]string

// Path returns the request path argument, defaulting to the root.
func (a FetchArgs) Path() string {
	if p, ok := a["path"]; ok && p != "" {
		return p
	}
	return "/"
}

// SourceConfig captures the immutable per-source knobs. Instances are
// value copies; nothing mutates a config after construction.
type SourceConfig struct {
	Name          string        `json:"name"`
	OriginURL     string        `json:"origin_url"`
	MinDelay      time.Duration `json:"min_delay"`
	MaxRetries    int           `json:"max_retries"`
	Timeout       time.Duration `json:"timeout"`
	RespectPolicy bool          `json:"respect_policy"`
	Shape         Shape         `json:"shape"`
}
