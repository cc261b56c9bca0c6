// Package scraper defines core types shared across subsystems and implements
// the extraction pipeline with per-attempt retry.
package scraper

import "time"

// SchemaVersion is stamped into CleanRecord.Metadata for every record of a run.
const SchemaVersion = "1.0.0"

// RawRecord is the unvalidated field mapping extracted from a rendered page.
// No invariants hold: any section or field may be absent or malformed.
type RawRecord map[string]any

// Task identifies one page target to process during a run.
type Task struct {
	URL      string            `json:"url"`
	Source   string            `json:"source"`
	UserData map[string]string `json:"user_data,omitempty"`
}

// BasicInfo holds the mandatory identity fields of a listing.
type BasicInfo struct {
	ID           string   `json:"id"`
	Price        *float64 `json:"price"`
	Title        string   `json:"title"`
	PropertyType string   `json:"propertyType"`
	AddedOn      string   `json:"addedOn,omitempty"`
	Tenure       string   `json:"tenure,omitempty"`
	CouncilTax   string   `json:"councilTax,omitempty"`
}

// Location holds the listing address fields.
type Location struct {
	Postcode        string   `json:"postcode"`
	Address         string   `json:"address"`
	NearestStations []string `json:"nearestStations,omitempty"`
	SchoolsNearby   []string `json:"schoolsNearby,omitempty"`
}

// Features holds the room counts and feature lists. Counts are pointers so a
// malformed source value can be recorded as null without failing validation.
type Features struct {
	Bedrooms       *int     `json:"bedrooms"`
	Bathrooms      *int     `json:"bathrooms,omitempty"`
	ReceptionRooms *int     `json:"receptionRooms,omitempty"`
	KeyFeatures    []string `json:"keyFeatures,omitempty"`
}

// Metadata records when a record was validated and under which schema.
type Metadata struct {
	ScrapedAt     time.Time `json:"scrapedAt"`
	SchemaVersion string    `json:"schemaVersion"`
}

// CleanRecord is a validated, normalized listing ready for persistence.
// It is immutable once returned by the validator.
type CleanRecord struct {
	BasicInfo BasicInfo `json:"basicInfo"`
	Location  Location  `json:"location"`
	Features  Features  `json:"features"`
	Metadata  Metadata  `json:"metadata"`
}

// DebugEntry is the structured diagnostic persisted for every task failure.
// It carries enough context to reconstruct a post-mortem without a replay.
type DebugEntry struct {
	URL       string    `json:"url"`
	ErrorKind string    `json:"error_kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStatus is the terminal state reported by the RUN_FINISHED event.
type RunStatus string

// Run outcome values.
const (
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
)
