// Package validate turns raw extracted field mappings into clean, typed
// listing records. Validation is pure: identical input and clock yield an
// identical result, with no side effects.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

// requiredFields lists the mandatory fields per section. sectionOrder fixes
// the check order; the first section with any missing field fails the call.
var (
	sectionOrder   = []string{"basicInfo", "location", "features"}
	requiredFields = map[string][]string{
		"basicInfo": {"id", "price", "title", "propertyType"},
		"location":  {"postcode", "address"},
		"features":  {"bedrooms"},
	}
)

// Validator normalizes RawRecords into CleanRecords.
type Validator struct {
	clock scraper.Clock
}

// New builds a Validator stamping metadata from the given clock.
func New(clock scraper.Clock) *Validator {
	return &Validator{clock: clock}
}

// Validate checks mandatory presence section by section, then coerces the
// numeric fields. Presence failures are fatal; coercion failures record the
// field as null and keep the record.
func (v *Validator) Validate(raw scraper.RawRecord) (scraper.CleanRecord, error) {
	for _, name := range sectionOrder {
		section := subMap(raw, name)
		var missing []string
		for _, field := range requiredFields[name] {
			if !present(section, field) {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return scraper.CleanRecord{}, scraper.NewValidationError(name, missing)
		}
	}

	basic := subMap(raw, "basicInfo")
	location := subMap(raw, "location")
	features := subMap(raw, "features")

	record := scraper.CleanRecord{
		BasicInfo: scraper.BasicInfo{
			ID:           canonicalID(basic["id"]),
			Price:        parsePrice(basic["price"]),
			Title:        stringValue(basic["title"]),
			PropertyType: stringValue(basic["propertyType"]),
			AddedOn:      stringValue(basic["addedOn"]),
			Tenure:       stringValue(basic["tenure"]),
			CouncilTax:   stringValue(basic["councilTax"]),
		},
		Location: scraper.Location{
			Postcode:        stringValue(location["postcode"]),
			Address:         stringValue(location["address"]),
			NearestStations: stringList(location["nearestStations"]),
			SchoolsNearby:   stringList(location["schoolsNearby"]),
		},
		Features: scraper.Features{
			Bedrooms:       parseCount(features["bedrooms"]),
			Bathrooms:      parseCount(features["bathrooms"]),
			ReceptionRooms: parseCount(features["receptionRooms"]),
			KeyFeatures:    stringList(features["keyFeatures"]),
		},
		Metadata: scraper.Metadata{
			ScrapedAt:     v.clock.Now(),
			SchemaVersion: scraper.SchemaVersion,
		},
	}
	return record, nil
}

func subMap(raw scraper.RawRecord, name string) map[string]any {
	if raw == nil {
		return nil
	}
	if m, ok := raw[name].(map[string]any); ok {
		return m
	}
	return nil
}

// present treats nil and empty strings as missing; any other value passes the
// presence check even when it later fails numeric coercion.
func present(section map[string]any, field string) bool {
	if section == nil {
		return false
	}
	v, ok := section[field]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// canonicalID renders the source id as a string regardless of source type.
func canonicalID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// parsePrice strips currency symbols and digit grouping before parsing.
// Stripping keeps only digits and decimal points, so corrupted currency
// prefixes (mojibake "£") need no special casing. Parse failure yields nil.
func parsePrice(v any) *float64 {
	switch price := v.(type) {
	case float64:
		return &price
	case json.Number:
		if f, err := price.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		cleaned := keepNumeric(price)
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// parseCount parses room counts; malformed values become nil, not errors.
// Fractional counts ("2.5" baths) truncate toward zero.
func parseCount(v any) *int {
	switch count := v.(type) {
	case float64:
		n := int(count)
		return &n
	case json.Number:
		if f, err := count.Float64(); err == nil {
			n := int(f)
			return &n
		}
		return nil
	case string:
		cleaned := keepNumeric(count)
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		n := int(f)
		return &n
	default:
		return nil
	}
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func keepNumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
}
