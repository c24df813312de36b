package metadata

import (
	"strings"
	"time"
)

// AircraftRecord holds metadata for one airframe, keyed by its Mode-S hex
// address. Source may be a "+"-joined list when fields were merged from
// multiple databases.
type AircraftRecord struct {
	ModeS           string     `json:"mode_s"`
	Registration    string     `json:"registration,omitempty"`
	ICAOTypeCode    string     `json:"icao_type_code,omitempty"`
	TypeDesignator  string     `json:"type_designator,omitempty"`
	TypeDescription string     `json:"type_description,omitempty"`
	Operator        string     `json:"operator,omitempty"`
	Source          string     `json:"source,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
	LastModified    *time.Time `json:"last_modified,omitempty"`
}

// Merge fills empty fields of r from other without overwriting anything
// already populated, and reports whether any field changed. Contributing
// sources are appended to the source attribution.
func (r *AircraftRecord) Merge(other *AircraftRecord) bool {
	if other == nil {
		return false
	}

	changed := false
	if r.Registration == "" && other.Registration != "" {
		r.Registration = other.Registration
		changed = true
	}
	if r.ICAOTypeCode == "" && other.ICAOTypeCode != "" {
		r.ICAOTypeCode = other.ICAOTypeCode
		changed = true
	}
	if r.TypeDesignator == "" && other.TypeDesignator != "" {
		r.TypeDesignator = other.TypeDesignator
		changed = true
	}
	if r.TypeDescription == "" && other.TypeDescription != "" {
		r.TypeDescription = other.TypeDescription
		changed = true
	}
	if r.Operator == "" && other.Operator != "" {
		r.Operator = other.Operator
		changed = true
	}

	if changed && other.Source != "" && !r.hasSource(other.Source) {
		if r.Source == "" {
			r.Source = other.Source
		} else {
			r.Source = r.Source + "+" + other.Source
		}
	}

	return changed
}

func (r *AircraftRecord) hasSource(name string) bool {
	for _, s := range strings.Split(r.Source, "+") {
		if s == name {
			return true
		}
	}
	return false
}

// IsComplete reports whether the record meets the completeness bar:
// registration, type code, and at least a type description or operator.
func (r *AircraftRecord) IsComplete() bool {
	return r.Registration != "" &&
		r.ICAOTypeCode != "" &&
		(r.TypeDescription != "" || r.Operator != "")
}

// IsSufficient is the early-stop threshold for multi-source crawling.
// It currently matches IsComplete but is kept as its own predicate so the
// completeness bar can tighten without changing crawl short-circuiting.
func (r *AircraftRecord) IsSufficient() bool {
	return r.Registration != "" &&
		r.ICAOTypeCode != "" &&
		(r.TypeDescription != "" || r.Operator != "")
}

// HasCriticalGaps reports whether any field the crawler tries to fill is
// still missing.
func (r *AircraftRecord) HasCriticalGaps() bool {
	return r.Registration == "" ||
		r.ICAOTypeCode == "" ||
		r.TypeDescription == "" ||
		r.Operator == ""
}
