package types

import (
	"github.com/go-playground/validator/v10"
)

// Incident categories. The set is closed; reports with any other
// category are rejected before persistence.
const (
	IncidentRoadBlock    = "Road Block"
	IncidentFlood        = "Flood"
	IncidentLandslide    = "Landslide"
	IncidentPowerFailure = "Power Failure"
)

// validIncidentTypes is the set of recognized incident categories.
var validIncidentTypes = map[string]bool{
	IncidentRoadBlock:    true,
	IncidentFlood:        true,
	IncidentLandslide:    true,
	IncidentPowerFailure: true,
}

// severityLabels maps a severity level to its display label.
// 1 is the most severe. The mapping is fixed.
var severityLabels = map[int]string{
	1: "Critical",
	2: "High",
	3: "Medium",
	4: "Low",
	5: "Minimal",
}

// MaxPhotoBytes caps the inline-encoded photo payload at capture time.
const MaxPhotoBytes = 2 * 1024 * 1024

// Default coordinates used when no position fix is available
// (Ratnapura, Sri Lanka).
const (
	DefaultLatitude  = 6.7029
	DefaultLongitude = 80.3853
)

// IncidentReport is one field-recorded observation. A report is
// immutable after creation except for the one-way Synced transition
// false -> true performed by the sync engine.
type IncidentReport struct {
	ID            int64   `json:"id"`
	IncidentType  string  `json:"incident_type"`
	Severity      int     `json:"severity"`
	SeverityLabel string  `json:"severity_label"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Timestamp     int64   `json:"timestamp"` // milliseconds since epoch
	Photo         string  `json:"photo,omitempty"`
	Synced        bool    `json:"synced"`
}

// ReportInput is the caller-supplied portion of a report. The store
// assigns ID, Timestamp, SeverityLabel, and Synced on creation.
type ReportInput struct {
	IncidentType string  `json:"incident_type" validate:"required"`
	Severity     int     `json:"severity" validate:"required,min=1,max=5"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Photo        string  `json:"photo,omitempty"`
}

// validate is the shared validator instance for input checks.
var validate = validator.New()

// Validate checks a ReportInput against the closed incident-type set,
// the severity range, and the photo size cap. Returns a sentinel error
// from this package on the first violation.
func (in ReportInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		if in.Severity < 1 || in.Severity > 5 {
			return ErrInvalidSeverity
		}
		return ErrUnknownIncidentType
	}
	if !validIncidentTypes[in.IncidentType] {
		return ErrUnknownIncidentType
	}
	if len(in.Photo) > MaxPhotoBytes {
		return ErrPhotoTooLarge
	}
	return nil
}

// SeverityLabel returns the display label for a severity level, or an
// empty string if the level is out of range.
func SeverityLabel(severity int) string {
	return severityLabels[severity]
}

// ValidIncidentType reports whether s is a recognized incident category.
func ValidIncidentType(s string) bool {
	return validIncidentTypes[s]
}
