package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "Low"
	SeverityModerate IncidentSeverity = "Moderate"
	SeverityHigh     IncidentSeverity = "High"
	SeverityCritical IncidentSeverity = "Critical"
)

// UnknownValue is shown wherever an optional incident field is absent.
const UnknownValue = "Unknown"

// severityRank orders severities for sorting. Anything not listed ranks after Critical.
var severityRank = map[string]int{
	"low":      0,
	"moderate": 1,
	"medium":   1,
	"high":     2,
	"critical": 3,
}

const unknownSeverityRank = 4

// SeverityRank returns the ordinal of a severity label, case-insensitively.
// Missing or unrecognized labels get the highest rank so they sort last.
func SeverityRank(severity string) int {
	if rank, ok := severityRank[strings.ToLower(strings.TrimSpace(severity))]; ok {
		return rank
	}
	return unknownSeverityRank
}

// IsUnknownSeverity reports whether the label is missing or unrecognized.
func IsUnknownSeverity(severity string) bool {
	return SeverityRank(severity) == unknownSeverityRank
}

// ParseSeverity normalizes a severity label to its canonical spelling.
func ParseSeverity(value string) (IncidentSeverity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return SeverityLow, nil
	case "moderate", "medium":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("invalid severity %q", value)
}

// IncidentID is the record identifier. Backends hand it out either as a JSON
// number or a JSON string; the original form is kept so it round-trips.
type IncidentID string

func (id IncidentID) String() string {
	return string(id)
}

func (id IncidentID) numeric() bool {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func (id IncidentID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *IncidentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = IncidentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("incident id must be a string or number: %w", err)
	}
	*id = IncidentID(n.String())
	return nil
}

// Incident is one cataloged technology failure.
type Incident struct {
	ID            IncidentID `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name          string     `json:"name" gorm:"not null"`
	Category      string     `json:"category,omitempty"`
	Severity      string     `json:"severity,omitempty"`
	IncidentDate  string     `json:"incident_date,omitempty"`
	Description   string     `json:"description,omitempty" gorm:"type:text"`
	Cause         string     `json:"cause,omitempty" gorm:"type:text"`
	Consequences  string     `json:"consequences,omitempty" gorm:"type:text"`
	TimeToResolve string     `json:"time_to_resolve,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

func (Incident) TableName() string {
	return "incidents"
}

var incidentDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01",
	"2006",
}

// Year returns the year of IncidentDate. Missing or malformed dates report ok=false.
func (i Incident) Year() (year int, ok bool) {
	return ParseIncidentYear(i.IncidentDate)
}

// Decade returns the decade (1990, 2000, ...) the incident falls in.
func (i Incident) Decade() (decade int, ok bool) {
	year, ok := i.Year()
	if !ok {
		return 0, false
	}
	return DecadeOf(year), true
}

// ParseIncidentYear extracts the year from an ISO-ish date string.
func ParseIncidentYear(date string) (int, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0, false
	}
	for _, layout := range incidentDateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}

// DecadeOf floors a year to its decade.
func DecadeOf(year int) int {
	if year < 0 {
		return -((-year + 9) / 10 * 10)
	}
	return year / 10 * 10
}

// OrUnknown returns value, or UnknownValue when it is blank.
func OrUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return UnknownValue
	}
	return value
}
