package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncidentYear(t *testing.T) {
	tests := []struct {
		date string
		year int
		ok   bool
	}{
		{"1994-10-30", 1994, true},
		{"2024-07-19T04:09:00Z", 2024, true},
		{"1999-09", 1999, true},
		{"1985", 1985, true},
		{"", 0, false},
		{"sometime in the 90s", 0, false},
		{"1994-13-45", 0, false},
	}
	for _, tt := range tests {
		year, ok := ParseIncidentYear(tt.date)
		assert.Equal(t, tt.ok, ok, tt.date)
		assert.Equal(t, tt.year, year, tt.date)
	}
}

func TestDecade(t *testing.T) {
	decade, ok := Incident{IncidentDate: "1996-06-04"}.Decade()
	assert.True(t, ok)
	assert.Equal(t, 1990, decade)

	_, ok = Incident{}.Decade()
	assert.False(t, ok)
	assert.Equal(t, 2000, DecadeOf(2000))
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityRank("Low"), SeverityRank("moderate"))
	assert.Less(t, SeverityRank("MODERATE"), SeverityRank("High"))
	assert.Less(t, SeverityRank("High"), SeverityRank("Critical"))
	assert.Less(t, SeverityRank("Critical"), SeverityRank(""))
	assert.True(t, IsUnknownSeverity("catastrophic"))
}

func TestMediumRanksAsModerate(t *testing.T) {
	parsed, err := ParseSeverity("Medium")
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, parsed)
	assert.Equal(t, SeverityRank("Moderate"), SeverityRank("Medium"))
	assert.False(t, IsUnknownSeverity("medium"))
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity(" critical ")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, s)

	_, err = ParseSeverity("apocalyptic")
	assert.Error(t, err)
}

func TestIncidentIDKeepsWireForm(t *testing.T) {
	var incidents []Incident
	require.NoError(t, json.Unmarshal([]byte(`[{"id": 42, "name": "a"}, {"id": "abc-1", "name": "b"}, {"id": "007", "name": "c"}]`), &incidents))
	assert.Equal(t, IncidentID("42"), incidents[0].ID)
	assert.Equal(t, IncidentID("abc-1"), incidents[1].ID)

	out, err := json.Marshal([]IncidentID{incidents[0].ID, incidents[1].ID, incidents[2].ID})
	require.NoError(t, err)
	assert.JSONEq(t, `[42, "abc-1", "007"]`, string(out))
}

func TestOrUnknown(t *testing.T) {
	assert.Equal(t, UnknownValue, OrUnknown("  "))
	assert.Equal(t, "Space", OrUnknown("Space"))
}
