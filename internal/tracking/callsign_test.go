package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAirlineICAO(t *testing.T) {
	cases := []struct {
		callsign string
		want     string
	}{
		{"AFR990", "AFR"},
		{"DAL2014", "DAL"},
		{"BAW117", "BAW"},
		{"ual123", "UAL"},
		{" SWA456 ", "SWA"},
		{"RYR1ABC", "RYR"}, // digit anywhere after the prefix qualifies

		// Too short
		{"", ""},
		{"AFR", ""},

		// General aviation registrations
		{"N123AB", ""},
		{"D-ABCD", ""},
		{"F-GKXL", ""},
		{"VH-OJA", ""},
		{"ZK-NZE", ""},
		{"JA8089", ""},
		{"G-EUPT", ""},

		// Privacy/relay prefixes
		{"DCM1234", ""},
		{"FFL22", ""},
		{"FWR001", ""},
		{"XAA999", ""},

		// No digit after the prefix
		{"ABCD", ""},
		{"TEST", ""},

		// Prefix not all letters
		{"A1B234", ""},
	}

	for _, tc := range cases {
		t.Run(tc.callsign, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractAirlineICAO(tc.callsign))
		})
	}
}
