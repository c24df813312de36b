package tracking

import (
	"regexp"
	"strings"
)

// General aviation registrations transmitted as callsigns (country prefix
// plus number/letter), which never carry an airline designator.
var gaPattern = regexp.MustCompile(`^[A-Z]{1,2}-|^N\d|^F-|^VH-|^ZK-|^JA\d`)

// Privacy/relay callsign prefixes that look like airline codes but aren't
var privacyPrefixes = map[string]bool{
	"DCM": true,
	"FFL": true,
	"FWR": true,
	"XAA": true,
}

// ExtractAirlineICAO extracts the 3-letter ICAO airline designator from an
// ADS-B callsign ("AFR990" -> "AFR"). It returns an empty string for
// general aviation, privacy, military, or unrecognized callsigns.
func ExtractAirlineICAO(callsign string) string {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if len(cs) < 4 {
		return ""
	}

	if gaPattern.MatchString(cs) {
		return ""
	}

	prefix := cs[:3]
	if privacyPrefixes[prefix] {
		return ""
	}

	// Commercial pattern: three letters followed by at least one digit
	for _, c := range prefix {
		if c < 'A' || c > 'Z' {
			return ""
		}
	}
	for _, c := range cs[3:] {
		if c >= '0' && c <= '9' {
			return prefix
		}
	}

	return ""
}
