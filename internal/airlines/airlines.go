package airlines

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

// Airline is one entry from the operators database
type Airline struct {
	ICAO     string `json:"icao"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Callsign string `json:"callsign"`
}

// Directory is an in-memory airline lookup loaded from operators.json
// (Mictronics format: {"ICAO": ["Name", "Country", "Radio callsign"], ...}).
type Directory struct {
	byICAO map[string]Airline
	logger *logger.Logger
}

// Load reads the operators database from the given path
func Load(path string, log *logger.Logger) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operators database: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse operators database: %w", err)
	}

	d := &Directory{
		byICAO: make(map[string]Airline, len(raw)),
		logger: log.Named("airlines"),
	}
	for icao, fields := range raw {
		a := Airline{ICAO: strings.ToUpper(icao)}
		if len(fields) > 0 {
			a.Name = fields[0]
		}
		if len(fields) > 1 {
			a.Country = fields[1]
		}
		if len(fields) > 2 {
			a.Callsign = fields[2]
		}
		d.byICAO[a.ICAO] = a
	}

	d.logger.Info("Loaded airline directory", logger.Int("count", len(d.byICAO)))
	return d, nil
}

// Get returns the airline for a 3-letter ICAO code
func (d *Directory) Get(icao string) (Airline, bool) {
	a, ok := d.byICAO[strings.ToUpper(icao)]
	return a, ok
}

// Search returns airlines whose ICAO code, name, or radio callsign contains
// the query, case-insensitive, sorted by ICAO code.
func (d *Directory) Search(query string, limit int) []Airline {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []Airline
	for _, a := range d.byICAO {
		if strings.Contains(a.ICAO, q) ||
			strings.Contains(strings.ToUpper(a.Name), q) ||
			strings.Contains(strings.ToUpper(a.Callsign), q) {
			matches = append(matches, a)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ICAO < matches[j].ICAO })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Count returns the number of airlines loaded
func (d *Directory) Count() int {
	return len(d.byICAO)
}
