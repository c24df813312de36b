package radar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

// Client fetches live aircraft states from a radar feed
type Client struct {
	httpClient *http.Client
	sourceType string
	sourceURL  string
	logger     *logger.Logger
}

// NewClient creates a new radar feed client.
// sourceType selects the feed format: "dump1090" or "vrs".
func NewClient(sourceType, sourceURL string, timeout time.Duration, loggerObj *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		sourceType: sourceType,
		sourceURL:  sourceURL,
		logger:     loggerObj.Named("radar"),
	}
}

// QueryLiveFlights fetches the current set of aircraft states from the feed.
// When filterIncomplete is true, states without a usable position/altitude
// pair and without a callsign are dropped.
func (c *Client) QueryLiveFlights(ctx context.Context, filterIncomplete bool) ([]PositionReport, error) {
	var reports []PositionReport
	var err error

	switch c.sourceType {
	case "dump1090":
		reports, err = c.fetchDump1090(ctx)
	case "vrs":
		reports, err = c.fetchVRS(ctx)
	default:
		return nil, fmt.Errorf("unknown radar source type: %s", c.sourceType)
	}
	if err != nil {
		return nil, err
	}

	if !filterIncomplete {
		return reports, nil
	}

	filtered := make([]PositionReport, 0, len(reports))
	for _, r := range reports {
		if (r.HasPosition() && r.Alt != nil) || r.Callsign != "" {
			filtered = append(filtered, r)
		}
	}

	c.logger.Debug("Fetched live flights",
		logger.Int("total", len(reports)),
		logger.Int("kept", len(filtered)),
	)

	return filtered, nil
}

// dump1090Aircraft mirrors one entry of a dump1090/tar1090 aircraft.json
type dump1090Aircraft struct {
	Hex      string          `json:"hex"`
	Flight   string          `json:"flight"`
	AltBaro  json.RawMessage `json:"alt_baro"` // number, or "ground"
	GS       *float64        `json:"gs"`
	Track    *float64        `json:"track"`
	Lat      *float64        `json:"lat"`
	Lon      *float64        `json:"lon"`
	Category string          `json:"category"`
}

type dump1090Response struct {
	Now      float64            `json:"now"`
	Aircraft []dump1090Aircraft `json:"aircraft"`
}

func (c *Client) fetchDump1090(ctx context.Context) ([]PositionReport, error) {
	body, err := c.get(ctx, c.sourceURL)
	if err != nil {
		return nil, err
	}

	var data dump1090Response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse dump1090 JSON: %w", err)
	}

	reports := make([]PositionReport, 0, len(data.Aircraft))
	for _, ac := range data.Aircraft {
		if ac.Hex == "" {
			continue
		}

		var alt *int
		if len(ac.AltBaro) > 0 {
			// alt_baro is "ground" for taxiing aircraft
			var feet float64
			if err := json.Unmarshal(ac.AltBaro, &feet); err == nil {
				v := int(feet)
				alt = &v
			} else {
				var s string
				if json.Unmarshal(ac.AltBaro, &s) == nil && s == "ground" {
					v := 0
					alt = &v
				}
			}
		}

		reports = append(reports, PositionReport{
			Icao24:   strings.ToLower(strings.TrimSpace(ac.Hex)),
			Lat:      ac.Lat,
			Lon:      ac.Lon,
			Alt:      alt,
			GS:       ac.GS,
			Track:    ac.Track,
			Callsign: strings.TrimSpace(ac.Flight),
			Category: emitterCategory(ac.Category),
		})
	}

	return reports, nil
}

// vrsAircraft mirrors one entry of a VirtualRadarServer AircraftList.json
type vrsAircraft struct {
	Icao    string   `json:"Icao"`
	Lat     *float64 `json:"Lat"`
	Long    *float64 `json:"Long"`
	Alt     *int     `json:"Alt"`
	Spd     *float64 `json:"Spd"`
	Trak    *float64 `json:"Trak"`
	Call    string   `json:"Call"`
	WTC     int      `json:"WTC"`
	Species int      `json:"Species"`
}

type vrsResponse struct {
	AcList []vrsAircraft `json:"acList"`
}

func (c *Client) fetchVRS(ctx context.Context) ([]PositionReport, error) {
	body, err := c.get(ctx, c.sourceURL)
	if err != nil {
		return nil, err
	}

	var data vrsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse VRS JSON: %w", err)
	}

	reports := make([]PositionReport, 0, len(data.AcList))
	for _, ac := range data.AcList {
		if ac.Icao == "" {
			continue
		}
		reports = append(reports, PositionReport{
			Icao24:   strings.ToLower(strings.TrimSpace(ac.Icao)),
			Lat:      ac.Lat,
			Lon:      ac.Long,
			Alt:      ac.Alt,
			GS:       ac.Spd,
			Track:    ac.Trak,
			Callsign: strings.TrimSpace(ac.Call),
			Category: wtcCategory(ac.WTC, ac.Species),
		})
	}

	return reports, nil
}

func (c *Client) get(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
