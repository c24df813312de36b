package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

const openskyMetadataURL = "https://opensky-network.org/api/metadata/aircraft/icao"

// OpenSky queries the OpenSky Network aircraft metadata API
type OpenSky struct {
	httpQuerier
	logger *logger.Logger
}

// NewOpenSky creates an OpenSky Network metadata source
func NewOpenSky(timeout time.Duration, ratePerSec float64, loggerObj *logger.Logger) *OpenSky {
	return &OpenSky{
		httpQuerier: newHTTPQuerier(timeout, ratePerSec),
		logger:      loggerObj.Named("opensky"),
	}
}

func (o *OpenSky) Name() string { return "Opensky" }

func (o *OpenSky) Accept(modesAddress string) bool { return true }

type openskyPayload struct {
	Icao24           string `json:"icao24"`
	Registration     string `json:"registration"`
	Typecode         string `json:"typecode"`
	Operator         string `json:"operator"`
	Model            string `json:"model"`
	ManufacturerName string `json:"manufacturerName"`
}

// QueryWithStatus looks up one Mode-S address on the OpenSky metadata API
func (o *OpenSky) QueryWithStatus(ctx context.Context, modesAddress string) QueryResult {
	urlStr := fmt.Sprintf("%s/%s", openskyMetadataURL, modesAddress)

	statusCode, body, err := o.get(ctx, urlStr)
	if err != nil {
		o.logger.Warn("OpenSky request failed",
			logger.String("icao24", modesAddress),
			logger.Error(err),
		)
		return ServiceError(err.Error())
	}

	if result, done := classifyStatus(statusCode); done {
		if result.Status == StatusNotFound {
			o.logger.Debug("Aircraft not found in OpenSky",
				logger.String("icao24", modesAddress))
		} else {
			o.logger.Warn("OpenSky service error",
				logger.String("icao24", modesAddress),
				logger.Int("status_code", statusCode))
		}
		return result
	}

	var payload openskyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		o.logger.Debug("Unparsable OpenSky payload",
			logger.String("icao24", modesAddress),
			logger.Error(err))
		return NotFound()
	}

	return resultFor(o.parse(payload), body)
}

func (o *OpenSky) parse(payload openskyPayload) *AircraftRecord {
	if payload.Icao24 == "" {
		return nil
	}

	var description string
	switch {
	case payload.Model != "" && payload.ManufacturerName != "":
		if strings.HasPrefix(payload.Model, payload.ManufacturerName) {
			description = payload.Model
		} else {
			description = payload.ManufacturerName + " " + payload.Model
		}
	case payload.Model != "":
		description = payload.Model
	case payload.ManufacturerName != "":
		description = payload.ManufacturerName
	}

	if payload.Registration == "" && payload.Typecode == "" && description == "" {
		return nil
	}

	return &AircraftRecord{
		ModeS:           strings.ToUpper(payload.Icao24),
		Registration:    payload.Registration,
		ICAOTypeCode:    payload.Typecode,
		TypeDesignator:  payload.Typecode,
		TypeDescription: description,
		Operator:        payload.Operator,
		Source:          o.Name(),
	}
}
