package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

const hexdbBaseURL = "https://hexdb.io/api/v1/aircraft"

// HexDB queries the HexDB.io aircraft database
type HexDB struct {
	httpQuerier
	logger *logger.Logger
}

// NewHexDB creates a HexDB.io metadata source
func NewHexDB(timeout time.Duration, ratePerSec float64, loggerObj *logger.Logger) *HexDB {
	return &HexDB{
		httpQuerier: newHTTPQuerier(timeout, ratePerSec),
		logger:      loggerObj.Named("hexdb"),
	}
}

func (h *HexDB) Name() string { return "HexDB.io" }

func (h *HexDB) Accept(modesAddress string) bool { return true }

type hexdbPayload struct {
	ModeS            string `json:"ModeS"`
	Registration     string `json:"Registration"`
	ICAOTypeCode     string `json:"ICAOTypeCode"`
	Manufacturer     string `json:"Manufacturer"`
	Type             string `json:"Type"`
	RegisteredOwners string `json:"RegisteredOwners"`
}

// QueryWithStatus looks up one Mode-S address on hexdb.io
func (h *HexDB) QueryWithStatus(ctx context.Context, modesAddress string) QueryResult {
	urlStr := fmt.Sprintf("%s/%s", hexdbBaseURL, modesAddress)

	statusCode, body, err := h.get(ctx, urlStr)
	if err != nil {
		h.logger.Warn("HexDB.io request failed",
			logger.String("icao24", modesAddress),
			logger.Error(err),
		)
		return ServiceError(err.Error())
	}

	if result, done := classifyStatus(statusCode); done {
		if result.Status == StatusNotFound {
			h.logger.Debug("Aircraft not found in HexDB.io",
				logger.String("icao24", modesAddress))
		} else {
			h.logger.Warn("HexDB.io service error",
				logger.String("icao24", modesAddress),
				logger.Int("status_code", statusCode))
		}
		return result
	}

	var payload hexdbPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Debug("Unparsable HexDB.io payload",
			logger.String("icao24", modesAddress),
			logger.Error(err))
		return NotFound()
	}

	return resultFor(h.parse(payload, modesAddress), body)
}

func (h *HexDB) parse(payload hexdbPayload, modesAddress string) *AircraftRecord {
	modeS := payload.ModeS
	if modeS == "" {
		modeS = modesAddress
	}

	var description string
	switch {
	case payload.Manufacturer != "" && payload.Type != "":
		description = payload.Manufacturer + " " + payload.Type
	case payload.Manufacturer != "":
		description = payload.Manufacturer
	case payload.Type != "":
		description = payload.Type
	}

	if payload.Registration == "" && payload.ICAOTypeCode == "" && description == "" {
		return nil
	}

	return &AircraftRecord{
		ModeS:           strings.ToUpper(modeS),
		Registration:    payload.Registration,
		ICAOTypeCode:    payload.ICAOTypeCode,
		TypeDesignator:  payload.ICAOTypeCode,
		TypeDescription: description,
		Operator:        payload.RegisteredOwners,
		Source:          h.Name(),
	}
}
