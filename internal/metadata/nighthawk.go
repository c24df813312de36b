package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikemorandi/flightradar/pkg/logger"
)

// NighthawkSource queries one named source endpoint on a nighthawk proxy.
// Instances are created per discovered upstream source.
type NighthawkSource struct {
	httpQuerier
	baseURL  string
	endpoint string
	priority int
	name     string
	logger   *logger.Logger
}

// NewNighthawkSource creates a source for one proxy endpoint
func NewNighthawkSource(baseURL, endpoint string, priority int, timeout time.Duration, ratePerSec float64, loggerObj *logger.Logger) *NighthawkSource {
	return &NighthawkSource{
		httpQuerier: newHTTPQuerier(timeout, ratePerSec),
		baseURL:     strings.TrimRight(baseURL, "/"),
		endpoint:    endpoint,
		priority:    priority,
		name:        "Nighthawk:" + endpoint,
		logger:      loggerObj.Named("nighthawk"),
	}
}

func (n *NighthawkSource) Name() string { return n.name }

func (n *NighthawkSource) Accept(modesAddress string) bool { return true }

// Priority returns the proxy-assigned precedence (lower wins)
func (n *NighthawkSource) Priority() int { return n.priority }

type nighthawkPayload struct {
	Icao            string `json:"icao"`
	Registration    string `json:"registration"`
	TypeCode        string `json:"type_code"`
	TypeDescription string `json:"type_description"`
	Owner           string `json:"owner"`
}

// QueryWithStatus looks up one Mode-S address through the proxy endpoint
func (n *NighthawkSource) QueryWithStatus(ctx context.Context, modesAddress string) QueryResult {
	urlStr := fmt.Sprintf("%s/aircraft/source/%s/%s", n.baseURL, n.endpoint, modesAddress)

	statusCode, body, err := n.get(ctx, urlStr)
	if err != nil {
		n.logger.Warn("Nighthawk request failed",
			logger.String("source", n.name),
			logger.String("icao24", modesAddress),
			logger.Error(err),
		)
		return ServiceError(err.Error())
	}

	if result, done := classifyStatus(statusCode); done {
		if result.Status == StatusServiceError {
			n.logger.Warn("Nighthawk service error",
				logger.String("source", n.name),
				logger.String("icao24", modesAddress),
				logger.Int("status_code", statusCode))
		}
		return result
	}

	var payload nighthawkPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Icao == "" {
		return NotFound()
	}

	aircraft := &AircraftRecord{
		ModeS:           strings.ToUpper(payload.Icao),
		Registration:    payload.Registration,
		ICAOTypeCode:    payload.TypeCode,
		TypeDesignator:  payload.TypeCode,
		TypeDescription: payload.TypeDescription,
		Operator:        payload.Owner,
		Source:          "nighthawk-" + n.endpoint,
	}

	return resultFor(aircraft, body)
}

// DiscoverNighthawkSources queries the proxy's /sources endpoint and returns
// one source per discovered upstream, sorted by priority (lower first).
// Discovery failures are logged and yield an empty slice.
func DiscoverNighthawkSources(ctx context.Context, baseURL string, timeout time.Duration, ratePerSec float64, loggerObj *logger.Logger) []*NighthawkSource {
	log := loggerObj.Named("nighthawk")
	q := newHTTPQuerier(timeout, 0)

	statusCode, body, err := q.get(ctx, strings.TrimRight(baseURL, "/")+"/sources")
	if err != nil {
		log.Warn("Failed to discover nighthawk sources", logger.Error(err))
		return nil
	}
	if statusCode != 200 {
		log.Warn("Failed to discover nighthawk sources",
			logger.Int("status_code", statusCode))
		return nil
	}

	var payload struct {
		Sources []struct {
			Name     string `json:"name"`
			Priority int    `json:"priority"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("Unparsable nighthawk source list", logger.Error(err))
		return nil
	}

	sources := make([]*NighthawkSource, 0, len(payload.Sources))
	for _, info := range payload.Sources {
		if info.Name == "" {
			continue
		}
		sources = append(sources, NewNighthawkSource(baseURL, info.Name, info.Priority, timeout, ratePerSec, loggerObj))
		log.Info("Discovered nighthawk source",
			logger.String("name", info.Name),
			logger.Int("priority", info.Priority))
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].priority < sources[j].priority
	})

	return sources
}
