package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mikemorandi/flightradar/internal/airlines"
	"github.com/mikemorandi/flightradar/internal/config"
	"github.com/mikemorandi/flightradar/internal/crawler"
	"github.com/mikemorandi/flightradar/internal/storage/sqlite"
	"github.com/mikemorandi/flightradar/internal/websocket"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

const (
	defaultFlightsWindowMinutes = 10
	defaultCrawlerLogLimit      = 100
	defaultSearchLimit          = 25
)

// Handler contains the API handlers
type Handler struct {
	flights   *sqlite.FlightStore
	aircraft  *sqlite.AircraftStore
	queryLogs *sqlite.QueryLogStore
	crawler   *crawler.Crawler
	airlines  *airlines.Directory
	wsServer  *websocket.Server
	config    *config.Config
	logger    *logger.Logger
	startedAt time.Time
}

// NewHandler creates a new API handler. crawler and airlines may be nil when
// those subsystems are disabled.
func NewHandler(flights *sqlite.FlightStore, aircraft *sqlite.AircraftStore, queryLogs *sqlite.QueryLogStore, crawlerSvc *crawler.Crawler, airlineDir *airlines.Directory, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		flights:   flights,
		aircraft:  aircraft,
		queryLogs: queryLogs,
		crawler:   crawlerSvc,
		airlines:  airlineDir,
		wsServer:  wsServer,
		config:    cfg,
		logger:    log.Named("api-handler"),
		startedAt: time.Now().UTC(),
	}
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing left to do but note it
		return
	}
}

// GetFlights returns recently seen flights with their last known position
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	minutes := defaultFlightsWindowMinutes
	if s := r.URL.Query().Get("last_seen_minutes"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			minutes = parsed
		}
	}

	since := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
	flights, err := h.flights.GetRecentWithLastPosition(r.Context(), since)
	if err != nil {
		h.logger.Error("Failed to get flights", logger.Error(err))
		http.Error(w, "Failed to get flights", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"flights": flights,
		"count":   len(flights),
	})
}

// GetFlightTrack returns the stored track of a single flight
func (h *Handler) GetFlightTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing flight ID", http.StatusBadRequest)
		return
	}

	track, err := h.flights.GetTrack(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get flight track",
			logger.Error(err),
			logger.String("flight_id", id))
		http.Error(w, "Failed to get flight track", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"flight_id": id,
		"track":     track,
		"count":     len(track),
	})
}

// GetAircraft returns stored metadata plus split tracks for a Mode-S address
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	icao24 := strings.ToUpper(chi.URLParam(r, "icao24"))
	if icao24 == "" {
		http.Error(w, "Missing aircraft address", http.StatusBadRequest)
		return
	}

	record, err := h.aircraft.Get(r.Context(), icao24)
	if err != nil {
		h.logger.Error("Failed to get aircraft metadata",
			logger.Error(err),
			logger.String("icao24", icao24))
		http.Error(w, "Failed to get aircraft metadata", http.StatusInternalServerError)
		return
	}

	tracks, err := h.flights.GetTracksByAircraft(r.Context(), icao24)
	if err != nil {
		h.logger.Error("Failed to get aircraft tracks",
			logger.Error(err),
			logger.String("icao24", icao24))
		http.Error(w, "Failed to get aircraft tracks", http.StatusInternalServerError)
		return
	}

	if record == nil && len(tracks) == 0 {
		http.Error(w, "Aircraft not found", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"icao24":   icao24,
		"metadata": record,
		"tracks":   tracks,
	})
}

// GetCrawlerStats returns per-source circuit breaker state and enable flags
func (h *Handler) GetCrawlerStats(w http.ResponseWriter, r *http.Request) {
	if h.crawler == nil {
		http.Error(w, "Crawler not enabled", http.StatusServiceUnavailable)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"sources":  h.crawler.SourceStates(),
		"breakers": h.crawler.BreakerStats(),
	})
}

// GetCrawlerActivity returns the recent crawl activity feed, newest first
func (h *Handler) GetCrawlerActivity(w http.ResponseWriter, r *http.Request) {
	if h.crawler == nil {
		http.Error(w, "Crawler not enabled", http.StatusServiceUnavailable)
		return
	}

	activity := h.crawler.Activity()
	WriteJSON(w, http.StatusOK, map[string]any{
		"activity": activity,
		"count":    len(activity),
	})
}

// GetCrawlerLogs returns recent per-source query log entries
func (h *Handler) GetCrawlerLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultCrawlerLogLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.queryLogs.GetRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get crawler logs", logger.Error(err))
		http.Error(w, "Failed to get crawler logs", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

// SetSourceEnabled enables or disables a metadata source at runtime
func (h *Handler) SetSourceEnabled(w http.ResponseWriter, r *http.Request) {
	if h.crawler == nil {
		http.Error(w, "Crawler not enabled", http.StatusServiceUnavailable)
		return
	}

	name := chi.URLParam(r, "name")
	action := chi.URLParam(r, "action")
	if name == "" || (action != "enable" && action != "disable") {
		http.Error(w, "Invalid source or action", http.StatusBadRequest)
		return
	}

	if err := h.crawler.SetSourceEnabled(name, action == "enable"); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.logger.Info("Source toggled",
		logger.String("source", name),
		logger.String("action", action))

	WriteJSON(w, http.StatusOK, map[string]any{
		"source":  name,
		"enabled": action == "enable",
	})
}

// GetQueueStats returns processing queue counters
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	if h.crawler == nil {
		http.Error(w, "Crawler not enabled", http.StatusServiceUnavailable)
		return
	}

	stats, err := h.crawler.QueueStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get queue stats", logger.Error(err))
		http.Error(w, "Failed to get queue stats", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// GetAirline returns one airline by 3-letter ICAO code
func (h *Handler) GetAirline(w http.ResponseWriter, r *http.Request) {
	if h.airlines == nil {
		http.Error(w, "Airline directory not loaded", http.StatusServiceUnavailable)
		return
	}

	icao := chi.URLParam(r, "icao")
	airline, ok := h.airlines.Get(icao)
	if !ok {
		http.Error(w, "Airline not found", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, airline)
}

// SearchAirlines returns airlines matching the q query parameter
func (h *Handler) SearchAirlines(w http.ResponseWriter, r *http.Request) {
	if h.airlines == nil {
		http.Error(w, "Airline directory not loaded", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing query parameter", http.StatusBadRequest)
		return
	}

	limit := defaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	results := h.airlines.Search(query, limit)
	WriteJSON(w, http.StatusOK, map[string]any{
		"airlines": results,
		"count":    len(results),
	})
}

// GetStatus returns server status and basic counters
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":          "ok",
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"radar_source":    h.config.Radar.SourceType,
		"military_only":   h.config.Radar.MilitaryOnly,
		"crawler_enabled": h.crawler != nil,
	}

	if count, err := h.aircraft.Count(r.Context()); err == nil {
		status["known_aircraft"] = count
	}
	if h.airlines != nil {
		status["airlines"] = h.airlines.Count()
	}

	WriteJSON(w, http.StatusOK, status)
}

// WebSocketHandler upgrades the connection and hands it to the hub
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}
