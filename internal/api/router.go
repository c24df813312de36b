package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mikemorandi/flightradar/internal/config"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// Router builds the HTTP routing table around the API handlers
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the assembled chi router
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(r.corsMiddleware)

	router.Route("/api", func(api chi.Router) {
		api.Get("/flights", r.handler.GetFlights)
		api.Get("/flights/{id}/track", r.handler.GetFlightTrack)
		api.Get("/aircraft/{icao24}", r.handler.GetAircraft)

		api.Get("/crawler/stats", r.handler.GetCrawlerStats)
		api.Get("/crawler/activity", r.handler.GetCrawlerActivity)
		api.Get("/crawler/logs", r.handler.GetCrawlerLogs)
		api.Post("/crawler/sources/{name}/{action}", r.handler.SetSourceEnabled)

		api.Get("/queue/stats", r.handler.GetQueueStats)

		api.Get("/airlines/search", r.handler.SearchAirlines)
		api.Get("/airlines/{icao}", r.handler.GetAirline)

		api.Get("/status", r.handler.GetStatus)
		api.Get("/ws", r.handler.WebSocketHandler)
	})

	return router
}

// corsMiddleware applies the configured CORS policy
func (r *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin != "" && r.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, req)
	})
}

func (r *Router) originAllowed(origin string) bool {
	for _, allowed := range r.config.Server.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
