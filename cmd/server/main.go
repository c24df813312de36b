package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikemorandi/flightradar/internal/airlines"
	"github.com/mikemorandi/flightradar/internal/api"
	"github.com/mikemorandi/flightradar/internal/config"
	"github.com/mikemorandi/flightradar/internal/crawler"
	"github.com/mikemorandi/flightradar/internal/metadata"
	"github.com/mikemorandi/flightradar/internal/radar"
	"github.com/mikemorandi/flightradar/internal/storage/sqlite"
	"github.com/mikemorandi/flightradar/internal/tracking"
	"github.com/mikemorandi/flightradar/internal/websocket"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting flightradar server",
		logger.String("radar_source", cfg.Radar.SourceType),
		logger.Bool("crawler_enabled", cfg.Crawler.Enabled))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := sqlite.New(sqlite.Options{
		Path:              cfg.Storage.Path,
		RetentionMinutes:  cfg.Storage.RetentionMinutes,
		MaxPositionsInAPI: cfg.Storage.MaxPositionsInAPI,
		MaxAttempts:       cfg.Crawler.MaxAttempts,
		ServiceErrorReset: time.Duration(cfg.Crawler.ServiceErrorResetHours) * time.Hour,
	}, log)
	if err != nil {
		log.Error("Failed to open storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Storage.RetentionMinutes > 0 {
		store.StartRetentionJob(time.Minute)
	}

	// Military range lookup (optional)
	var modes *tracking.ModesUtil
	if cfg.Radar.MilRangesPath != "" {
		modes, err = tracking.NewModesUtil(cfg.Radar.MilRangesPath)
		if err != nil {
			log.Error("Failed to load military ranges", logger.Error(err))
			os.Exit(1)
		}
	}
	if cfg.Radar.MilitaryOnly && modes == nil {
		log.Error("military_only requires mil_ranges_path")
		os.Exit(1)
	}

	// Flight tracking
	retention := time.Duration(cfg.Storage.RetentionMinutes) * time.Minute
	flightMgr := tracking.NewFlightManager(store.Flights, modes, cfg.Radar.MilitaryOnly, retention, log)
	if err := flightMgr.Initialize(ctx); err != nil {
		log.Error("Failed to initialize flight manager", logger.Error(err))
		os.Exit(1)
	}
	positionMgr := tracking.NewPositionManager(store.Positions, log)

	// Radar feed client
	radarClient := radar.NewClient(
		cfg.Radar.SourceType,
		cfg.Radar.SourceURL,
		time.Duration(cfg.Radar.TimeoutSecs)*time.Second,
		log,
	)

	// WebSocket hub
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Metadata crawler (optional)
	var crawlerSvc *crawler.Crawler
	var scheduler tracking.Scheduler
	if cfg.Crawler.Enabled {
		sourceTimeout := time.Duration(cfg.Crawler.SourceTimeoutSecs) * time.Second
		sources := []metadata.Source{
			metadata.NewHexDB(sourceTimeout, cfg.Crawler.SourceRateLimitPerSec, log),
			metadata.NewOpenSky(sourceTimeout, cfg.Crawler.SourceRateLimitPerSec, log),
		}
		if cfg.Crawler.NighthawkProxyURL != "" {
			discovered := metadata.DiscoverNighthawkSources(ctx, cfg.Crawler.NighthawkProxyURL, sourceTimeout, cfg.Crawler.SourceRateLimitPerSec, log)
			for _, s := range discovered {
				sources = append(sources, s)
			}
			log.Info("Discovered Nighthawk sources", logger.Int("count", len(discovered)))
		}

		breakers := crawler.NewCircuitBreakerRegistry(
			cfg.Crawler.BreakerFailureThreshold,
			time.Duration(cfg.Crawler.BreakerBaseBackoffSecs)*time.Second,
			time.Duration(cfg.Crawler.BreakerMaxBackoffSecs)*time.Second,
			log,
		)

		crawlerSvc = crawler.New(crawler.Options{
			Interval:        time.Duration(cfg.Crawler.IntervalSecs) * time.Second,
			BatchSize:       cfg.Crawler.BatchSize,
			ActivityLogSize: cfg.Crawler.ActivityLogSize,
		}, sources, breakers, store.Aircraft, store.Processing, store.QueryLogs, log)
		crawlerSvc.Start(ctx)

		scheduler = crawler.NewClassifier(
			store.Aircraft,
			store.Processing,
			cfg.Crawler.StalenessDays,
			cfg.Crawler.IncompleteStalenessDays,
			log,
		)
	}

	// Flight update coordinator
	updater := tracking.NewUpdater(
		radarClient,
		flightMgr,
		positionMgr,
		scheduler,
		wsServer,
		time.Duration(cfg.Radar.PollIntervalSecs)*time.Second,
		log,
	)
	updater.Start(ctx)

	// Airline directory (optional)
	var airlineDir *airlines.Directory
	if cfg.Airlines.OperatorsDBPath != "" {
		airlineDir, err = airlines.Load(cfg.Airlines.OperatorsDBPath, log)
		if err != nil {
			log.Error("Failed to load airline directory", logger.Error(err))
			os.Exit(1)
		}
	}

	// HTTP API
	handler := api.NewHandler(store.Flights, store.Aircraft, store.QueryLogs, crawlerSvc, airlineDir, wsServer, cfg, log)
	router := api.NewRouter(handler, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	updater.Stop()
	if crawlerSvc != nil {
		crawlerSvc.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", logger.Error(err))
	}

	log.Info("Server stopped")
}
