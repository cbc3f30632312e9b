package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"micropost-be/internal/api"
	"micropost-be/internal/config"
	"micropost-be/internal/database"
	"micropost-be/internal/geoip"
	"micropost-be/internal/logger"
	"micropost-be/internal/monitoring"
	"micropost-be/internal/services"
	"micropost-be/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up the geolocation collaborator
	geoClient := geoip.NewClient(cfg.GeoIPBaseURL, cfg.GeoIPTimeout)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, geoClient, eventService)
	postService := services.NewPostService(db, eventService)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(db, hub)
	go statUpdater.Run()

	// Set up and run the background profile enricher
	enricher, err := monitoring.NewProfileEnricher(userService, geoClient, cfg.EnrichSweepSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid enrichment sweep spec")
	}
	go enricher.Run()

	// Set up router
	router := api.NewRouter(hub, userService, postService, eventService, statUpdater)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop()
	enricher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
