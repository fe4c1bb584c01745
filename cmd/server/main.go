package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/alert"
	"github.com/afroash/buffet-monitor/internal/binding"
	"github.com/afroash/buffet-monitor/internal/cache"
	"github.com/afroash/buffet-monitor/internal/config"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/mqtt"
	"github.com/afroash/buffet-monitor/internal/remote"
	"github.com/afroash/buffet-monitor/internal/server"
	"github.com/afroash/buffet-monitor/internal/storage"
	"github.com/afroash/buffet-monitor/internal/vision"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to config file")
	seed := flag.Bool("seed", false, "insert default thing definitions if none exist")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Msg("Starting buffet monitor server")

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.Path, logger)
	if err != nil {
		log.Fatalf("Failed to create SQLite store: %v", err)
	}

	if *seed {
		seedThings(store, logger)
	}

	things, err := store.ListThings()
	if err != nil {
		log.Fatalf("Failed to load thing definitions: %v", err)
	}
	if len(things) == 0 {
		logger.Warn().Msg("No thing definitions stored, nothing will be exposed (run with -seed?)")
	}

	writer := storage.NewIngestWriter(store, storage.IngestWriterConfig{
		BatchSize:   cfg.Storage.BatchSize,
		FlushPeriod: cfg.Storage.FlushPeriod,
		ChannelSize: cfg.Storage.ChannelSize,
	}, logger)

	cleaner := storage.NewRetentionCleaner(store, storage.RetentionCleanerConfig{
		RetentionDays: cfg.Storage.RetentionDays,
		CleanupPeriod: cfg.Storage.CleanupPeriod,
	}, logger)

	hub := alert.NewHub(logger)
	channels := []alert.Channel{hub}

	var mqttClient *mqtt.Client
	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
	if cfg.MQTT.BrokerURL != "" {
		mqttClient, err = mqtt.Connect(cfg.MQTT, logger)
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		channels = append(channels, alert.NewMQTTChannel(mqttClient, topics))
	} else {
		logger.Warn().Msg("No MQTT broker configured, events go to websocket subscribers only")
	}

	registry := binding.NewRegistry(binding.Deps{
		Cache:     cache.NewSensorCache(),
		Store:     store,
		Sink:      writer,
		Sensor:    remote.NewSensorClient(cfg.Sensor.BaseURL, cfg.Sensor.Timeout),
		Actuator:  remote.NewActuatorClient(cfg.Actuator.BaseURL, cfg.Actuator.CloseActionURL, cfg.Actuator.Timeout),
		Verdicter: vision.NewClient(cfg.Vision.BaseURL, cfg.Vision.APIKey, cfg.Vision.Model, cfg.Vision.Timeout),
		Alerts:    alert.NewFanout(logger, channels...),
		Health:    binding.RandomHealth{},
		Logger:    logger,
	})
	for _, thing := range things {
		if err := registry.Register(thing); err != nil {
			log.Fatalf("Failed to register thing: %v", err)
		}
	}

	if mqttClient != nil {
		exposition := server.NewMQTTExposition(mqttClient, topics, registry, logger)
		if err := exposition.Bind(); err != nil {
			log.Fatalf("Failed to bind MQTT exposition: %v", err)
		}
	}

	events := server.NewEventHandler(hub, logger, cfg.Server.AllowedOrigins...)
	handler := server.NewHandler(registry, store, events, version, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	writer.Stop()
	cleaner.Stop()
	if mqttClient != nil {
		mqttClient.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("Store close error")
	}

	logger.Info().Msg("Server stopped")
}

// seedThings inserts a default analyzer/camera pair when the things
// table is empty, so a fresh deployment has something to expose.
func seedThings(store storage.Store, logger zerolog.Logger) {
	things, err := store.ListThings()
	if err != nil || len(things) > 0 {
		return
	}

	defaults := []*models.Thing{
		{ID: "buffet-food-quality-analyzer-01", Title: "Buffet-Food-Quality-Analyzer", Type: models.DeviceTypeAnalyzer},
		{ID: "buffet-food-quality-cam-01", Title: "Buffet-Food-Quality-Cam", Type: models.DeviceTypeCamera},
	}
	for _, thing := range defaults {
		if err := store.InsertThing(thing); err != nil {
			logger.Error().Err(err).Str("thing_id", thing.ID).Msg("Failed to seed thing")
			continue
		}
		logger.Info().Str("thing_id", thing.ID).Msg("Seeded thing definition")
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
