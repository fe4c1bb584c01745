package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/config"
	"github.com/afroash/buffet-monitor/internal/mqtt"
	"github.com/afroash/buffet-monitor/internal/probe"
)

func main() {
	configPath := flag.String("config", "configs/probe.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadProbeConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("sensor_id", cfg.Probe.SensorID).
		Str("thing_id", cfg.Probe.ThingID).
		Msg("Starting probe")

	client, err := mqtt.Connect(cfg.MQTT, logger)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	buffer := probe.NewPayloadBuffer(cfg.Buffer.Size, cfg.Buffer.DropOldest)
	publisher := probe.NewPublisher(
		cfg.Probe.SensorID,
		cfg.Probe.ThingID,
		cfg.Probe.PublishInterval,
		client,
		mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix},
		buffer,
		logger,
	)
	publisher.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down probe...")
	publisher.Stop()
	client.Close()
	logger.Info().Msg("Probe stopped")
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
