package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/config"
	"github.com/LeonardoBeccarini/crowdsense/internal/logging"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/control"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/ingest"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/zonestore"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq"
)

// Standalone simulator: publishes synthetic readings to the broker and,
// with -control, obeys crowd commands on the control topic.
func main() {
	cfg := config.Load()

	clientID := flag.String("client-id", "crowdsense-simulator", "MQTT client ID")
	devices := flag.Int("devices", cfg.SimDeviceCount, "initial simulated devices")
	interval := flag.Duration("interval", cfg.SimUpdateInterval, "update interval")
	speed := flag.Float64("speed", cfg.SimMovementSpeed, "movement speed")
	seed := flag.Int64("seed", cfg.SimSeed, "random seed, 0 for time based")
	zonesFile := flag.String("zones", cfg.ZonesFile, "GeoJSON zones file")
	listenControl := flag.Bool("control", false, "subscribe to the control topic")
	flag.Parse()

	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var zones []model.Zone
	if store, err := zonestore.NewFileStore(*zonesFile); err != nil {
		log.Warn().Err(err).Msg("using built-in demo zones")
		zones = zonestore.SeedZones()
	} else {
		zones, _ = store.ListZones(ctx)
	}

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: *clientID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connection error")
	}
	defer rabbitmq.CloseRabbitMQConn(client)

	sim := simulator.NewSimulator(simulator.Config{
		DeviceCount:    *devices,
		UpdateInterval: *interval,
		MovementSpeed:  *speed,
		Seed:           *seed,
	})
	publish := simulator.PublishReadings(rabbitmq.NewPublisher(client))
	if err := sim.Start(ctx, zones, publish); err != nil {
		log.Fatal().Err(err).Msg("simulator start")
	}
	defer sim.Stop()

	if *listenControl {
		ctrl := control.NewController(ctx, sim, zonestore.NewStatic(zones...), publish, nil, nil)
		consumer := rabbitmq.NewConsumer(client, cfg.ControlTopic, nil)
		svc := ingest.NewService(ingest.Config{ControlTopic: cfg.ControlTopic}, consumer, nil, ctrl, nil)
		go svc.Start(ctx)
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("simulator shutting down")
			return
		case <-ticker.C:
			log.Info().Int("devices", sim.DeviceCount()).Msg("simulation running")
		}
	}
}
