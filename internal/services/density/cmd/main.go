package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/config"
	"github.com/LeonardoBeccarini/crowdsense/internal/logging"
	"github.com/LeonardoBeccarini/crowdsense/internal/metrics"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/alertstore"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/broadcast"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/control"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/density"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/ingest"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/zonestore"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// === Zones ===
	var zones density.ZoneStore
	fileZones, err := zonestore.NewFileStore(cfg.ZonesFile)
	if err != nil {
		log.Warn().Err(err).Msg("using built-in demo zones")
		zones = zonestore.NewStatic(zonestore.SeedZones()...)
	} else {
		zones = fileZones
		go reloadOnHangup(ctx, fileZones)
	}

	// === Alert store ===
	sqlStore, err := alertstore.OpenSQLite(cfg.AlertDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AlertDBPath).Msg("open alert store")
	}
	defer sqlStore.Close()
	alerts := alertstore.NewBreaker(sqlStore, "alert-store", cfg.BreakerFailures, cfg.BreakerOpenFor, m)

	// === MQTT ===
	mqttClient, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: cfg.MQTTClientID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connection error")
	}
	defer rabbitmq.CloseRabbitMQConn(mqttClient)
	mqttSink := broadcast.NewMQTTSink(rabbitmq.NewPublisher(mqttClient))

	// === Sinks ===
	sinks := broadcast.Fanout{mqttSink}

	var influxSink *broadcast.InfluxSink
	if cfg.InfluxURL != "" {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		influxSink = broadcast.NewInfluxSink(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket))
		defer influxSink.Flush()
		sinks = append(sinks, influxSink)
		log.Info().Str("url", cfg.InfluxURL).Str("bucket", cfg.InfluxBucket).Msg("influx sink enabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := broadcast.NewKafkaSink(broadcast.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka sink enabled")
	}

	// === Engine ===
	engine := density.NewEngine(density.Config{
		Horizon:       cfg.WindowHorizon,
		SweepInterval: cfg.SweepInterval,
		QueueSize:     cfg.QueueSize,
		AlertCooldown: cfg.AlertCooldown,
	}, zones, alerts, sinks, density.WithMetrics(m))
	go engine.Start(ctx)

	// === Simulator + control ===
	sim := simulator.NewSimulator(simulator.Config{
		DeviceCount:    cfg.SimDeviceCount,
		UpdateInterval: cfg.SimUpdateInterval,
		MovementSpeed:  cfg.SimMovementSpeed,
		Seed:           cfg.SimSeed,
	}, simulator.WithMetrics(m))
	defer sim.Stop()

	submit := func(r model.SensorReading) { engine.Submit(r) }
	ctrl := control.NewController(ctx, sim, zones, submit, alerts, mqttSink)

	if cfg.SimAutoStart {
		if err := sim.Start(ctx, mustZones(ctx, zones), submit); err != nil {
			log.Error().Err(err).Msg("simulator autostart failed")
		}
	}

	// === Consumer ===
	ingestCfg := ingest.Config{ReadingsTopic: cfg.ReadingsTopic, ControlTopic: cfg.ControlTopic}
	consumer := rabbitmq.NewMultiConsumer(mqttClient, []string{cfg.ReadingsTopic, cfg.ControlTopic}, nil)
	svc := ingest.NewService(ingestCfg, consumer, engine, ctrl, m)
	go svc.Start(ctx)

	// === gRPC ===
	grpcAddr := ":" + strconv.Itoa(cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", grpcAddr).Msg("grpc listen")
	}
	grpcServer := grpc.NewServer()
	control.RegisterSimulationControlServer(grpcServer, control.NewGrpcHandler(ctrl))
	go func() {
		log.Info().Str("addr", grpcAddr).Msg("simulation control gRPC listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve error")
		}
	}()

	// === HTTP ===
	deps := app.Deps{
		Zones:          zones,
		Densities:      engine,
		Alerts:         alerts,
		Control:        ctrl,
		Devices:        sim,
		Metrics:        m.Handler(),
		MQTTConnected:  mqttClient.IsConnectionOpen,
		BreakerHealthy: func() bool { return alerts.State() != gobreaker.StateOpen },
	}
	if influxSink != nil {
		deps.WriteErrorAge = influxSink.LastErrorAge
	}
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           app.NewGateway(app.Config{}, deps).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	grpcServer.GracefulStop()
	sim.Stop()
	engine.Stop()
}

func mustZones(ctx context.Context, zones density.ZoneStore) []model.Zone {
	zs, err := zones.ListZones(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list zones")
	}
	return zs
}

func reloadOnHangup(ctx context.Context, store *zonestore.FileStore) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := store.Reload(); err != nil {
				log.Error().Err(err).Msg("zone reload failed, keeping previous zones")
			}
		}
	}
}
