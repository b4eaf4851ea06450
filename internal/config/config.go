package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	LogLevel string

	// MQTT broker (RabbitMQ MQTT plugin or any MQTT broker)
	MQTTHost      string
	MQTTPort      int
	MQTTUser      string
	MQTTPassword  string
	MQTTClientID  string
	ReadingsTopic string
	ControlTopic  string

	// Zones and alert persistence
	ZonesFile   string
	AlertDBPath string

	// InfluxDB density history; disabled when InfluxURL is empty
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// Kafka density feed; disabled when KafkaBrokers is empty
	KafkaBrokers []string
	KafkaTopic   string

	HTTPPort int
	GRPCPort int

	// Engine
	WindowHorizon time.Duration
	SweepInterval time.Duration
	QueueSize     int
	AlertCooldown time.Duration

	// Simulator
	SimDeviceCount    int
	SimUpdateInterval time.Duration
	SimMovementSpeed  float64
	SimSeed           int64
	SimAutoStart      bool

	// Alert store circuit breaker
	BreakerFailures int
	BreakerOpenFor  time.Duration

	ShutdownTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("loaded configuration from .env file")
	}

	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MQTTHost:      getEnv("MQTT_HOST", "localhost"),
		MQTTPort:      getEnvInt("MQTT_PORT", 1883),
		MQTTUser:      getEnv("MQTT_USER", "guest"),
		MQTTPassword:  getEnv("MQTT_PASSWORD", "guest"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "crowdsense-density"),
		ReadingsTopic: getEnv("READINGS_TOPIC", "sensor/data/#"),
		ControlTopic:  getEnv("CONTROL_TOPIC", "control/simulation"),

		ZonesFile:   getEnv("ZONES_FILE", "config/zones.geojson"),
		AlertDBPath: getEnv("ALERT_DB_PATH", "crowdsense.db"),

		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "crowdsense"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "density"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "crowd.density"),

		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 50051),

		WindowHorizon: getEnvDuration("WINDOW_HORIZON", 5*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
		QueueSize:     getEnvInt("QUEUE_SIZE", 1024),
		AlertCooldown: getEnvDuration("ALERT_COOLDOWN", 0),

		SimDeviceCount:    getEnvInt("SIM_DEVICE_COUNT", 100),
		SimUpdateInterval: getEnvDuration("SIM_UPDATE_INTERVAL", time.Second),
		SimMovementSpeed:  getEnvFloat("SIM_MOVEMENT_SPEED", 1.5),
		SimSeed:           int64(getEnvInt("SIM_SEED", 0)),
		SimAutoStart:      getEnvBool("SIM_AUTOSTART", false),

		BreakerFailures: getEnvInt("BREAKER_FAILURES", 5),
		BreakerOpenFor:  getEnvDuration("BREAKER_OPEN_FOR", 30*time.Second),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid float, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
