// Package ingest turns MQTT traffic into engine readings and control
// commands.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/metrics"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
	"github.com/LeonardoBeccarini/crowdsense/pkg/dedup"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq"
)

const commandTimeout = 5 * time.Second

type ReadingSubmitter interface {
	Submit(r model.SensorReading) (dropped bool)
}

type CommandExecutor interface {
	Exec(ctx context.Context, cmd model.ControlCommand) error
}

type Config struct {
	// ReadingsTopic is a filter such as "sensor/data/#".
	ReadingsTopic string
	ControlTopic  string
	// DedupTTL bounds how long a control RequestID is remembered.
	DedupTTL time.Duration
}

type Service struct {
	cfg      Config
	consumer rabbitmq.IConsumer
	engine   ReadingSubmitter
	control  CommandExecutor
	seen     *dedup.Deduper
	metrics  *metrics.Metrics
	ctx      context.Context
}

// NewService wires the consumer handler. control may be nil, in which case
// control messages are logged and dropped.
func NewService(cfg Config, consumer rabbitmq.IConsumer, engine ReadingSubmitter, control CommandExecutor, m *metrics.Metrics) *Service {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 10 * time.Minute
	}
	s := &Service{
		cfg:      cfg,
		consumer: consumer,
		engine:   engine,
		control:  control,
		seen:     dedup.New(cfg.DedupTTL, 10000),
		metrics:  m,
		ctx:      context.Background(),
	}
	consumer.SetHandler(s.handle)
	return s
}

// Topics returns the filters the service expects to be subscribed to.
func (s *Service) Topics() []string {
	out := []string{s.cfg.ReadingsTopic}
	if s.cfg.ControlTopic != "" {
		out = append(out, s.cfg.ControlTopic)
	}
	return out
}

// Start subscribes and blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.ctx = ctx
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handle(_ string, msg mqtt.Message) error {
	topic := msg.Topic()
	switch {
	case s.cfg.ControlTopic != "" && topic == s.cfg.ControlTopic:
		return s.handleControl(msg.Payload())
	case rabbitmq.TopicMatches(s.cfg.ReadingsTopic, topic):
		return s.handleReading(topic, msg.Payload())
	default:
		log.Debug().Str("topic", topic).Msg("ignoring message on unexpected topic")
		return nil
	}
}

func (s *Service) handleReading(topic string, payload []byte) error {
	r, err := messages.DecodeSensorReading(payload)
	if err != nil {
		s.metrics.Reading(metrics.ResultInvalid)
		return fmt.Errorf("decode reading on %s: %w", topic, err)
	}
	if s.engine.Submit(r) {
		log.Debug().Str("device", r.DeviceID).Msg("reading queue full, dropped oldest")
	}
	return nil
}

func (s *Service) handleControl(payload []byte) error {
	var cmd model.ControlCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decode control command: %w", err)
	}
	if cmd.RequestID != "" && !s.seen.ShouldProcess(cmd.RequestID) {
		log.Debug().Str("request", cmd.RequestID).Msg("duplicate control command")
		return nil
	}
	if s.control == nil {
		log.Warn().Str("command", string(cmd.Command)).Msg("no controller configured")
		return nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	return s.control.Exec(ctx, cmd)
}
