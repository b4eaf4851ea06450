package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// MessageWriter is the part of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer that keys by zone so a zone's samples
// stay ordered within one partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
}

type KafkaSink struct {
	w MessageWriter
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (s *KafkaSink) PublishDensity(ctx context.Context, sample model.DensitySample) error {
	return s.write(ctx, sample.ZoneID, "density", sample.Timestamp, sample)
}

func (s *KafkaSink) PublishAlert(ctx context.Context, alert model.Alert) error {
	key := ""
	if len(alert.AffectedZones) > 0 {
		key = alert.AffectedZones[0]
	}
	return s.write(ctx, key, "alert", alert.Timestamp, alert)
}

func (s *KafkaSink) write(ctx context.Context, key, kind string, ts time.Time, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   b,
		Time:    ts,
		Headers: []kafka.Header{{Key: "type", Value: []byte(kind)}},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", kind, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}
