// Package broadcast fans density samples and alerts out to MQTT, Kafka
// and InfluxDB.
package broadcast

import (
	"context"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq"
)

const (
	DensityTopicPrefix = "crowd/density/"
	AlertTopicPrefix   = "crowd/alerts/"
	AlertUpdatesTopic  = "crowd/alerts/updates"
)

// MQTTSink publishes samples at-most-once and alerts at-least-once.
type MQTTSink struct {
	pub rabbitmq.IPublisher
}

func NewMQTTSink(pub rabbitmq.IPublisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) PublishDensity(_ context.Context, sample model.DensitySample) error {
	topic := DensityTopicPrefix + sample.ZoneID
	return s.pub.PublishJSON(topic, rabbitmq.QoSFor(topic), sample)
}

// PublishAlert sends one message per affected zone.
func (s *MQTTSink) PublishAlert(_ context.Context, alert model.Alert) error {
	zones := alert.AffectedZones
	if len(zones) == 0 {
		zones = []string{"all"}
	}
	for _, z := range zones {
		topic := AlertTopicPrefix + z
		if err := s.pub.PublishJSON(topic, rabbitmq.QoSFor(topic), alert); err != nil {
			return err
		}
	}
	return nil
}

func (s *MQTTSink) PublishAlertUpdate(_ context.Context, u messages.AlertUpdate) error {
	return s.pub.PublishJSON(AlertUpdatesTopic, rabbitmq.QoSFor(AlertUpdatesTopic), u)
}
