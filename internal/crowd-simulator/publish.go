package crowd_simulator

import (
	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq"
)

const ReadingsTopicPrefix = "sensor/data/"

// PublishReadings returns a handler that sends each reading as JSON to
// sensor/data/{deviceId}. Publish errors are logged and dropped.
func PublishReadings(pub rabbitmq.IPublisher) ReadingHandler {
	return func(r model.SensorReading) {
		topic := ReadingsTopicPrefix + r.DeviceID
		if err := pub.PublishJSON(topic, rabbitmq.QoSFor(topic), r); err != nil {
			log.Warn().Err(err).Str("device", r.DeviceID).Msg("reading publish failed")
		}
	}
}
