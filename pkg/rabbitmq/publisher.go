package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

type IPublisher interface {
	PublishMessage(topic string, qos byte, payload []byte) error
	PublishJSON(topic string, qos byte, v any) error
	Close()
}

// Publisher sends to any topic over a shared client.
type Publisher struct {
	client Client
}

func NewPublisher(client Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishMessage(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message on %s: %w", topic, token.Error())
	}
	log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("message published")
	return nil
}

func (p *Publisher) PublishJSON(topic string, qos byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return p.PublishMessage(topic, qos, b)
}

// Close disconnects the shared client.
func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client)
}
