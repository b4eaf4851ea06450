package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Handler processes one message; topic is the subscription filter.
type Handler func(topic string, message mqtt.Message) error

type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes to a single topic filter.
type Consumer struct {
	client  Client
	handler Handler
	topic   string
}

func NewConsumer(client Client, topic string, handler Handler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// QoSFor returns the delivery level used for a topic: control commands
// and alerts are at-least-once, high-rate readings and density samples
// are at-most-once.
func QoSFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "control/") || strings.HasPrefix(t, "crowd/alerts") {
		return 1
	}
	return 0
}

func dispatch(topic string, h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if h == nil {
			log.Warn().Str("topic", topic).Msg("no handler set")
			return
		}
		if err := h(topic, msg); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("error handling message")
		}
	}
}

// ConsumeMessage subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	token := c.client.Subscribe(c.topic, QoSFor(c.topic), dispatch(c.topic, c.handler))
	if token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", c.topic).Msg("subscribe failed")
		return
	}
	log.Info().Str("topic", c.topic).Msg("subscribed")

	<-ctx.Done()
	c.client.Unsubscribe(c.topic).Wait()
}

// MultiConsumer subscribes one handler to several topic filters.
type MultiConsumer struct {
	client  Client
	topics  []string
	handler Handler
}

func NewMultiConsumer(client Client, topics []string, handler Handler) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		handler: handler,
	}
}

func (m *MultiConsumer) SetHandler(handler Handler) {
	m.handler = handler
}

func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range m.topics {
		token := m.client.Subscribe(topic, QoSFor(topic), dispatch(topic, m.handler))
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
			continue
		}
		log.Info().Str("topic", topic).Msg("subscribed")
	}

	<-ctx.Done()

	m.client.Unsubscribe(m.topics...).Wait()
}

// TopicMatches reports whether topic falls under an MQTT filter with + and
// # wildcards.
func TopicMatches(filter, topic string) bool {
	if filter == "" {
		return false
	}
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
