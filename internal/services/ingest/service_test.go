package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crowdsense/internal/metrics"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/crowdsense/pkg/rabbitmq/rabbitmqtest"
)

type recorder struct {
	mu       sync.Mutex
	readings []model.SensorReading
	commands []model.ControlCommand
	execErr  error
}

func (r *recorder) Submit(rd model.SensorReading) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, rd)
	return false
}

func (r *recorder) Exec(_ context.Context, cmd model.ControlCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return r.execErr
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings), len(r.commands)
}

func startService(t *testing.T, rec *recorder, m *metrics.Metrics) (*rabbitmqtest.Client, *Service) {
	t.Helper()
	client := rabbitmqtest.NewClient()
	cfg := Config{ReadingsTopic: "sensor/data/#", ControlTopic: "control/simulation"}
	consumer := rabbitmq.NewMultiConsumer(client, []string{cfg.ReadingsTopic, cfg.ControlTopic}, nil)
	svc := NewService(cfg, consumer, rec, rec, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		_, r := client.Subscribed(cfg.ReadingsTopic)
		_, c := client.Subscribed(cfg.ControlTopic)
		return r && c
	}, time.Second, 5*time.Millisecond)
	return client, svc
}

const validReading = `{"deviceId":"dev-1","timestamp":"2026-10-14T12:00:00Z","location":{"lat":45.0,"lng":9.0}}`

func TestService_Topics(t *testing.T) {
	svc := NewService(Config{ReadingsTopic: "sensor/data/#"}, rabbitmq.NewMultiConsumer(rabbitmqtest.NewClient(), nil, nil), &recorder{}, nil, nil)
	assert.Equal(t, []string{"sensor/data/#"}, svc.Topics())
}

func TestService_ReadingsAreSubmitted(t *testing.T) {
	rec := &recorder{}
	client, _ := startService(t, rec, nil)

	assert.Equal(t, 1, client.Deliver("sensor/data/dev-1", []byte(validReading)))
	assert.Equal(t, 1, client.Deliver("sensor/data/dev-1", []byte(`{"deviceId":"dev-1","location":[9.1,45.1]}`)))

	require.Len(t, rec.readings, 2)
	assert.Equal(t, "dev-1", rec.readings[0].DeviceID)
	assert.Equal(t, 45.0, rec.readings[0].Location.Lat)
	assert.Equal(t, 45.1, rec.readings[1].Location.Lat)
	assert.True(t, rec.readings[1].Timestamp.IsZero())
}

func TestService_InvalidReadingCounted(t *testing.T) {
	rec := &recorder{}
	m := metrics.New()
	client, _ := startService(t, rec, m)

	client.Deliver("sensor/data/dev-1", []byte(`{"deviceId":"","location":{"lat":1,"lng":2}}`))
	client.Deliver("sensor/data/dev-1", []byte(`not json`))

	n, _ := rec.counts()
	assert.Zero(t, n)
	expected := `
# HELP crowdsense_readings_total Sensor readings processed by outcome.
# TYPE crowdsense_readings_total counter
crowdsense_readings_total{result="invalid"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "crowdsense_readings_total"))
}

func TestService_ControlCommandsDeduplicated(t *testing.T) {
	rec := &recorder{}
	client, _ := startService(t, rec, nil)

	cmd := []byte(`{"requestId":"r-1","command":"add-crowd","zoneId":"main-stage","count":20}`)
	client.Deliver("control/simulation", cmd)
	client.Deliver("control/simulation", cmd)
	client.Deliver("control/simulation", []byte(`{"command":"start-simulation"}`))
	client.Deliver("control/simulation", []byte(`{"command":"start-simulation"}`))

	require.Len(t, rec.commands, 3)
	assert.Equal(t, messages.CmdAddCrowd, rec.commands[0].Command)
	assert.Equal(t, 20, rec.commands[0].Count)
	assert.Equal(t, messages.CmdStartSimulation, rec.commands[1].Command)
}

func TestService_HandleErrors(t *testing.T) {
	rec := &recorder{execErr: errors.New("boom")}
	svc := NewService(Config{ReadingsTopic: "sensor/data/#", ControlTopic: "control/simulation"},
		rabbitmq.NewMultiConsumer(rabbitmqtest.NewClient(), nil, nil), rec, rec, nil)

	err := svc.handle("", &rabbitmqtest.Message{TopicName: "control/simulation", Body: []byte(`{"command":"stop-simulation"}`)})
	assert.EqualError(t, err, "boom")

	err = svc.handle("", &rabbitmqtest.Message{TopicName: "control/simulation", Body: []byte(`{`)})
	assert.Error(t, err)

	err = svc.handle("", &rabbitmqtest.Message{TopicName: "other/topic", Body: []byte(validReading)})
	assert.NoError(t, err)
	n, _ := rec.counts()
	assert.Zero(t, n)
}
