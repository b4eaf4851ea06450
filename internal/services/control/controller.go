// Package control executes simulation and alert commands coming from MQTT
// or gRPC.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/density"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingZone    = errors.New("command needs a zone id")
	ErrMissingAlert   = errors.New("command needs an alert id")
	ErrNoAlertStore   = errors.New("alert store not configured")
)

// Simulator is the crowd simulator surface driven by commands.
type Simulator interface {
	Start(ctx context.Context, zones []model.Zone, onReading simulator.ReadingHandler) error
	Stop()
	AddCrowd(zoneID string, n int) int
	RemoveCrowd(zoneID string, n int) int
	TriggerEmergency(zoneID string) int
	Running() bool
	DeviceCount() int
}

// AlertLifecycle moves stored alerts out of the active state.
type AlertLifecycle interface {
	Acknowledge(ctx context.Context, id string) (model.Alert, error)
	Resolve(ctx context.Context, id string) (model.Alert, error)
}

type AlertUpdatePublisher interface {
	PublishAlertUpdate(ctx context.Context, u messages.AlertUpdate) error
}

// Result describes the outcome of a command.
type Result struct {
	Command  messages.CommandKind `json:"command"`
	Running  bool                 `json:"running"`
	Devices  int                  `json:"devices"`
	Affected int                  `json:"affected"`
	Alert    *model.Alert         `json:"alert,omitempty"`
}

type Controller struct {
	base      context.Context
	sim       Simulator
	zones     density.ZoneStore
	onReading simulator.ReadingHandler
	alerts    AlertLifecycle
	updates   AlertUpdatePublisher
}

// NewController binds the simulator to the engine. base bounds the
// lifetime of any simulation started through it; alerts and updates may
// be nil.
func NewController(base context.Context, sim Simulator, zones density.ZoneStore, onReading simulator.ReadingHandler,
	alerts AlertLifecycle, updates AlertUpdatePublisher) *Controller {
	return &Controller{
		base:      base,
		sim:       sim,
		zones:     zones,
		onReading: onReading,
		alerts:    alerts,
		updates:   updates,
	}
}

func (c *Controller) Execute(ctx context.Context, cmd model.ControlCommand) (Result, error) {
	res := Result{Command: cmd.Command}
	var err error

	switch cmd.Command {
	case messages.CmdStartSimulation:
		err = c.start(ctx)
	case messages.CmdStopSimulation:
		c.sim.Stop()
	case messages.CmdAddCrowd:
		if cmd.ZoneID == "" {
			return res, ErrMissingZone
		}
		res.Affected = c.sim.AddCrowd(cmd.ZoneID, cmd.Count)
	case messages.CmdRemoveCrowd:
		if cmd.ZoneID == "" {
			return res, ErrMissingZone
		}
		res.Affected = c.sim.RemoveCrowd(cmd.ZoneID, cmd.Count)
	case messages.CmdTriggerEmergency:
		if cmd.ZoneID == "" {
			return res, ErrMissingZone
		}
		res.Affected = c.sim.TriggerEmergency(cmd.ZoneID)
	case messages.CmdAcknowledgeAlert, messages.CmdResolveAlert:
		res.Alert, err = c.transition(ctx, cmd.Command, cmd.AlertID)
		if res.Alert != nil {
			res.Affected = 1
		}
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
	if err != nil {
		return res, err
	}

	res.Running = c.sim.Running()
	res.Devices = c.sim.DeviceCount()
	log.Info().
		Str("command", string(cmd.Command)).
		Str("zone", cmd.ZoneID).
		Int("affected", res.Affected).
		Int("devices", res.Devices).
		Msg("control command executed")
	return res, nil
}

func (c *Controller) start(ctx context.Context) error {
	if c.sim.Running() {
		return nil
	}
	zones, err := c.zones.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", density.ErrZoneStore, err)
	}
	return c.sim.Start(c.base, zones, c.onReading)
}

func (c *Controller) transition(ctx context.Context, kind messages.CommandKind, id string) (*model.Alert, error) {
	if id == "" {
		return nil, ErrMissingAlert
	}
	if c.alerts == nil {
		return nil, ErrNoAlertStore
	}
	apply := c.alerts.Acknowledge
	if kind == messages.CmdResolveAlert {
		apply = c.alerts.Resolve
	}
	a, err := apply(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.updates != nil {
		if err := c.updates.PublishAlertUpdate(ctx, messages.AlertUpdate{ID: a.ID, Status: a.Status}); err != nil {
			log.Warn().Err(err).Str("alert", a.ID).Msg("alert update publish failed")
		}
	}
	return &a, nil
}

// Exec adapts Execute for callers that only need the error, such as the
// MQTT consumer.
func (c *Controller) Exec(ctx context.Context, cmd model.ControlCommand) error {
	_, err := c.Execute(ctx, cmd)
	return err
}
