// Package command routes inbound station commands to the order service.
// Every ingress (WebSocket, MQTT) shares one Dispatcher so a command has the
// same effect whichever channel carried it.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/pkg/metrics"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// ErrMalformed marks a command that could not be decoded. Such commands are dropped.
var ErrMalformed = errors.New("malformed command")

// Service is the slice of the order service commands need.
type Service interface {
	UpdateStatus(ctx context.Context, cmd *model.UpdateStatusCommand) (*model.Order, error)
	Remove(ctx context.Context, id string) error
	Trigger(ctx context.Context, origin model.CaptureOrigin) bool
}

type Dispatcher struct {
	svc    Service
	logger log.Logger
}

func NewDispatcher(svc Service) *Dispatcher {
	return &Dispatcher{svc: svc, logger: log.WithName("commands")}
}

// Dispatch executes one command. It returns a command_rejected event when the
// command names an unknown order or carries an invalid status; that event is
// meant for the originating station only. Malformed and unknown commands are
// logged and yield nil.
func (d *Dispatcher) Dispatch(ctx context.Context, origin model.CaptureOrigin, name string, payload []byte) *model.Event {
	err := d.run(ctx, origin, model.CommandType(name), payload)
	switch {
	case err == nil:
		metrics.CommandsTotal.WithLabelValues(name, "ok").Inc()
		return nil
	case rejectable(err):
		metrics.CommandsTotal.WithLabelValues(name, "rejected").Inc()
		d.logger.Info("Command rejected", "command", name, "origin", string(origin), "reason", err.Error())
		return RejectedEvent(name, err)
	case errors.Is(err, ErrMalformed):
		metrics.CommandsTotal.WithLabelValues(name, "ignored").Inc()
		d.logger.Warn("Ignoring malformed command", "command", name, "origin", string(origin), "reason", err.Error())
		return nil
	default:
		metrics.CommandsTotal.WithLabelValues(name, "failed").Inc()
		d.logger.Error(err, "Command failed", "command", name, "origin", string(origin))
		return nil
	}
}

func (d *Dispatcher) run(ctx context.Context, origin model.CaptureOrigin, name model.CommandType, payload []byte) error {
	switch name {
	case model.CommandUpdateStatus:
		var cmd model.UpdateStatusCommand
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		_, err := d.svc.UpdateStatus(ctx, &cmd)
		return err

	case model.CommandRemoveOrder:
		var cmd model.RemoveOrderCommand
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		return d.svc.Remove(ctx, cmd.ID)

	case model.CommandCapture:
		d.svc.Trigger(ctx, origin)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", ErrMalformed, name)
	}
}

func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func rejectable(err error) bool {
	return errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrInvalidStatus) ||
		errors.Is(err, core.ErrIllegalTransition) ||
		errors.Is(err, core.ErrInvalidCommand)
}

// RejectedEvent builds the command_rejected reply for err.
func RejectedEvent(command string, err error) *model.Event {
	return &model.Event{
		Type: model.EventCommandRejected,
		Data: &model.CommandRejected{Command: command, Reason: err.Error()},
	}
}
