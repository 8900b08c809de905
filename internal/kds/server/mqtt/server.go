// Package mqtt accepts station commands published to {root}/commands/{command}.
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/kds/server/command"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	pkgmqtt "github.com/kdsgrill/kdsgrill/pkg/mqtt"
	"github.com/kdsgrill/kdsgrill/pkg/mqtt/topic"
)

// Server implements the MQTT ingress layer.
type Server struct {
	client     pkgmqtt.Client
	topics     *topic.TopicBuilder
	dispatcher *command.Dispatcher
	qos        int
	logger     log.Logger
}

func NewServer(client pkgmqtt.Client, topics *topic.TopicBuilder, dispatcher *command.Dispatcher, qos int) *Server {
	return &Server{
		client:     client,
		topics:     topics,
		dispatcher: dispatcher,
		qos:        qos,
		logger:     log.WithName("mqtt-ingress"),
	}
}

// Start connects to the broker, subscribes to the command topics and serves
// until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		// Use a fresh context so the offline marker and DISCONNECT still go out.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.client.Publish(shutdownCtx, s.topics.Status(), s.qos, true, []byte("offline"))
		s.client.Disconnect(shutdownCtx)
	}()

	s.logger.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	filter := s.topics.CommandWildcard()
	handler := func(_ context.Context, t string, payload []byte) { s.handle(ctx, t, payload) }
	if err := s.client.Subscribe(ctx, filter, s.qos, handler); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
	}
	if err := s.client.Publish(ctx, s.topics.Status(), s.qos, true, []byte("online")); err != nil {
		s.logger.Warn("Failed to publish online marker", "reason", err.Error())
	}
	s.logger.Info("Accepting commands over MQTT", "topic", filter)

	<-ctx.Done()
	return nil
}

// handle routes one command. Rejections have no reply channel on MQTT and are
// only logged by the dispatcher.
func (s *Server) handle(ctx context.Context, t string, payload []byte) {
	name, ok := s.topics.CommandName(t)
	if !ok {
		s.logger.Debug("Ignoring message outside the command namespace", "topic", t)
		return
	}
	s.dispatcher.Dispatch(ctx, model.OriginMQTT, name, payload)
}
