package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	pkgmqtt "github.com/kdsgrill/kdsgrill/pkg/mqtt"
	"github.com/kdsgrill/kdsgrill/pkg/mqtt/topic"
)

var _ core.EventNotifier = (*MQTTNotifier)(nil)

const (
	defaultQueueSize = 1024
	publishTimeout   = 5 * time.Second
)

type outbound struct {
	topic   string
	payload []byte
}

// MQTTNotifier mirrors lifecycle events to {root}/events/{event}. Notify only
// enqueues; Start owns the connection and publishes in order.
type MQTTNotifier struct {
	client pkgmqtt.Client
	topics *topic.TopicBuilder
	qos    int
	queue  chan outbound
	logger log.Logger
}

// NewMQTTNotifier wraps a dedicated egress client. The client is started by Start.
func NewMQTTNotifier(client pkgmqtt.Client, topics *topic.TopicBuilder, qos int) *MQTTNotifier {
	return &MQTTNotifier{
		client: client,
		topics: topics,
		qos:    qos,
		queue:  make(chan outbound, defaultQueueSize),
		logger: log.WithName("mqtt-notifier"),
	}
}

func (n *MQTTNotifier) Notify(_ context.Context, event *model.Event) error {
	// command_rejected is addressed to one station and is never mirrored.
	if event.Type == model.EventCommandRejected {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	select {
	case n.queue <- outbound{topic: n.topics.Event(string(event.Type)), payload: payload}:
		return nil
	default:
		return fmt.Errorf("mqtt mirror queue full, dropping %s event", event.Type)
	}
}

// Start connects and publishes queued events until ctx is done.
func (n *MQTTNotifier) Start(ctx context.Context) error {
	if err := n.client.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n.client.Disconnect(shutdownCtx)
	}()

	n.logger.Info("Mirroring order events to MQTT")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-n.queue:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := n.client.Publish(pubCtx, msg.topic, n.qos, false, msg.payload); err != nil && ctx.Err() == nil {
				n.logger.Error(err, "Failed to publish event", "topic", msg.topic)
			}
			cancel()
		}
	}
}
