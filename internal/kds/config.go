// Package kds assembles the kitchen display server from its adapters.
package kds

import (
	"context"
	"fmt"
	"os"

	"github.com/kdsgrill/kdsgrill/internal/kds/capture"
	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/service"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/internal/kds/notifier"
	"github.com/kdsgrill/kdsgrill/internal/kds/server"
	"github.com/kdsgrill/kdsgrill/internal/kds/server/command"
	kdshttp "github.com/kdsgrill/kdsgrill/internal/kds/server/http"
	kdsmqtt "github.com/kdsgrill/kdsgrill/internal/kds/server/mqtt"
	"github.com/kdsgrill/kdsgrill/internal/kds/server/ws"
	"github.com/kdsgrill/kdsgrill/internal/kds/source"
	"github.com/kdsgrill/kdsgrill/internal/kds/storage"
	"github.com/kdsgrill/kdsgrill/internal/kds/store/memory"
	"github.com/kdsgrill/kdsgrill/internal/kds/store/sqlstore"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	pkgmqtt "github.com/kdsgrill/kdsgrill/pkg/mqtt"
	"github.com/kdsgrill/kdsgrill/pkg/mqtt/topic"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

type Config struct {
	HttpOptions      *options.HttpOptions
	StoreOptions     *options.StoreOptions
	CaptureOptions   *options.CaptureOptions
	OrdersOptions    *options.OrdersOptions
	BroadcastOptions *options.BroadcastOptions
	MqttOptions      *options.MqttOptions
	S3Options        *options.S3Options
}

// NewKDSServer wires every adapter around the order service.
func (cfg *Config) NewKDSServer() (*KDSServer, error) {
	// 1. Infrastructure: Order store (Secondary Adapter)
	store, err := NewOrderStore(cfg.StoreOptions)
	if err != nil {
		return nil, err
	}

	s := &KDSServer{store: store}
	if err := cfg.wire(s); err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

func (cfg *Config) wire(s *KDSServer) error {
	capOpts := cfg.CaptureOptions
	geometry := frame.Geometry{
		Width:       capOpts.OutputWidth,
		Height:      capOpts.OutputHeight,
		AspectRatio: capOpts.AspectRatio,
	}

	loc, err := cfg.OrdersOptions.Location()
	if err != nil {
		return err
	}

	// 2. Frames: the buffer fed by the refresh loop and the static fallback.
	buffer := frame.NewBuffer(capOpts.BlackThreshold)
	fallback := source.NewStaticImage(capOpts.FallbackImage, geometry)

	// 3. Notifiers: stations first, then the optional MQTT mirror.
	hub := ws.NewHub(cfg.BroadcastOptions, s.store)
	notifiers := notifier.Multi{hub}

	var topics *topic.TopicBuilder
	var mirror *notifier.MQTTNotifier
	if cfg.MqttOptions.Enabled {
		topics = topic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)
		egress, err := cfg.newMQTTClient("notifier", "")
		if err != nil {
			return fmt.Errorf("failed to init notifier: %w", err)
		}
		mirror = notifier.NewMQTTNotifier(egress, topics, cfg.MqttOptions.QoS)
		notifiers = append(notifiers, mirror)
	}

	// 4. Core Domain Service
	svcOpts := []service.Option{
		service.WithLocation(loc),
		service.WithDefaultDuration(cfg.OrdersOptions.DefaultDuration),
		service.WithMaxConcurrentCaptures(capOpts.MaxConcurrent),
		service.WithHaltFunc(s.halt),
	}
	if cfg.OrdersOptions.StrictTransitions {
		svcOpts = append(svcOpts, service.WithStatusPolicy(service.StrictPolicy()))
	}
	if cfg.S3Options.Enabled {
		archive, err := storage.NewMinIO(cfg.S3Options)
		if err != nil {
			return err
		}
		s.archive = archive
		svcOpts = append(svcOpts, service.WithArchive(archive))
	}
	svc := service.New(s.store, notifiers, buffer, fallback, svcOpts...)
	s.svc = svc

	dispatcher := command.NewDispatcher(svc)
	hub.SetDispatcher(dispatcher)

	// 5. Ingress servers and background loops (Primary Adapters)
	ready := func(ctx context.Context) error {
		_, err := s.store.Count(ctx)
		return err
	}
	s.manager = server.NewManager(
		kdshttp.NewServer(cfg.HttpOptions, svc, hub, kdshttp.ReadyFunc(ready)),
		hub,
		server.Optional("fallback-watch", server.ServerFunc(fallback.Watch)),
	)

	if tiers := cfg.frameSources(); len(tiers) > 0 {
		chain := source.NewChain(tiers, capOpts.BlackThreshold)
		loop := capture.NewRefreshLoop(chain, buffer, capture.RefreshConfig{
			Geometry:      geometry,
			PollInterval:  capOpts.PollInterval,
			RetryDelay:    capOpts.RetryDelay,
			MaxRetryDelay: capOpts.MaxRetryDelay,
			StartupDelay:  capOpts.StartupDelay,
		})
		// Captures keep working from the static image if the loop dies.
		s.manager.Add(server.Optional("refresh-loop", loop))
	} else {
		log.Warn("No frame source configured, captures use the fallback image only", "path", capOpts.FallbackImage)
	}

	if capOpts.Interval > 0 {
		s.manager.Add(capture.NewInterval(capOpts.Interval, svc))
	}
	if capOpts.OperatorConsole {
		s.manager.Add(capture.NewConsole(os.Stdin, svc, s.stop))
	}
	if capOpts.Signal {
		s.manager.Add(capture.NewSignal(svc))
	}

	if cfg.MqttOptions.Enabled {
		ingress, err := cfg.newMQTTClient("", topics.Status())
		if err != nil {
			return fmt.Errorf("failed to init mqtt server: %w", err)
		}
		s.manager.Add(
			server.Optional("mqtt-ingress", kdsmqtt.NewServer(ingress, topics, dispatcher, cfg.MqttOptions.QoS)),
			server.Optional("mqtt-mirror", mirror),
		)
	}

	return nil
}

// frameSources lists the configured tiers in priority order.
func (cfg *Config) frameSources() []source.Source {
	o := cfg.CaptureOptions
	var tiers []source.Source
	if o.PrimaryURL != "" {
		tiers = append(tiers, source.NewHTTPSnapshot("primary", o.PrimaryURL, o.SourceTimeout))
	}
	if o.SecondaryURL != "" {
		tiers = append(tiers, source.NewHTTPSnapshot("secondary", o.SecondaryURL, o.SourceTimeout))
	}
	if o.FallbackDir != "" {
		tiers = append(tiers, source.NewImageLoop(o.FallbackDir))
	}
	return tiers
}

// newMQTTClient derives a client from the shared options. Ingress and egress
// use separate connections with distinct client ids. A non-empty statusTopic
// installs a retained "offline" will on it.
func (cfg *Config) newMQTTClient(suffix, statusTopic string) (pkgmqtt.Client, error) {
	c := cfg.MqttOptions.ToClientConfig()
	if c.ClientID == "" {
		hostname, _ := os.Hostname()
		c.ClientID = fmt.Sprintf("kds-server-%s", hostname)
	}
	if suffix != "" {
		c.ClientID += "-" + suffix
	}
	if statusTopic != "" {
		c.WillTopic = statusTopic
		c.WillPayload = []byte("offline")
		c.WillQoS = byte(cfg.MqttOptions.QoS)
		c.WillRetain = true
	}

	client, err := pkgmqtt.NewClient(c)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}
	return client, nil
}

// NewOrderStore opens the configured OrderStore driver.
func NewOrderStore(opts *options.StoreOptions) (core.OrderStore, error) {
	switch opts.Driver {
	case options.StoreDriverMemory:
		log.Warn("Using the in-memory order store; orders are lost on restart")
		return memory.New(), nil
	case options.StoreDriverSQLite:
		return sqlstore.Open(opts)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
