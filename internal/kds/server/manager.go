// Package server runs the KDS ingress servers and background loops side by side.
package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// Server defines the common interface for everything the manager runs.
type Server interface {
	Start(ctx context.Context) error
}

// ServerFunc adapts a function to Server.
type ServerFunc func(ctx context.Context) error

func (f ServerFunc) Start(ctx context.Context) error { return f(ctx) }

// Manager manages the lifecycle of all servers. The first server to fail
// cancels the rest.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Add registers more servers before Start.
func (m *Manager) Add(servers ...Server) {
	m.servers = append(m.servers, servers...)
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}

// Optional wraps a server whose failure must not stop the process, such as
// the MQTT mirror or a camera refresh loop with a static fallback behind it.
// The error is logged and the wrapper waits for shutdown.
func Optional(name string, s Server) Server {
	return ServerFunc(func(ctx context.Context) error {
		if err := s.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error(err, "Optional component stopped, continuing without it", "component", name)
		}
		<-ctx.Done()
		return nil
	})
}
