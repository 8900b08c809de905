// Package http serves the station WebSocket, the admin API, health probes and metrics.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/pkg/metrics"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

// Banner is served on "/".
const Banner = "KDS Grill Backend - WebSockets Active"

// OrderService is what the admin API needs from the order service.
type OrderService interface {
	List(ctx context.Context) ([]*model.Order, error)
	Requeue(ctx context.Context, id string) (*model.Order, error)
	Today(ctx context.Context) (*model.DailySummary, error)
}

// ReadyFunc reports whether the server can take traffic.
type ReadyFunc func(ctx context.Context) error

type Server struct {
	server  *http.Server
	options *options.HttpOptions
	logger  log.Logger
}

// NewServer builds the router. stations handles /ws. ready may be nil.
func NewServer(opts *options.HttpOptions, svc OrderService, stations http.Handler, ready ReadyFunc) *Server {
	h := &handler{svc: svc, ready: ready}

	r := mux.NewRouter()
	r.HandleFunc("/", h.banner).Methods(http.MethodGet)
	r.Handle("/ws", stations)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders/{id}/requeue", h.requeue).Methods(http.MethodPost)
	admin.HandleFunc("/reports/daily", h.dailyReport).Methods(http.MethodGet)

	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           r,
			ReadHeaderTimeout: opts.Timeout,
		},
		options: opts,
		logger:  log.WithName("http"),
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting HTTP Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown; the hub closes them.
		return s.server.Shutdown(shutdownCtx)
	}
}
