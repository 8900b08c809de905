package kds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/service"
	"github.com/kdsgrill/kdsgrill/internal/kds/server"
	"github.com/kdsgrill/kdsgrill/internal/kds/storage"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// ErrHalted wraps the invariant violation that stopped the server.
var ErrHalted = errors.New("kds server halted")

type KDSServer struct {
	store   core.OrderStore
	svc     *service.Service
	archive *storage.MinIO
	manager *server.Manager

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	// pending holds a halt or stop that arrived before Run.
	pending error
}

// Run serves until ctx is done, the operator quits, or an invariant is violated.
// In-flight captures finish before the store is closed.
func (s *KDSServer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	s.cancel = cancel
	if s.pending != nil {
		cancel(s.pending)
	}
	s.mu.Unlock()

	if s.archive != nil {
		bucketCtx, done := context.WithTimeout(ctx, 10*time.Second)
		if err := s.archive.EnsureBucket(bucketCtx); err != nil {
			log.Error(err, "Snapshot archive bucket check failed")
		}
		done()
	}

	log.Info("KDS server starting")
	err := s.manager.Start(ctx)

	s.svc.Wait()
	if cerr := s.store.Close(); cerr != nil {
		log.Error(cerr, "Failed to close order store")
	}

	if cause := context.Cause(ctx); errors.Is(cause, ErrHalted) {
		return cause
	}
	if err != nil {
		return err
	}
	log.Info("KDS server stopped gracefully")
	return nil
}

// halt is the service's invariant-violation hook.
func (s *KDSServer) halt(err error) {
	log.Error(err, "Invariant violated, halting")
	s.cancelWith(fmt.Errorf("%w: %w", ErrHalted, err))
}

// stop is the operator's quit request.
func (s *KDSServer) stop() {
	log.Info("Stop requested by operator")
	s.cancelWith(context.Canceled)
}

func (s *KDSServer) cancelWith(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		if s.pending == nil {
			s.pending = cause
		}
		return
	}
	s.cancel(cause)
}
