package service

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// FrameReader returns a copy of the most recent valid frame.
type FrameReader interface {
	Read() (*frame.Frame, bool)
}

// FallbackImage returns the normalized static image, or an error wrapping
// core.ErrNoFrame when there is none.
type FallbackImage interface {
	Frame() (*frame.Frame, error)
}

// HaltFunc is called when an invariant is violated and the process must stop.
type HaltFunc func(err error)

// Service implements the order use cases: capture, status changes, removal,
// requeue and reporting. It is the only writer of the OrderStore.
type Service struct {
	store    core.OrderStore
	notifier core.EventNotifier
	archive  core.SnapshotArchive
	frames   FrameReader
	fallback FallbackImage
	policy   StatusPolicy

	clock           clock.Clock
	location        *time.Location
	defaultDuration int
	halt            HaltFunc
	logger          log.Logger

	// mu spans every store mutation together with its notification, so
	// stations see lifecycle events in the order the store applied them.
	// Sequence allocation of a capture runs under it as well.
	mu sync.Mutex

	inflight *semaphore.Weighted
	wg       sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithArchive copies every captured PNG to archive after it is persisted.
func WithArchive(archive core.SnapshotArchive) Option {
	return func(s *Service) { s.archive = archive }
}

func WithStatusPolicy(p StatusPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the timezone of StartedAt labels and daily reports.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithDefaultDuration sets the cooking budget of new and requeued orders.
func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) { s.defaultDuration = int(d / time.Second) }
}

// WithMaxConcurrentCaptures bounds captures started by Trigger. Further
// triggers wait for a slot.
func WithMaxConcurrentCaptures(n int) Option {
	return func(s *Service) { s.inflight = semaphore.NewWeighted(int64(n)) }
}

func WithHaltFunc(h HaltFunc) Option {
	return func(s *Service) { s.halt = h }
}

func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates the order service. Dependency injection happens here.
func New(
	store core.OrderStore,
	notifier core.EventNotifier,
	frames FrameReader,
	fallback FallbackImage,
	opts ...Option,
) *Service {
	s := &Service{
		store:           store,
		notifier:        notifier,
		frames:          frames,
		fallback:        fallback,
		policy:          PermissivePolicy(),
		clock:           clock.RealClock{},
		location:        time.Local,
		defaultDuration: model.DefaultInitialDuration,
		inflight:        semaphore.NewWeighted(4),
		logger:          log.WithName("order-service"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.halt == nil {
		s.halt = func(err error) {
			s.logger.Error(err, "Invariant violated; no halt handler installed")
		}
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.location)
}
