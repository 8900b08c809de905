package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
)

// HTTPSnapshot polls a camera that serves its current picture as a JPEG or PNG
// over HTTP, the way most IP cameras expose /snapshot.jpg.
type HTTPSnapshot struct {
	name   string
	url    string
	client *http.Client
	clock  clock.PassiveClock
}

// NewHTTPSnapshot returns a source reading url with the given per-request timeout.
func NewHTTPSnapshot(name, url string, timeout time.Duration) *HTTPSnapshot {
	return &HTTPSnapshot{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
		clock:  clock.RealClock{},
	}
}

func (s *HTTPSnapshot) Name() string { return s.name }

func (s *HTTPSnapshot) Next(ctx context.Context) (*frame.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, core.ErrSourceUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, core.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w: status %d", s.name, core.ErrSourceUnavailable, resp.StatusCode)
	}

	f, err := decode(resp.Body, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, core.ErrSourceUnavailable, err)
	}
	return f, nil
}

func (s *HTTPSnapshot) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
