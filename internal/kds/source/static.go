package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"k8s.io/utils/clock"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// StaticImage is the still image used by a capture when no live frame is
// buffered. It is read lazily on first use, normalized once and then served
// from memory until the file changes on disk.
type StaticImage struct {
	path     string
	geometry frame.Geometry
	clock    clock.PassiveClock
	logger   log.Logger

	mu     sync.Mutex
	cached *frame.Frame
}

func NewStaticImage(path string, g frame.Geometry) *StaticImage {
	return &StaticImage{
		path:     path,
		geometry: g,
		clock:    clock.RealClock{},
		logger:   log.WithName("static-image"),
	}
}

// Frame returns a copy of the normalized image, or an error wrapping
// core.ErrNoFrame when the file is missing or unreadable. A failed read is
// not cached, so a file added later is picked up.
func (s *StaticImage) Frame() (*frame.Frame, error) {
	if s.path == "" {
		return nil, fmt.Errorf("%w: no fallback image configured", core.ErrNoFrame)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		fh, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrNoFrame, err)
		}
		defer fh.Close()

		raw, err := decode(fh, s.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrNoFrame, s.path, err)
		}
		s.cached = frame.Normalize(raw, s.geometry)
		s.logger.Info("Fallback image loaded", "path", s.path)
	}

	return s.cached.Clone(), nil
}

// Invalidate drops the cached image so the next Frame call reads the file again.
func (s *StaticImage) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Watch invalidates the cache whenever the file is written, replaced or
// removed. It blocks until ctx is done.
func (s *StaticImage) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors and deploy tools replace files by rename, so watch the directory.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.logger.Info("Fallback image changed", "path", s.path, "op", ev.Op.String())
				s.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error(err, "Fallback image watcher error")
		}
	}
}
