package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/utils/clock"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// ImageLoop replays the images of a directory in name order and starts over
// at the end, standing in for a looping preview video.
type ImageLoop struct {
	dir    string
	clock  clock.PassiveClock
	frames []*frame.Frame
	next   int
	loaded bool
}

func NewImageLoop(dir string) *ImageLoop {
	return &ImageLoop{dir: dir, clock: clock.RealClock{}}
}

func (l *ImageLoop) Name() string { return "loop:" + l.dir }

func (l *ImageLoop) Next(_ context.Context) (*frame.Frame, error) {
	if !l.loaded {
		if err := l.load(); err != nil {
			return nil, err
		}
	}
	if len(l.frames) == 0 {
		return nil, fmt.Errorf("%s: %w: no images", l.Name(), core.ErrSourceUnavailable)
	}

	if l.next >= len(l.frames) {
		l.next = 0
	}
	f := l.frames[l.next]
	l.next++

	return frame.New(f.Image(), l.clock.Now()), nil
}

// load decodes every image of the directory. Unreadable files are skipped.
// A directory that yields no frame is scanned again on the next call.
func (l *ImageLoop) load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", l.Name(), core.ErrSourceUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		fh, err := os.Open(filepath.Join(l.dir, name))
		if err != nil {
			continue
		}
		f, err := decode(fh, l.clock.Now())
		fh.Close()
		if err != nil {
			continue
		}
		l.frames = append(l.frames, f)
	}
	l.loaded = len(l.frames) > 0
	return nil
}

func (l *ImageLoop) Close() error {
	l.frames = nil
	l.loaded = false
	l.next = 0
	return nil
}
