// Package source provides the frame sources feeding the refresh loop: HTTP
// snapshot cameras, a looping directory of still images, a fallback chain
// over them, and the static fallback image used by captures.
package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
)

// Source produces raw frames on demand.
//
// Next returns an error wrapping core.ErrSourceUnavailable when no frame can
// be produced right now. Implementations are used from a single goroutine.
type Source interface {
	Name() string
	Next(ctx context.Context) (*frame.Frame, error)
	Close() error
}

const (
	// maxImageBytes bounds one encoded image.
	maxImageBytes = 16 << 20
	// maxImagePixels bounds the canvas an image header may declare (8K UHD).
	maxImagePixels = 7680 * 4320
)

// decode reads one encoded image. The header is checked against
// maxImagePixels before any pixel buffer is allocated.
func decode(r io.Reader, at time.Time) (*frame.Frame, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("decode image: larger than %d bytes", maxImageBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("decode image: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxImagePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return frame.New(img, at), nil
}
