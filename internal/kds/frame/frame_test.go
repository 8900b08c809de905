package frame

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
)

func solid(w, h int, c color.RGBA) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return New(img, time.Unix(0, 0))
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(nil, 1000))
	assert.False(t, IsValid(solid(640, 480, color.RGBA{A: 255}), 1000), "black frame")
	assert.True(t, IsValid(solid(640, 480, color.RGBA{R: 10, G: 10, B: 10, A: 255}), 1000))

	// 10x10 pixels of value 3 in each channel: 900, just under the threshold.
	assert.False(t, IsValid(solid(10, 10, color.RGBA{R: 3, G: 3, B: 3, A: 255}), 1000))
	assert.True(t, IsValid(solid(10, 10, color.RGBA{R: 5, G: 3, B: 3, A: 255}), 1000))
}

func TestIntensitySumIgnoresAlpha(t *testing.T) {
	assert.Equal(t, uint64(0), IntensitySum(solid(4, 4, color.RGBA{A: 255}).Image()))
	assert.Equal(t, uint64(16*3), IntensitySum(solid(4, 4, color.RGBA{R: 1, G: 1, B: 1}).Image()))
}

func TestCenterCrop(t *testing.T) {
	// 640x480 cropped to 7:8 keeps the full height and a centered 420px strip.
	r := CenterCrop(image.Rect(0, 0, 640, 480), 7.0/8.0)
	assert.Equal(t, image.Rect(110, 0, 530, 480), r)

	// Tall input keeps the full width.
	r = CenterCrop(image.Rect(0, 0, 420, 1000), 7.0/8.0)
	assert.Equal(t, 420, r.Dx())
	assert.Equal(t, 480, r.Dy())
}

func TestNormalize(t *testing.T) {
	g := Geometry{Width: 420, Height: 480, AspectRatio: 7.0 / 8.0}

	for _, size := range []image.Point{{640, 480}, {1920, 1080}, {100, 100}, {420, 480}} {
		out := Normalize(solid(size.X, size.Y, color.RGBA{R: 200, G: 100, B: 50, A: 255}), g)
		assert.Equal(t, 420, out.Width(), "%v", size)
		assert.Equal(t, 480, out.Height(), "%v", size)
		assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, out.Image().RGBAAt(200, 200))
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	f := solid(8, 8, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	b, err := EncodePNG(f)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, f.Image().Bounds(), img.Bounds())

	url := DataURL(b)
	require.True(t, strings.HasPrefix(url, DataURLPrefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, DataURLPrefix))
	require.NoError(t, err)
	assert.Equal(t, b, raw)
}

func TestBufferPublishRead(t *testing.T) {
	b := NewBuffer(1000)

	_, ok := b.Read()
	assert.False(t, ok)

	assert.ErrorIs(t, b.Publish(solid(8, 8, color.RGBA{A: 255})), core.ErrInvalidFrame)
	_, ok = b.Read()
	assert.False(t, ok, "invalid frames never reach the slot")

	src := solid(64, 64, color.RGBA{R: 90, A: 255})
	require.NoError(t, b.Publish(src))

	// Mutating the published source must not affect the slot.
	src.Image().Pix[0] = 0
	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, uint8(90), got.Image().Pix[0])

	// Mutating a read copy must not affect the slot either.
	got.Image().Pix[0] = 1
	again, _ := b.Read()
	assert.Equal(t, uint8(90), again.Image().Pix[0])

	b.Reset()
	_, ok = b.Read()
	assert.False(t, ok)
}

func TestBufferNoTornReads(t *testing.T) {
	b := NewBuffer(0)
	red := solid(32, 32, color.RGBA{R: 255, A: 255})
	blue := solid(32, 32, color.RGBA{B: 255, A: 255})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = b.Publish(red)
			} else {
				_ = b.Publish(blue)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		f, ok := b.Read()
		if !ok {
			continue
		}
		first := f.Image().RGBAAt(0, 0)
		last := f.Image().RGBAAt(31, 31)
		require.Equal(t, first, last, "torn frame")
	}
	close(stop)
	wg.Wait()
}
