package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"time"

	"golang.org/x/image/draw"
)

// DataURLPrefix is prepended to base64 PNG payloads.
const DataURLPrefix = "data:image/png;base64,"

// Frame is an immutable RGBA snapshot. Callers must not write to Image().Pix.
type Frame struct {
	img        *image.RGBA
	capturedAt time.Time
}

// New copies img into a Frame anchored at the origin.
func New(img image.Image, capturedAt time.Time) *Frame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Frame{img: dst, capturedAt: capturedAt}
}

func (f *Frame) Image() *image.RGBA { return f.img }

func (f *Frame) CapturedAt() time.Time { return f.capturedAt }

func (f *Frame) Width() int { return f.img.Rect.Dx() }

func (f *Frame) Height() int { return f.img.Rect.Dy() }

// Clone returns a copy that shares no pixel memory with f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	pix := make([]uint8, len(f.img.Pix))
	copy(pix, f.img.Pix)
	return &Frame{
		img: &image.RGBA{
			Pix:    pix,
			Stride: f.img.Stride,
			Rect:   f.img.Rect,
		},
		capturedAt: f.capturedAt,
	}
}

// IntensitySum adds up the R, G and B samples of every pixel.
func IntensitySum(img *image.RGBA) uint64 {
	var sum uint64
	b := img.Rect
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			sum += uint64(row[i]) + uint64(row[i+1]) + uint64(row[i+2])
		}
	}
	return sum
}

// IsValid reports whether f is non-empty and brighter than threshold.
// Warming-up or disconnected cameras deliver all-black frames that fail this check.
func IsValid(f *Frame, threshold uint64) bool {
	if f == nil || f.img == nil || f.img.Rect.Empty() {
		return false
	}
	return IntensitySum(f.img) > threshold
}

// Geometry is the fixed output shape every consumer sees.
type Geometry struct {
	Width       int
	Height      int
	AspectRatio float64 // width / height of the center crop
}

// Normalize center-crops src to g.AspectRatio and scales the crop to g.Width x g.Height.
func Normalize(src *Frame, g Geometry) *Frame {
	crop := CenterCrop(src.img.Rect, g.AspectRatio)
	dst := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	if crop.Dx() == g.Width && crop.Dy() == g.Height {
		draw.Copy(dst, image.Point{}, src.img, crop, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src.img, crop, draw.Src, nil)
	}
	return &Frame{img: dst, capturedAt: src.capturedAt}
}

// CenterCrop returns the largest rectangle of the given aspect ratio centered in r.
func CenterCrop(r image.Rectangle, aspect float64) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 || aspect <= 0 {
		return r
	}

	cw, ch := w, h
	if float64(w)/float64(h) > aspect {
		cw = int(float64(h) * aspect)
	} else {
		ch = int(float64(w) / aspect)
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	x0 := r.Min.X + (w-cw)/2
	y0 := r.Min.Y + (h-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// EncodePNG encodes f losslessly.
func EncodePNG(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, f.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes in a data URL suitable for an <img> src.
func DataURL(pngBytes []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(pngBytes)
}
