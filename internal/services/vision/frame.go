// Package vision turns decoded leaf images into the numeric signals used for
// disease detection: a fixed-length feature vector, colour-spot coverage and
// an image quality verdict.
package vision

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// MaxSide bounds both dimensions of the frame used for analysis.
const MaxSide = 512

// Frame holds an image as 8-bit planes in RGB, HSV and grayscale. Hue uses
// the 0-180 scale so colour thresholds read the same as in common CV tools.
type Frame struct {
	Width, Height int

	R, G, B []uint8
	H, S, V []uint8
	Gray    []uint8
}

// Prepare converts img into a Frame, scaling it to MaxSide x MaxSide when
// either side exceeds MaxSide.
func Prepare(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > MaxSide || h > MaxSide {
		w, h = MaxSide, MaxSide
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(rgba, rgba.Bounds(), img, b, draw.Src, nil)
	}
	return NewFrame(rgba)
}

// NewFrame splits an RGBA image into planes without scaling.
func NewFrame(img *image.RGBA) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h

	f := &Frame{
		Width: w, Height: h,
		R: make([]uint8, n), G: make([]uint8, n), B: make([]uint8, n),
		H: make([]uint8, n), S: make([]uint8, n), V: make([]uint8, n),
		Gray: make([]uint8, n),
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			r, g, bl := row[x*4], row[x*4+1], row[x*4+2]
			f.R[i], f.G[i], f.B[i] = r, g, bl
			f.H[i], f.S[i], f.V[i] = toHSV(r, g, bl)
			f.Gray[i] = toGray(r, g, bl)
		}
	}
	return f
}

// Pixels is the number of pixels in the frame.
func (f *Frame) Pixels() int {
	return f.Width * f.Height
}

func toHSV(r, g, b uint8) (uint8, uint8, uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	v := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	diff := v - lo

	var s float64
	if v > 0 {
		s = diff / v * 255
	}

	var h float64
	if diff > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}
	return sat8(h / 2), sat8(s), uint8(v)
}

func toGray(r, g, b uint8) uint8 {
	return sat8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

func sat8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
