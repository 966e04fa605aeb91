package palette

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/oho/palette-refinery/internal/kmeans"
)

// SampleOptions controls how pixels become samples.
type SampleOptions struct {
	// MaxDimension downsizes the image so its longer side is at most this
	// many pixels before sampling. 0 keeps the original size.
	MaxDimension int `json:"max_dimension"`
	// AlphaThreshold skips pixels whose 8-bit alpha is below it.
	AlphaThreshold uint8 `json:"alpha_threshold"`
	// Step keeps every Step-th remaining pixel in raster order.
	Step int `json:"step"`
}

// DefaultSampleOptions returns the sampling defaults.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{MaxDimension: 256, AlphaThreshold: 128, Step: 1}
}

// Samples converts the pixels of img into points in cs.
func Samples(img image.Image, cs ColorSpace, opts SampleOptions) []kmeans.Point {
	img = downscale(img, opts.MaxDimension)
	step := max(opts.Step, 1)

	b := img.Bounds()
	samples := make([]kmeans.Point, 0, b.Dx()*b.Dy()/step)
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if px.A < opts.AlphaThreshold || px.A == 0 {
				continue
			}
			n++
			if (n-1)%step != 0 {
				continue
			}
			c := colorful.Color{R: float64(px.R) / 255, G: float64(px.G) / 255, B: float64(px.B) / 255}
			samples = append(samples, cs.Point(c))
		}
	}
	return samples
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	if w >= h {
		h = max(h*maxDim/w, 1)
		w = maxDim
	} else {
		w = max(w*maxDim/h, 1)
		h = maxDim
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
