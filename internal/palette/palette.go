// Package palette reduces images to a small set of representative colours by
// clustering their pixels with k-means.
package palette

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/oho/palette-refinery/internal/kmeans"
)

// ErrNoSamples is returned when sampling leaves nothing to cluster.
var ErrNoSamples = errors.New("palette: no samples")

// Options configures extraction. Cluster.K is the requested palette size; it
// is lowered to the number of distinct sample colours for images with fewer.
type Options struct {
	ColorSpace ColorSpace
	Sampling   SampleOptions
	Cluster    kmeans.Config
}

// DefaultOptions returns a five-colour Lab palette configuration.
func DefaultOptions() Options {
	cluster := kmeans.DefaultConfig()
	cluster.K = 5
	return Options{
		ColorSpace: SpaceLab,
		Sampling:   DefaultSampleOptions(),
		Cluster:    cluster,
	}
}

// Swatch is one palette colour.
type Swatch struct {
	Hex        string       `json:"hex"`
	RGB        [3]uint8     `json:"rgb"`
	Components kmeans.Point `json:"components"`
	Count      int          `json:"count"`
	Weight     float64      `json:"weight"`
	Cluster    int          `json:"cluster"`
}

// Palette is the result of an extraction. Swatches are ordered by Count,
// largest first.
type Palette struct {
	Swatches    []Swatch   `json:"swatches"`
	ColorSpace  ColorSpace `json:"color_space"`
	Converged   bool       `json:"converged"`
	Iterations  int        `json:"iterations"`
	Restarts    int        `json:"restarts"`
	Inertia     float64    `json:"inertia"`
	SampleCount int        `json:"sample_count"`

	// Metric is the distance the palette was clustered with. Nearest uses
	// it; nil means Euclidean.
	Metric kmeans.Metric `json:"-"`
}

// Extract samples img and clusters the samples.
func Extract(ctx context.Context, img image.Image, opts Options) (*Palette, error) {
	cs, err := ParseColorSpace(string(opts.ColorSpace))
	if err != nil {
		return nil, err
	}
	opts.ColorSpace = cs
	return ExtractSamples(ctx, Samples(img, cs, opts.Sampling), opts)
}

// ExtractSamples clusters points already expressed in opts.ColorSpace.
func ExtractSamples(ctx context.Context, samples []kmeans.Point, opts Options) (*Palette, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	cs, err := ParseColorSpace(string(opts.ColorSpace))
	if err != nil {
		return nil, err
	}

	cfg := opts.Cluster
	if cfg.K > 0 {
		cfg.K = min(cfg.K, distinctUpTo(samples, cfg.K))
	}
	res, err := kmeans.Run(ctx, samples, cfg)
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(res.Centroids))
	for _, c := range res.Assignment {
		counts[c]++
	}

	p := &Palette{
		ColorSpace:  cs,
		Converged:   res.Converged,
		Iterations:  res.Iterations,
		Restarts:    res.Restarts,
		Inertia:     res.Inertia,
		SampleCount: len(samples),
		Metric:      cfg.Metric,
	}
	for i, centroid := range res.Centroids {
		c := cs.Color(centroid)
		r, g, b := c.RGB255()
		p.Swatches = append(p.Swatches, Swatch{
			Hex:        c.Hex(),
			RGB:        [3]uint8{r, g, b},
			Components: centroid,
			Count:      counts[i],
			Weight:     float64(counts[i]) / float64(len(samples)),
			Cluster:    i,
		})
	}
	sort.SliceStable(p.Swatches, func(i, j int) bool {
		return p.Swatches[i].Count > p.Swatches[j].Count
	})
	return p, nil
}

// distinctUpTo counts distinct samples, stopping once limit is reached.
// Signed zeros compare equal.
func distinctUpTo(samples []kmeans.Point, limit int) int {
	seen := make(map[string]struct{}, limit)
	var key []byte
	for _, s := range samples {
		key = key[:0]
		for _, v := range s {
			key = binary.LittleEndian.AppendUint64(key, math.Float64bits(v+0))
		}
		seen[string(key)] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

// Nearest returns the index of the swatch closest to c under the palette's
// metric, or -1 for an empty palette.
func (p *Palette) Nearest(c color.Color) int {
	if len(p.Swatches) == 0 {
		return -1
	}
	metric := p.Metric
	if metric == nil {
		metric = kmeans.EuclideanMetric{}
	}
	target := p.ColorSpace.PointOf(c)
	best, bestDist := -1, 0.0
	for i, s := range p.Swatches {
		d, err := kmeans.Distance(metric, target, s.Components)
		if err != nil {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Recolor maps every pixel of img to its nearest swatch.
func (p *Palette) Recolor(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	if len(p.Swatches) == 0 {
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			src := img.At(x, y)
			i := p.Nearest(src)
			if i < 0 {
				continue
			}
			s := p.Swatches[i]
			_, _, _, a := src.RGBA()
			out.SetNRGBA(x, y, color.NRGBA{R: s.RGB[0], G: s.RGB[1], B: s.RGB[2], A: uint8(a >> 8)})
		}
	}
	return out
}
