package palette

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/oho/palette-refinery/internal/kmeans"
)

// ColorSpace is the coordinate system samples are clustered in.
type ColorSpace string

const (
	// SpaceRGB uses sRGB components in [0, 1].
	SpaceRGB ColorSpace = "rgb"
	// SpaceLab uses CIE L*a*b* (D65). Euclidean distance there is ΔE76.
	SpaceLab ColorSpace = "lab"
	// SpaceLuv uses CIE L*u*v* (D65).
	SpaceLuv ColorSpace = "luv"
)

// ParseColorSpace maps a name to a ColorSpace. The empty name selects Lab.
func ParseColorSpace(s string) (ColorSpace, error) {
	switch cs := ColorSpace(strings.ToLower(s)); cs {
	case "":
		return SpaceLab, nil
	case SpaceRGB, SpaceLab, SpaceLuv:
		return cs, nil
	default:
		return "", fmt.Errorf("palette: unknown color space %q", s)
	}
}

// Point converts c to a 3-component point in the colour space.
func (cs ColorSpace) Point(c colorful.Color) kmeans.Point {
	switch cs {
	case SpaceRGB:
		return kmeans.Point{c.R, c.G, c.B}
	case SpaceLuv:
		l, u, v := c.Luv()
		return kmeans.Point{l, u, v}
	default:
		l, a, b := c.Lab()
		return kmeans.Point{l, a, b}
	}
}

// Color converts a point back to sRGB, clamped into gamut.
func (cs ColorSpace) Color(p kmeans.Point) colorful.Color {
	var c colorful.Color
	switch cs {
	case SpaceRGB:
		c = colorful.Color{R: p[0], G: p[1], B: p[2]}
	case SpaceLuv:
		c = colorful.Luv(p[0], p[1], p[2])
	default:
		c = colorful.Lab(p[0], p[1], p[2])
	}
	return c.Clamped()
}

// PointOf converts any color.Color. Fully transparent colours map to black.
func (cs ColorSpace) PointOf(c color.Color) kmeans.Point {
	cf, _ := colorful.MakeColor(c)
	return cs.Point(cf)
}

// LabOf converts a hex string such as "#3a7bd5" to CIE Lab.
func LabOf(hex string) (kmeans.Point, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("palette: %w", err)
	}
	return SpaceLab.Point(c), nil
}
