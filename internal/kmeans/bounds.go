package kmeans

// Range is the closed interval of values observed in one dimension.
type Range struct {
	Min float64
	Max float64
}

// Bounds returns the per-dimension minimum and maximum over data.
func Bounds(data []Point) ([]Range, error) {
	n, err := dimensions(data)
	if err != nil {
		return nil, err
	}
	ranges := make([]Range, n)
	for d, v := range data[0] {
		ranges[d] = Range{Min: v, Max: v}
	}
	for _, p := range data[1:] {
		for d, v := range p {
			if v < ranges[d].Min {
				ranges[d].Min = v
			}
			if v > ranges[d].Max {
				ranges[d].Max = v
			}
		}
	}
	return ranges, nil
}
