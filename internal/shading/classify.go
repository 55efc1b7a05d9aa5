package shading

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the RGB distance under which a pixel counts as an
// exact marker color.
const DefaultTolerance = 75.0 / 255.0

// FactorMap holds one shading factor per mask pixel.
// Rows are y, columns are x.
type FactorMap struct {
	m *mat.Dense
}

// At returns the factor for pixel (x, y).
func (f *FactorMap) At(x, y int) float64 { return f.m.At(y, x) }

// Dims returns the map's width and height.
func (f *FactorMap) Dims() (w, h int) {
	r, c := f.m.Dims()
	return c, r
}

// Values returns the factors in row-major order. The slice aliases the map.
func (f *FactorMap) Values() []float64 { return f.m.RawMatrix().Data }

// Equal reports whether both maps hold exactly the same factors.
func (f *FactorMap) Equal(g *FactorMap) bool {
	fr, fc := f.m.Dims()
	gr, gc := g.m.Dims()
	return fr == gr && fc == gc && mat.Equal(f.m, g.m)
}

// Stats counts how the classifier resolved each pixel. Diagnostic only.
type Stats struct {
	Total int

	// Direct counts pixels within tolerance of each marker color.
	Direct [numCategories]int

	// Snapped counts pixels inside twice the tolerance of their nearest
	// marker, keyed by that marker.
	Snapped [numCategories]int

	// Interpolated counts blended pixels per category pair.
	Interpolated [3]int

	// Degenerate counts pixels whose two nearest distances summed to zero.
	Degenerate int
}

// Coverage returns the percentage of pixels matched directly to c.
func (s Stats) Coverage(c Category) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Direct[c]) / float64(s.Total) * 100
}

// Classify maps every mask pixel to a shading factor.
//
// A pixel strictly closer than tolerance to a marker color takes that
// marker's weight. Any other pixel is resolved against its two nearest
// markers: inside 2*tolerance it snaps to the nearest, beyond that the two
// weights are blended by relative distance. Alpha is not consulted.
func Classify(m Mask, tolerance float64) (*FactorMap, Stats, error) {
	if err := m.validate(); err != nil {
		return nil, Stats{}, err
	}

	n := m.Len()
	stats := Stats{Total: n}
	factors := make([]float64, n)
	assigned := make([]bool, n)

	for _, c := range Categories {
		ref := c.Reference()
		for i, px := range m.RGB {
			if px.DistanceRgb(ref) < tolerance {
				factors[i] = c.Weight()
				assigned[i] = true
				stats.Direct[c]++
			}
		}
	}

	var dist [numCategories]float64
	for i, px := range m.RGB {
		if assigned[i] {
			continue
		}
		for _, c := range Categories {
			dist[c] = px.DistanceRgb(c.Reference())
		}
		near, second := nearestTwo(dist)
		d1, d2 := dist[near], dist[second]

		if d1 < tolerance*2 {
			factors[i] = near.Weight()
			stats.Snapped[near]++
			continue
		}

		total := d1 + d2
		if total == 0 {
			stats.Degenerate++
			continue
		}
		p, ok := PairOf(near, second)
		if !ok {
			continue
		}
		factors[i] = p.Blend(d1/total, near)
		stats.Interpolated[p]++
	}

	return &FactorMap{m: mat.NewDense(m.Height, m.Width, factors)}, stats, nil
}

// nearestTwo ranks categories by distance. Ties keep enum order.
func nearestTwo(dist [numCategories]float64) (Category, Category) {
	order := Categories
	slices.SortStableFunc(order[:], func(a, b Category) int {
		return cmp.Compare(dist[a], dist[b])
	})
	return order[0], order[1]
}
