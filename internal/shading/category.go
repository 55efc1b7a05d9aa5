package shading

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Category is one of the three marker colors painted into a slope mask.
type Category int

const (
	Unshaded      Category = iota // cyan
	LightlyShaded                 // magenta
	HeavilyShaded                 // yellow

	numCategories = 3
)

// Categories lists every category in classification order.
var Categories = [numCategories]Category{Unshaded, LightlyShaded, HeavilyShaded}

var references = [numCategories]colorful.Color{
	Unshaded:      {R: 0, G: 1, B: 1},
	LightlyShaded: {R: 1, G: 0, B: 1},
	HeavilyShaded: {R: 1, G: 1, B: 0},
}

// Magenta maps to the darkest shade, not yellow.
var weights = [numCategories]float64{
	Unshaded:      0.0,
	LightlyShaded: 1.5,
	HeavilyShaded: 1.0,
}

// Reference returns the marker color for c in normalized RGB.
func (c Category) Reference() colorful.Color { return references[c] }

// Weight returns the shading factor assigned to pixels of category c.
func (c Category) Weight() float64 { return weights[c] }

func (c Category) String() string {
	switch c {
	case Unshaded:
		return "unshaded"
	case LightlyShaded:
		return "lightly_shaded"
	case HeavilyShaded:
		return "heavily_shaded"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Pair is an unordered pair of distinct categories. There are exactly three.
type Pair int

const (
	PairUnshadedLightly Pair = iota
	PairLightlyHeavily
	PairUnshadedHeavily
)

// PairOf returns the unordered pair {a, b}. ok is false when a == b or
// either category is out of range.
func PairOf(a, b Category) (p Pair, ok bool) {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == Unshaded && b == LightlyShaded:
		return PairUnshadedLightly, true
	case a == LightlyShaded && b == HeavilyShaded:
		return PairLightlyHeavily, true
	case a == Unshaded && b == HeavilyShaded:
		return PairUnshadedHeavily, true
	}
	return 0, false
}

// Members returns both categories of the pair in enum order.
func (p Pair) Members() (Category, Category) {
	switch p {
	case PairUnshadedLightly:
		return Unshaded, LightlyShaded
	case PairLightlyHeavily:
		return LightlyShaded, HeavilyShaded
	case PairUnshadedHeavily:
		return Unshaded, HeavilyShaded
	}
	panic(fmt.Sprintf("shading: invalid pair %d", int(p)))
}

// Blend interpolates between the pair's weights. t is the normalized
// distance to nearest, so t=0 yields nearest's weight and t=0.5 yields the
// mean of both.
func (p Pair) Blend(t float64, nearest Category) float64 {
	a, b := p.Members()
	far := a
	if nearest == a {
		far = b
	}
	return t*far.Weight() + (1-t)*nearest.Weight()
}

func (p Pair) String() string {
	a, b := p.Members()
	return a.String() + "/" + b.String()
}
