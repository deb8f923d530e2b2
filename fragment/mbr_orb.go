package fragment

import (
	"github.com/paulmach/orb"
	"github.com/tdbstore/tdbstore/schema"
)

// Bound2D converts m into an orb.Bound for the common two-dimensional
// case (e.g. geospatial lon/lat arrays), reusing orb's min/max rectangle
// type instead of hand-rolling one. Panics if m does not have exactly
// two dimensions; callers should check len(schema.Dimensions) first.
func (m MBR) Bound2D(dims []schema.Dimension) orb.Bound {
	if len(dims) != 2 {
		panic("Bound2D requires a two-dimensional MBR")
	}
	return orb.Bound{
		Min: orb.Point{m.Lo[0].AsFloat64(dims[0].Type), m.Lo[1].AsFloat64(dims[1].Type)},
		Max: orb.Point{m.Hi[0].AsFloat64(dims[0].Type), m.Hi[1].AsFloat64(dims[1].Type)},
	}
}

// UnionBound2D folds a slice of 2D MBRs into their enclosing orb.Bound,
// used by the CLI "show" command to report an array's overall spatial
// extent without walking every fragment's raw MBR bytes twice.
func UnionBound2D(dims []schema.Dimension, mbrs []MBR) orb.Bound {
	var b orb.Bound
	first := true
	for _, m := range mbrs {
		mb := m.Bound2D(dims)
		if first {
			b = mb
			first = false
			continue
		}
		b = b.Union(mb)
	}
	return b
}
