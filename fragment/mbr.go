package fragment

import "github.com/tdbstore/tdbstore/schema"

// MBR is the minimum bounding rectangle of a sparse tile in coordinate
// space: one [lo, hi] pair per dimension.
type MBR struct {
	Lo, Hi []schema.Datum
}

// NewMBR starts an MBR collapsed onto a single cell.
func NewMBR(coords []schema.Datum) MBR {
	lo := make([]schema.Datum, len(coords))
	hi := make([]schema.Datum, len(coords))
	copy(lo, coords)
	copy(hi, coords)
	return MBR{Lo: lo, Hi: hi}
}

// Expand grows m in place to also cover coords.
func (m *MBR) Expand(dims []schema.Dimension, coords []schema.Datum) {
	for i, d := range dims {
		if schema.Compare(d.Type, coords[i], m.Lo[i]) < 0 {
			m.Lo[i] = coords[i]
		}
		if schema.Compare(d.Type, coords[i], m.Hi[i]) > 0 {
			m.Hi[i] = coords[i]
		}
	}
}

// Intersects reports whether m overlaps the subarray (a [lo,hi] pair per
// dimension), used by ReadState.OverlapSparse for sparse fragments.
func (m MBR) Intersects(dims []schema.Dimension, subLo, subHi []schema.Datum) bool {
	for i, d := range dims {
		if schema.Compare(d.Type, m.Hi[i], subLo[i]) < 0 {
			return false
		}
		if schema.Compare(d.Type, m.Lo[i], subHi[i]) > 0 {
			return false
		}
	}
	return true
}

// EncodeCoordPair serializes an MBR (or a bounding-coordinate pair, which has the
// identical 2*dimNum layout) as raw little-endian coordinate bytes:
// 2 × dim_num × sizeof(coord).
func EncodeCoordPair(dims []schema.Dimension, lo, hi []schema.Datum) []byte {
	var out []byte
	for i, d := range dims {
		out = schema.Encode(d.Type, lo[i], out)
		out = schema.Encode(d.Type, hi[i], out)
	}
	return out
}

// DecodeCoordPair reverses EncodeCoordPair.
func DecodeCoordPair(dims []schema.Dimension, b []byte) (lo, hi []schema.Datum) {
	lo = make([]schema.Datum, len(dims))
	hi = make([]schema.Datum, len(dims))
	pos := 0
	for i, d := range dims {
		lo[i] = schema.Decode(d.Type, b[pos:])
		pos += d.Type.Size()
		hi[i] = schema.Decode(d.Type, b[pos:])
		pos += d.Type.Size()
	}
	return lo, hi
}

// CoordPairSize is the byte size of one EncodeCoordPair result.
func CoordPairSize(dims []schema.Dimension) int {
	n := 0
	for _, d := range dims {
		n += 2 * d.Type.Size()
	}
	return n
}
