package fragment

import (
	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/tdbstore/tdbstore/schema"
)

// tileIDSet is a roaring64-backed set of dense tile ids, used to check
// that the fragments being merged into a single consolidated fragment do
// not both claim the same tile before the write actually happens.
type tileIDSet struct {
	bm *roaring64.Bitmap
}

func newTileIDSet() *tileIDSet { return &tileIDSet{bm: roaring64.New()} }

// addDense records every tile id a dense fragment's ReadState reports
// tiles for (position i in storage order is assumed to be tile id i,
// i.e. the fragment spans a contiguous tile-order prefix from its first
// written tile; the ordered-write mode guarantees this).
func (t *tileIDSet) addDense(s *schema.ArraySchema, rs *ReadState, startTileID uint64) {
	n := rs.NumTiles(s.Attributes[0].Name)
	for i := 0; i < n; i++ {
		t.bm.Add(startTileID + uint64(i))
	}
}

// intersects reports whether t shares any tile id with other.
func (t *tileIDSet) intersects(other *tileIDSet) bool {
	return t.bm.Intersects(other.bm)
}

// CheckDenseDisjoint verifies that no two of frags (each starting at
// dense tile id zero, i.e. full-domain fragments) claim an overlapping
// tile id, which would mean consolidation's newest-wins resolution must
// run rather than a plain concatenation. It returns true when disjoint;
// false is not an error in itself, only a signal to the caller that
// overlap resolution (not a fast-path append) is required.
func CheckDenseDisjoint(s *schema.ArraySchema, frags []*ReadState) bool {
	seen := newTileIDSet()
	for _, rs := range frags {
		cur := newTileIDSet()
		cur.addDense(s, rs, 0)
		if seen.intersects(cur) {
			return false
		}
		seen.bm.Or(cur.bm)
	}
	return true
}
