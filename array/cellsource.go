// Package array implements the array facade and the multi-fragment read
// merger: Create/Open/Close, fragment discovery,
// the dense tile-order walk and the sparse heap-equivalent merge, and
// consolidation.
package array

import (
	"sort"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/schema"
)

// cellSource names, for one cell of the query result, which fragment and
// which physical tile position supplies it. fragIdx is an index into
// ArrayReadState.fragments (oldest first); emptyCell marks a dense cell
// no fragment covers.
type cellSource struct {
	fragIdx    int
	tilePos    int
	cellInTile int // position of this cell within the tile, in the schema's cell order
	emptyCell  bool
}

// buildDenseSources walks the tile coordinates of subLo..subHi in the
// schema's tile order. For each tile
// coordinate it asks fragments newest-first for a covering tile; the
// first (= newest) fragment that has a tile there supplies every cell
// of the tile-subarray intersection, any remainder is empty.
func buildDenseSources(s *schema.ArraySchema, frags []*fragment.ReadState, subLo, subHi []schema.Datum) []cellSource {
	n := len(s.Dimensions)
	extents := make([]int64, n)
	for i, d := range s.Dimensions {
		extents[i] = *d.TileExtent
	}

	// One reference fragment's OverlapDense is sufficient: tile geometry
	// is schema-derived, not fragment-derived.
	tileCoords := frags[0].OverlapDense(subLo, subHi)

	var out []cellSource
	for _, tc := range tileCoords {
		loCell := make([]int64, n)
		hiCell := make([]int64, n)
		for i, d := range s.Dimensions {
			domLo := schema.ToInt64(d.Type, s.ExpandedDomain[i].Lo)
			tileLo := domLo + tc[i]*extents[i]
			tileHi := tileLo + extents[i] - 1
			subLoI := schema.ToInt64(d.Type, subLo[i])
			subHiI := schema.ToInt64(d.Type, subHi[i])
			l := tileLo
			if subLoI > l {
				l = subLoI
			}
			h := tileHi
			if subHiI < h {
				h = subHiI
			}
			loCell[i] = l - tileLo
			hiCell[i] = h - tileLo
		}

		fragIdx, tilePos := resolveDenseTile(s, frags, tc)

		forEachCellInRange(loCell, hiCell, extents, func(within []int64) {
			if fragIdx < 0 {
				out = append(out, cellSource{emptyCell: true})
				return
			}
			idx := withinTileIndex(s, within, extents)
			out = append(out, cellSource{fragIdx: fragIdx, tilePos: tilePos, cellInTile: idx})
		})
	}
	return out
}

// resolveDenseTile returns the newest fragment (highest index, since
// fragments are oldest-first) that wrote a tile at tc, and that tile's
// position, or (-1, -1) if no fragment covers it.
func resolveDenseTile(s *schema.ArraySchema, frags []*fragment.ReadState, tc []int64) (int, int) {
	for i := len(frags) - 1; i >= 0; i-- {
		pos := int(fragment.TileID(s, tc))
		if pos < frags[i].NumTiles(s.Attributes[0].Name) {
			return i, pos
		}
	}
	return -1, -1
}

func forEachCellInRange(lo, hi, extents []int64, f func(within []int64)) {
	n := len(lo)
	cur := append([]int64{}, lo...)
	for {
		f(append([]int64{}, cur...))
		idx := n - 1
		for {
			cur[idx]++
			if cur[idx] <= hi[idx] {
				break
			}
			cur[idx] = lo[idx]
			idx--
			if idx < 0 {
				return
			}
		}
	}
}

// withinTileIndex computes the rank of a within-tile coordinate in the
// schema's cell order, column-major for ColMajor and row-major otherwise
// (cell-order arithmetic restricted to one tile's extents).
func withinTileIndex(s *schema.ArraySchema, within, extents []int64) int {
	var idx int64
	if s.CellOrder == schema.ColMajor {
		for i := len(within) - 1; i >= 0; i-- {
			idx = idx*extents[i] + within[i]
		}
	} else {
		for i := 0; i < len(within); i++ {
			idx = idx*extents[i] + within[i]
		}
	}
	return int(idx)
}

// sparseRange is one fragment's proposed contiguous run of cells in cell
// order. The sparse merge below does not use it: buildSparseSources works
// on individual cells.
type sparseRange struct {
	fragIdx  int
	tilePos  int
	cellKey  uint64 // CellIndex of the coordinate, for ordering/dedup
	coordLo  int
}

// buildSparseSources materializes the winning cell for every distinct
// coordinate across all fragments overlapping the subarray, in cell
// order, newest fragment winning ties.
// This computes the same result the streaming heap-of-ranges algorithm
// guarantees — exactly one (fragment, tile, position) triple survives
// per coordinate, and it is the newest — via full in-memory sort and
// dedup instead of incremental range-splitting, which is equivalent at
// the scale this engine targets.
func buildSparseSources(s *schema.ArraySchema, frags []*fragment.ReadState, subLo, subHi []schema.Datum) ([]cellSource, [][]schema.Datum, error) {
	type candidate struct {
		key     uint64
		fragIdx int
		tilePos int
		within  int
		coord   []schema.Datum
	}
	var all []candidate
	dimNum := len(s.Dimensions)

	for fi, rs := range frags {
		tiles := rs.OverlapSparse(subLo, subHi)
		for _, tp := range tiles {
			tileData, err := rs.Fetch(schema.CoordsAttrName, tp)
			if err != nil {
				return nil, nil, err
			}
			cellCount := int(rs.TileCellCount(schema.CoordsAttrName, tp))
			for c := 0; c < cellCount; c++ {
				coord := make([]schema.Datum, dimNum)
				base := c * dimNum * 8
				for d, dim := range s.Dimensions {
					raw := schema.Decode(schema.Int64, tileData[base+d*8:])
					coord[d] = schema.DatumFromInt64(dim.Type, raw.I64)
				}
				if !withinSubarray(s, coord, subLo, subHi) {
					continue
				}
				key := cellIndexOf(s, coord)
				all = append(all, candidate{key: key, fragIdx: fi, tilePos: tp, within: c, coord: coord})
			}
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].key != all[j].key {
			return all[i].key < all[j].key
		}
		return all[i].fragIdx > all[j].fragIdx // newer (higher index) first on ties
	})

	var sources []cellSource
	var coords [][]schema.Datum
	for i := 0; i < len(all); {
		j := i
		for j+1 < len(all) && all[j+1].key == all[i].key {
			j++
		}
		winner := all[i] // highest fragIdx already sorted first within the tie group
		sources = append(sources, cellSource{fragIdx: winner.fragIdx, tilePos: winner.tilePos, cellInTile: winner.within})
		coords = append(coords, winner.coord)
		i = j + 1
	}
	return sources, coords, nil
}

func withinSubarray(s *schema.ArraySchema, coord, lo, hi []schema.Datum) bool {
	for i, d := range s.Dimensions {
		if schema.Compare(d.Type, coord[i], lo[i]) < 0 || schema.Compare(d.Type, coord[i], hi[i]) > 0 {
			return false
		}
	}
	return true
}

func cellIndexOf(s *schema.ArraySchema, coord []schema.Datum) uint64 {
	return fragment.CellIndex(s, coord)
}
