package fragment

import (
	"container/list"
	"sync"

	"github.com/tdbstore/tdbstore/bookkeeping"
	"github.com/tdbstore/tdbstore/codec"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
	"github.com/tdbstore/tdbstore/status"
)

// defaultFixedCacheBudget and defaultVarCacheBudget are the default LRU
// byte budgets for decompressed tile caches, independently sized for
// fixed- and variable-length attributes.
const (
	defaultFixedCacheBudget = 64 * 1024 * 1024
	defaultVarCacheBudget   = 64 * 1024 * 1024
)

// ReadState owns one fragment's schema pointer, its loaded bookkeeping,
// and a per-attribute LRU cache of decompressed tiles.
type ReadState struct {
	s          *schema.ArraySchema
	filesystem fs.Filesystem
	dir        string
	bk         *bookkeeping.Bookkeeping

	fixedCache *tileCache
	varCache   *tileCache
}

// Open loads a fragment's bookkeeping and prepares a ReadState. s must be
// the array's schema (the fragment inherits dense/sparse and attribute
// list from its parent).
func Open(filesystem fs.Filesystem, dir string, s *schema.ArraySchema) (*ReadState, error) {
	data, err := filesystem.ReadAll(fs.Join(dir, bookkeeping.FileName))
	if err != nil {
		return nil, status.Wrap(status.NotFound, err, "read bookkeeping for %s", dir)
	}
	var order []string
	varAttrs := map[string]bool{}
	attrs := s.Attributes
	if !s.Dense {
		attrs = s.SparseAttributes()
	}
	for _, a := range attrs {
		order = append(order, a.Name)
		if a.CellValNumVar {
			varAttrs[a.Name] = true
		}
	}
	bk, err := bookkeeping.Load(data, order, varAttrs)
	if err != nil {
		return nil, err
	}
	return &ReadState{
		s:          s,
		filesystem: filesystem,
		dir:        dir,
		bk:         bk,
		fixedCache: newTileCache(defaultFixedCacheBudget),
		varCache:   newTileCache(defaultVarCacheBudget),
	}, nil
}

// NumTiles returns the number of physical tiles stored for attr.
func (rs *ReadState) NumTiles(attr string) int { return rs.bk.NumTiles(attr) }

// LastTileCellNum is the cell count of the fragment's final (possibly
// partial) tile.
func (rs *ReadState) LastTileCellNum() int64 { return rs.bk.LastTileCellNum }

// TileCellCount returns the number of cells tile tilePos holds: the full
// tile extent for every tile but the last, and LastTileCellNum for the
// last.
func (rs *ReadState) TileCellCount(attr string, tilePos int) int64 {
	n := rs.bk.NumTiles(attr)
	if tilePos == n-1 {
		return rs.bk.LastTileCellNum
	}
	if rs.s.Dense {
		return rs.s.TileCellCount()
	}
	return rs.s.Capacity
}

// VarTileBase returns the absolute byte offset in attr's _var.tdb file
// where tilePos's values begin; subtracting it from the rewritten
// absolute offsets decoded from the tile's own offset array gives
// positions local to the bytes FetchVarValues returns for this tile.
func (rs *ReadState) VarTileBase(attr string, tilePos int) int64 {
	offs := rs.bk.TileVarOffsets(attr)
	if tilePos <= 0 {
		return 0
	}
	return offs[tilePos-1]
}

// BoundingCoords returns the (first, last) coordinate of sparse tile
// tilePos, decoded.
func (rs *ReadState) BoundingCoords(tilePos int) ([]schema.Datum, []schema.Datum) {
	return DecodeCoordPair(rs.s.Dimensions, rs.bk.BoundingCoords[tilePos])
}

// MBR returns the minimum bounding rectangle of sparse tile tilePos.
func (rs *ReadState) MBR(tilePos int) MBR {
	lo, hi := DecodeCoordPair(rs.s.Dimensions, rs.bk.MBRs[tilePos])
	return MBR{Lo: lo, Hi: hi}
}

// OverlapDense returns, in tile order, the tile positions (as their tile
// coordinates) whose extents intersect the subarray, computed by integer
// arithmetic on tile extents.
func (rs *ReadState) OverlapDense(subLo, subHi []schema.Datum) [][]int64 {
	n := len(rs.s.Dimensions)
	loT := make([]int64, n)
	hiT := make([]int64, n)
	for i, d := range rs.s.Dimensions {
		domLo := schema.ToInt64(d.Type, rs.s.ExpandedDomain[i].Lo)
		loT[i] = (schema.ToInt64(d.Type, subLo[i]) - domLo) / *d.TileExtent
		hiT[i] = (schema.ToInt64(d.Type, subHi[i]) - domLo) / *d.TileExtent
	}
	var out [][]int64
	cur := append([]int64{}, loT...)
	for {
		out = append(out, append([]int64{}, cur...))
		// odometer increment, honoring tile order for iteration direction
		idx := n - 1
		if rs.s.TileOrder == schema.TileColMajor {
			idx = 0
		}
		for {
			cur[idx]++
			if cur[idx] <= hiT[idx] {
				break
			}
			cur[idx] = loT[idx]
			if rs.s.TileOrder == schema.TileColMajor {
				idx++
			} else {
				idx--
			}
			if idx < 0 || idx >= n {
				return out
			}
		}
	}
}

// OverlapSparse returns the tile positions whose MBR intersects the
// subarray, ascending, computed by intersecting the subarray with each
// MBR.
func (rs *ReadState) OverlapSparse(subLo, subHi []schema.Datum) []int {
	var out []int
	for i := range rs.bk.MBRs {
		m := rs.MBR(i)
		if m.Intersects(rs.s.Dimensions, subLo, subHi) {
			out = append(out, i)
		}
	}
	return out
}

// Fetch ensures tilePos of attr is decompressed into the cache and
// returns it: it reads the compressed slice from tile_offsets[attr]
// [tile_pos-1] (0 for the first tile) to tile_offsets[attr][tile_pos]
// and decompresses it into a buffer sized from
// the tile's cell count times cell size, or raw length for var tiles.
func (rs *ReadState) Fetch(attr string, tilePos int) ([]byte, error) {
	cache := rs.fixedCache
	attribute, err := rs.attribute(attr)
	if err != nil {
		return nil, err
	}
	if attribute.CellValNumVar {
		cache = rs.varCache
	}
	key := attr + "#" + itoa(tilePos)
	if v, ok := cache.get(key); ok {
		return v, nil
	}

	offs := rs.bk.TileOffsets(attr)
	if tilePos < 0 || tilePos >= len(offs) {
		return nil, status.New(status.InvalidArg, "tile position %d out of range for %s", tilePos, attr)
	}
	var start int64
	if tilePos > 0 {
		start = offs[tilePos-1]
	}
	end := offs[tilePos]
	compressed, err := rs.filesystem.ReadAt(fs.Join(rs.dir, AttrFileName(attr)), start, end-start)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "read tile %d of %s", tilePos, attr)
	}

	var outLen int
	if attribute.CellValNumVar {
		outLen = 8 * int(rs.TileCellCount(attr, tilePos))
	} else {
		outLen = int(rs.TileCellCount(attr, tilePos)) * attribute.FixedCellSize()
	}
	c, err := codec.Get(attribute.Compressor.Name)
	if err != nil {
		return nil, err
	}
	decompressed, err := c.Decompress(compressed, outLen)
	if err != nil {
		return nil, err
	}
	cache.put(key, decompressed)

	if attribute.CellValNumVar {
		if err := rs.fetchVarValues(attr, tilePos); err != nil {
			return nil, err
		}
	}
	return decompressed, nil
}

// FetchVarValues returns the concatenated raw values of a variable-length
// tile, reading the _var.tdb file by the tile's recorded raw size.
func (rs *ReadState) FetchVarValues(attr string, tilePos int) ([]byte, error) {
	key := attr + "#var#" + itoa(tilePos)
	if v, ok := rs.varCache.get(key); ok {
		return v, nil
	}
	return rs.fetchVarValuesUncached(attr, tilePos, key)
}

func (rs *ReadState) fetchVarValues(attr string, tilePos int) error {
	key := attr + "#var#" + itoa(tilePos)
	_, err := rs.fetchVarValuesUncached(attr, tilePos, key)
	return err
}

func (rs *ReadState) fetchVarValuesUncached(attr string, tilePos int, key string) ([]byte, error) {
	offs := rs.bk.TileVarOffsets(attr)
	sizes := rs.bk.TileVarSizes(attr)
	if tilePos < 0 || tilePos >= len(offs) {
		return nil, status.New(status.InvalidArg, "var tile position %d out of range for %s", tilePos, attr)
	}
	var start int64
	if tilePos > 0 {
		start = offs[tilePos-1]
	}
	n := int64(sizes[tilePos])
	data, err := rs.filesystem.ReadAt(fs.Join(rs.dir, AttrVarFileName(attr)), start, n)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "read var values for tile %d of %s", tilePos, attr)
	}
	rs.varCache.put(key, data)
	return data, nil
}

func (rs *ReadState) attribute(name string) (schema.Attribute, error) {
	if !rs.s.Dense && name == schema.CoordsAttrName {
		return schema.Attribute{Name: schema.CoordsAttrName, Type: schema.Int64, CellValNum: len(rs.s.Dimensions)}, nil
	}
	return rs.s.AttributeByName(name)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// tileCache is a byte-budgeted LRU cache of decompressed tiles, safe for
// concurrent use: prefetchDense fans Fetch out across goroutines for the
// same fragment, so get/put must serialize against each other.
type tileCache struct {
	mu     sync.Mutex
	budget int64
	used   int64
	ll     *list.List
	index  map[string]*list.Element
}

type cacheEntry struct {
	key  string
	data []byte
}

func newTileCache(budget int64) *tileCache {
	return &tileCache{budget: budget, ll: list.New(), index: make(map[string]*list.Element)}
}

func (c *tileCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).data, true
	}
	return nil, false
}

func (c *tileCache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.used -= int64(len(el.Value.(*cacheEntry).data))
		el.Value.(*cacheEntry).data = data
		c.used += int64(len(data))
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&cacheEntry{key: key, data: data})
		c.index[key] = el
		c.used += int64(len(data))
	}
	for c.used > c.budget && c.ll.Len() > 1 {
		back := c.ll.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*cacheEntry)
		c.used -= int64(len(entry.data))
		c.ll.Remove(back)
		delete(c.index, entry.key)
	}
}
