package array

import (
	"golang.org/x/sync/errgroup"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/schema"
)

// AttrBuffer is one caller-supplied output buffer for one attribute.
// A variable-length attribute has two underlying buffers (offsets and
// values); Fixed, Offsets and Values are capacities on input, and Read
// fills a prefix and reports how much it used.
type AttrBuffer struct {
	Attr string

	Fixed     []byte // fixed-length attrs: output capacity
	FixedUsed int

	Offsets     []int64 // variable attrs: output capacity, one entry per cell
	Values      []byte  // variable attrs: output capacity
	OffsetsUsed int
	ValuesUsed  int

	Overflow bool
}

// ArrayReadState is the multi-fragment merger: it captures, at open
// time, the ordered sequence of (fragment, tile, within-tile position)
// triples that answer the query subarray, and then serves repeated,
// resumable Read calls that copy bytes into caller buffers until every
// attribute's cursor reaches the end.
type ArrayReadState struct {
	s     *schema.ArraySchema
	frags []*fragment.ReadState // oldest first

	sources []cellSource
	coords  [][]schema.Datum // sparse only, parallel to sources

	cursor map[string]int // attr -> next source index to copy from
}

// NewArrayReadState computes the merge for subLo..subHi over frags
// (already sorted oldest-first) and returns a ready-to-read state.
// Capturing fragments here is what gives "an open ArrayReadState...
// snapshot semantics": later fragments are simply never
// passed to this constructor again until re-open.
func NewArrayReadState(s *schema.ArraySchema, frags []*fragment.ReadState, subLo, subHi []schema.Datum) (*ArrayReadState, error) {
	ars := &ArrayReadState{s: s, frags: frags, cursor: make(map[string]int)}
	if len(frags) == 0 {
		return ars, nil
	}
	if s.Dense {
		ars.sources = buildDenseSources(s, frags, subLo, subHi)
		if err := ars.prefetchDense(); err != nil {
			return nil, err
		}
	} else {
		srcs, coords, err := buildSparseSources(s, frags, subLo, subHi)
		if err != nil {
			return nil, err
		}
		ars.sources = srcs
		ars.coords = coords
	}
	return ars, nil
}

// prefetchDense fans a Fetch call out per (fragment, attribute, tile)
// triple the dense merge actually needs, concurrently across fragments,
// so the later sequential copy loop in Read hits a warm cache. Each
// fragment's ReadState cache is mutex-protected precisely to support
// this caller-side fan-out.
func (ars *ArrayReadState) prefetchDense() error {
	type key struct {
		fragIdx int
		tilePos int
	}
	seen := map[key]bool{}
	var jobs []key
	for _, src := range ars.sources {
		if src.emptyCell {
			continue
		}
		k := key{src.fragIdx, src.tilePos}
		if !seen[k] {
			seen[k] = true
			jobs = append(jobs, k)
		}
	}
	if len(jobs) == 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(8)
	for _, j := range jobs {
		j := j
		for _, a := range ars.s.Attributes {
			a := a
			g.Go(func() error {
				_, err := ars.frags[j.fragIdx].Fetch(a.Name, j.tilePos)
				return err
			})
		}
	}
	return g.Wait()
}

// NumCells returns the total number of cells the merge produced.
func (ars *ArrayReadState) NumCells() int { return len(ars.sources) }

// CellBatch materializes cells [lo, hi) of the merge result for every
// attribute in attrs, synchronized across attributes by cell position
// (unlike the independent per-attribute cursors Read uses), for
// Consolidate to feed straight into a new fragment's WriteState.
func (ars *ArrayReadState) CellBatch(lo, hi int, attrs []schema.Attribute) (fragment.CellBatch, error) {
	n := hi - lo
	batch := fragment.CellBatch{NumCells: n}
	if !ars.s.Dense {
		dimNum := len(ars.s.Dimensions)
		batch.Coords = make([]schema.Datum, 0, n*dimNum)
		for i := lo; i < hi; i++ {
			batch.Coords = append(batch.Coords, ars.coords[i]...)
		}
	}
	batch.Fixed = map[string][]byte{}
	batch.Var = map[string][][]byte{}
	for _, a := range attrs {
		if a.CellValNumVar {
			vals := make([][]byte, 0, n)
			for i := lo; i < hi; i++ {
				v, err := ars.cellVarValue(a, i)
				if err != nil {
					return fragment.CellBatch{}, err
				}
				vals = append(vals, v)
			}
			batch.Var[a.Name] = vals
		} else {
			cellSize := a.FixedCellSize()
			out := make([]byte, 0, n*cellSize)
			for i := lo; i < hi; i++ {
				b, err := ars.cellFixedValue(a, i)
				if err != nil {
					return fragment.CellBatch{}, err
				}
				out = append(out, b...)
			}
			batch.Fixed[a.Name] = out
		}
	}
	return batch, nil
}

func (ars *ArrayReadState) cellFixedValue(a schema.Attribute, pos int) ([]byte, error) {
	src := ars.sources[pos]
	if src.emptyCell {
		return emptyCellBytes(a), nil
	}
	cellSize := a.FixedCellSize()
	tile, err := ars.frags[src.fragIdx].Fetch(a.Name, src.tilePos)
	if err != nil {
		return nil, err
	}
	return tile[src.cellInTile*cellSize : (src.cellInTile+1)*cellSize], nil
}

func (ars *ArrayReadState) cellVarValue(a schema.Attribute, pos int) ([]byte, error) {
	src := ars.sources[pos]
	if src.emptyCell {
		return nil, nil
	}
	frag := ars.frags[src.fragIdx]
	offTile, err := frag.Fetch(a.Name, src.tilePos)
	if err != nil {
		return nil, err
	}
	valTile, err := frag.FetchVarValues(a.Name, src.tilePos)
	if err != nil {
		return nil, err
	}
	base := frag.VarTileBase(a.Name, src.tilePos)
	lo := int64(beUint64(offTile[src.cellInTile*8:])) - base
	var hi int64
	if (src.cellInTile+1)*8 < len(offTile) {
		hi = int64(beUint64(offTile[(src.cellInTile+1)*8:])) - base
	} else {
		hi = int64(len(valTile))
	}
	return valTile[lo:hi], nil
}

// Done reports whether every named attribute's cursor has reached the
// end of the committed ranges. The query as a whole is done only when
// every attribute's cursor has reached the end.
func (ars *ArrayReadState) Done(attrs []string) bool {
	for _, a := range attrs {
		if ars.cursor[a] < len(ars.sources) {
			return false
		}
	}
	return true
}

// Read copies cells from the committed merge result into buf, resuming
// from wherever the previous call for this attribute left off, and sets
// buf.Overflow if it stopped before the end because the buffer filled.
func (ars *ArrayReadState) Read(buf *AttrBuffer) error {
	attribute, err := ars.attribute(buf.Attr)
	if err != nil {
		return err
	}
	buf.Overflow = false
	pos := ars.cursor[buf.Attr]

	if attribute.CellValNumVar {
		return ars.readVar(buf, attribute, pos)
	}
	return ars.readFixed(buf, attribute, pos)
}

func (ars *ArrayReadState) readFixed(buf *AttrBuffer, attribute schema.Attribute, pos int) error {
	cellSize := attribute.FixedCellSize()
	isCoords := buf.Attr == schema.CoordsAttrName
	for pos < len(ars.sources) {
		if buf.FixedUsed+cellSize > len(buf.Fixed) {
			buf.Overflow = true
			break
		}
		src := ars.sources[pos]
		var cellBytes []byte
		if isCoords {
			cellBytes = ars.encodeCoord(pos)
		} else if src.emptyCell {
			cellBytes = emptyCellBytes(attribute)
		} else {
			tile, err := ars.frags[src.fragIdx].Fetch(buf.Attr, src.tilePos)
			if err != nil {
				return err
			}
			cellBytes = tile[src.cellInTile*cellSize : (src.cellInTile+1)*cellSize]
		}
		copy(buf.Fixed[buf.FixedUsed:], cellBytes)
		buf.FixedUsed += cellSize
		pos++
	}
	ars.cursor[buf.Attr] = pos
	return nil
}

func (ars *ArrayReadState) readVar(buf *AttrBuffer, attribute schema.Attribute, pos int) error {
	for pos < len(ars.sources) {
		if buf.OffsetsUsed >= len(buf.Offsets) {
			buf.Overflow = true
			break
		}
		src := ars.sources[pos]
		var val []byte
		if !src.emptyCell {
			frag := ars.frags[src.fragIdx]
			offTile, err := frag.Fetch(buf.Attr, src.tilePos)
			if err != nil {
				return err
			}
			valTile, err := frag.FetchVarValues(buf.Attr, src.tilePos)
			if err != nil {
				return err
			}
			base := frag.VarTileBase(buf.Attr, src.tilePos)
			lo := int64(beUint64(offTile[src.cellInTile*8:])) - base
			var hi int64
			if (src.cellInTile+1)*8 < len(offTile) {
				hi = int64(beUint64(offTile[(src.cellInTile+1)*8:])) - base
			} else {
				hi = int64(len(valTile))
			}
			val = valTile[lo:hi]
		}
		if buf.ValuesUsed+len(val) > len(buf.Values) {
			buf.Overflow = true
			break
		}
		copy(buf.Values[buf.ValuesUsed:], val)
		buf.Offsets[buf.OffsetsUsed] = int64(buf.ValuesUsed)
		buf.ValuesUsed += len(val)
		buf.OffsetsUsed++
		pos++
	}
	ars.cursor[buf.Attr] = pos
	return nil
}

// SkipAndRead advances buf.Attr's cursor past skip already-accounted-for
// cells without materializing them, then behaves exactly like Read: a
// caller that tracks cursor position itself (e.g. resuming a query from
// a saved offset) uses this to resynchronize before the normal copy loop
// continues.
func (ars *ArrayReadState) SkipAndRead(buf *AttrBuffer, skip int) error {
	pos := ars.cursor[buf.Attr] + skip
	if pos > len(ars.sources) {
		pos = len(ars.sources)
	}
	ars.cursor[buf.Attr] = pos
	return ars.Read(buf)
}

// ResetAttributes rewinds the read cursor of every named attribute back
// to the start of the current merge result, without recomputing the
// merge itself; attrs == nil rewinds every attribute with a cursor.
// Subsequent Read calls replay the same committed cells from the start.
func (ars *ArrayReadState) ResetAttributes(attrs []string) {
	if attrs == nil {
		for a := range ars.cursor {
			ars.cursor[a] = 0
		}
		return
	}
	for _, a := range attrs {
		ars.cursor[a] = 0
	}
}

// SyncAttribute forces attr's cursor to match to's current position,
// used when two attributes must resume in lockstep after one of them
// was driven ahead by SkipAndRead or an uneven sequence of Read calls.
func (ars *ArrayReadState) SyncAttribute(attr, to string) {
	ars.cursor[attr] = ars.cursor[to]
}

func beUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

func (ars *ArrayReadState) encodeCoord(pos int) []byte {
	coord := ars.coords[pos]
	var out []byte
	for i, d := range ars.s.Dimensions {
		out = schema.Encode(schema.Int64, schema.DatumInt64(schema.ToInt64(d.Type, coord[i])), out)
	}
	return out
}

func emptyCellBytes(attribute schema.Attribute) []byte {
	sentinel := schema.EmptySentinel(attribute.Type)
	var out []byte
	for i := 0; i < attribute.CellValNum; i++ {
		out = schema.Encode(attribute.Type, sentinel, out)
	}
	return out
}

func (ars *ArrayReadState) attribute(name string) (schema.Attribute, error) {
	if !ars.s.Dense && name == schema.CoordsAttrName {
		return schema.Attribute{Name: schema.CoordsAttrName, Type: schema.Int64, CellValNum: len(ars.s.Dimensions)}, nil
	}
	return ars.s.AttributeByName(name)
}
