package fragment

import (
	"encoding/binary"
	"sort"

	"github.com/tdbstore/tdbstore/bookkeeping"
	"github.com/tdbstore/tdbstore/codec"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
	"github.com/tdbstore/tdbstore/status"
)

// fixedScratchBudget and varScratchBudget bound the scratch buffers the
// unsorted-sparse write path streams sorted sub-batches through.
const (
	fixedScratchBudget = 16 * 1024 * 1024
	varScratchBudget   = 256 * 1024 * 1024
)

// CellBatch is one caller-supplied slab of cells, already or not yet in
// the schema's cell order. Coords is only meaningful for sparse arrays.
type CellBatch struct {
	NumCells int
	Coords   []schema.Datum     // len == NumCells*dimNum, row-major by cell
	Fixed    map[string][]byte  // attr -> NumCells*cellSize bytes
	Var      map[string][][]byte // attr -> NumCells values
}

func (b *CellBatch) slice(lo, hi int) CellBatch {
	out := CellBatch{NumCells: hi - lo}
	if b.Coords != nil {
		dimNum := len(b.Coords) / b.NumCells
		out.Coords = b.Coords[lo*dimNum : hi*dimNum]
	}
	if b.Fixed != nil {
		out.Fixed = make(map[string][]byte, len(b.Fixed))
		for attr, buf := range b.Fixed {
			cellSize := len(buf) / b.NumCells
			out.Fixed[attr] = buf[lo*cellSize : hi*cellSize]
		}
	}
	if b.Var != nil {
		out.Var = make(map[string][][]byte, len(b.Var))
		for attr, vals := range b.Var {
			out.Var[attr] = vals[lo:hi]
		}
	}
	return out
}

// attrState is the per-attribute accumulator WriteState keeps open across
// calls: a tile-sized fixed buffer, and for variable attributes a
// grow-on-demand value buffer plus the running absolute file offset.
type attrState struct {
	name       string
	cellSize   int // 0 for variable-length
	compressor codec.Codec
	level      int

	fixedBuf  []byte // accumulates up to one tile
	cellsInTileBuf int

	varBuf     []byte  // accumulates this tile's concatenated values
	varOffsets []int64 // cell-local offsets within varBuf, rewritten to absolute on flush
	varBase    int64   // running absolute offset already written to the var file

	appender    fs.Appender
	varAppender fs.Appender
}

// WriteState is the live, mutable state of one open fragment write.
// A WriteState has a single owner; the engine does not serialize
// concurrent calls itself.
type WriteState struct {
	s          *schema.ArraySchema
	filesystem fs.Filesystem
	dir        string
	tileCells  int64 // dense: ∏ extents; sparse: capacity

	attrOrder []string
	attrs     map[string]*attrState

	bk *bookkeeping.Bookkeeping

	// sparse-only running state
	curMBR        *MBR
	curFirstCoord []schema.Datum
	curLastCoord  []schema.Datum
	cellsInSparseTile int
	nonEmptyLo, nonEmptyHi []schema.Datum

	totalCells int64
	closed     bool
}

// Create opens a brand-new fragment directory under arrayDir and returns
// a WriteState ready to accept cells. The directory and its attribute
// files exist once Create returns, but the fragment stays invisible to
// readers until Finalize creates the sentinel.
func Create(filesystem fs.Filesystem, arrayDir string, s *schema.ArraySchema) (*WriteState, error) {
	dir := fs.Join(arrayDir, NewName())
	if err := filesystem.CreateDir(dir); err != nil {
		return nil, status.Wrap(status.IoError, err, "create fragment directory")
	}

	physAttrs := s.Attributes
	var varNames map[string]bool
	var order []string
	if s.Dense {
		varNames = map[string]bool{}
		for _, a := range physAttrs {
			order = append(order, a.Name)
			if a.CellValNumVar {
				varNames[a.Name] = true
			}
		}
	} else {
		varNames = map[string]bool{}
		for _, a := range s.SparseAttributes() {
			order = append(order, a.Name)
			if a.CellValNumVar {
				varNames[a.Name] = true
			}
		}
	}

	ws := &WriteState{
		s:          s,
		filesystem: filesystem,
		dir:        dir,
		attrOrder:  order,
		attrs:      make(map[string]*attrState, len(order)),
		bk:         bookkeeping.New(order, varNames),
	}
	if s.Dense {
		ws.tileCells = s.TileCellCount()
	} else {
		ws.tileCells = s.Capacity
	}

	allAttrs := map[string]schema.Attribute{}
	for _, a := range s.Attributes {
		allAttrs[a.Name] = a
	}
	if !s.Dense {
		allAttrs[schema.CoordsAttrName] = schema.Attribute{Name: schema.CoordsAttrName, Type: schema.Int64, CellValNum: len(s.Dimensions)}
	}

	for _, name := range order {
		a := allAttrs[name]
		c, err := codec.Get(a.Compressor.Name)
		if err != nil {
			return nil, err
		}
		as := &attrState{name: name, compressor: c, level: a.Compressor.Level}
		if a.CellValNumVar {
			va, err := filesystem.CreateAppender(fs.Join(dir, AttrVarFileName(name)))
			if err != nil {
				return nil, status.Wrap(status.IoError, err, "open var file for %s", name)
			}
			as.varAppender = va
		} else {
			as.cellSize = a.FixedCellSize()
		}
		app, err := filesystem.CreateAppender(fs.Join(dir, AttrFileName(name)))
		if err != nil {
			return nil, status.Wrap(status.IoError, err, "open tile file for %s", name)
		}
		as.appender = app
		ws.attrs[name] = as
	}
	return ws, nil
}

// WriteOrdered consumes a batch whose cells are already in the schema's
// cell order. It slices the batch into tile-sized
// spans, compresses and appends each completed tile, and leaves any
// remainder buffered for the next call or Finalize.
func (ws *WriteState) WriteOrdered(batch CellBatch) error {
	pos := 0
	for pos < batch.NumCells {
		as0 := ws.attrs[ws.attrOrder[0]]
		room := int(ws.tileCells) - as0.cellsInTileBuf
		take := batch.NumCells - pos
		if take > room {
			take = room
		}
		sub := batch.slice(pos, pos+take)
		if err := ws.bufferSub(sub); err != nil {
			return err
		}
		pos += take
		if as0.cellsInTileBuf == int(ws.tileCells) {
			if err := ws.flushTile(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ws *WriteState) bufferSub(sub CellBatch) error {
	if !ws.s.Dense && sub.Coords != nil {
		dimNum := len(ws.s.Dimensions)
		for c := 0; c < sub.NumCells; c++ {
			coord := sub.Coords[c*dimNum : (c+1)*dimNum]
			if ws.curMBR == nil {
				m := NewMBR(coord)
				ws.curMBR = &m
				ws.curFirstCoord = append([]schema.Datum{}, coord...)
			} else {
				ws.curMBR.Expand(ws.s.Dimensions, coord)
			}
			ws.curLastCoord = append([]schema.Datum{}, coord...)
			ws.updateNonEmptyDomain(coord)
		}
		coordAttr := ws.attrs[schema.CoordsAttrName]
		var raw []byte
		for c := 0; c < sub.NumCells; c++ {
			coord := sub.Coords[c*dimNum : (c+1)*dimNum]
			for i, d := range ws.s.Dimensions {
				raw = schema.Encode(schema.Int64, schema.DatumInt64(schema.ToInt64(d.Type, coord[i])), raw)
			}
		}
		coordAttr.fixedBuf = append(coordAttr.fixedBuf, raw...)
		coordAttr.cellsInTileBuf += sub.NumCells
		ws.cellsInSparseTile += sub.NumCells
	}

	for attr, buf := range sub.Fixed {
		as := ws.attrs[attr]
		as.fixedBuf = append(as.fixedBuf, buf...)
		as.cellsInTileBuf += sub.NumCells
	}
	for attr, vals := range sub.Var {
		as := ws.attrs[attr]
		for _, v := range vals {
			as.varOffsets = append(as.varOffsets, int64(len(as.varBuf)))
			as.varBuf = append(as.varBuf, v...)
		}
		as.cellsInTileBuf += sub.NumCells
	}
	ws.totalCells += int64(sub.NumCells)
	return nil
}

func (ws *WriteState) updateNonEmptyDomain(coord []schema.Datum) {
	if ws.nonEmptyLo == nil {
		ws.nonEmptyLo = append([]schema.Datum{}, coord...)
		ws.nonEmptyHi = append([]schema.Datum{}, coord...)
		return
	}
	for i, d := range ws.s.Dimensions {
		if schema.Compare(d.Type, coord[i], ws.nonEmptyLo[i]) < 0 {
			ws.nonEmptyLo[i] = coord[i]
		}
		if schema.Compare(d.Type, coord[i], ws.nonEmptyHi[i]) > 0 {
			ws.nonEmptyHi[i] = coord[i]
		}
	}
}

// flushTile compresses and appends the currently buffered tile for every
// attribute, then resets the
// per-attribute buffers. For sparse fragments it also pushes the current
// MBR/bounding pair to bookkeeping and resets the sparse tile counter.
func (ws *WriteState) flushTile() error {
	cellCount := ws.attrs[ws.attrOrder[0]].cellsInTileBuf
	if cellCount == 0 {
		return nil
	}
	for _, attr := range ws.attrOrder {
		as := ws.attrs[attr]
		if as.cellSize > 0 {
			compressed, err := as.compressor.Compress(as.level, as.fixedBuf)
			if err != nil {
				return status.Wrap(status.EncodeError, err, "compress tile for %s", attr)
			}
			if _, err := as.appender.Write(compressed); err != nil {
				return status.Wrap(status.IoError, err, "append tile for %s", attr)
			}
			ws.bk.AppendTileOffset(attr, int64(len(compressed)))
			as.fixedBuf = as.fixedBuf[:0]
		} else {
			rewritten := make([]byte, len(as.varOffsets)*8)
			for i, off := range as.varOffsets {
				abs := as.varBase + off
				binary.LittleEndian.PutUint64(rewritten[i*8:(i+1)*8], uint64(abs))
			}
			compressedOff, err := as.compressor.Compress(as.level, rewritten)
			if err != nil {
				return status.Wrap(status.EncodeError, err, "compress offsets for %s", attr)
			}
			if _, err := as.appender.Write(compressedOff); err != nil {
				return status.Wrap(status.IoError, err, "append offsets for %s", attr)
			}
			ws.bk.AppendTileOffset(attr, int64(len(compressedOff)))

			if _, err := as.varAppender.Write(as.varBuf); err != nil {
				return status.Wrap(status.IoError, err, "append var values for %s", attr)
			}
			ws.bk.AppendTileVarOffset(attr, int64(len(as.varBuf)))
			ws.bk.AppendTileVarSize(attr, uint64(len(as.varBuf)))
			as.varBase += int64(len(as.varBuf))
			as.varBuf = as.varBuf[:0]
			as.varOffsets = as.varOffsets[:0]
		}
		as.cellsInTileBuf = 0
	}
	if !ws.s.Dense {
		bc := EncodeCoordPair(ws.s.Dimensions, ws.curFirstCoord, ws.curLastCoord)
		ws.bk.AppendBoundingCoords(bc)
		mbr := EncodeCoordPair(ws.s.Dimensions, ws.curMBR.Lo, ws.curMBR.Hi)
		ws.bk.AppendMBR(mbr)
		ws.curMBR = nil
		ws.curFirstCoord = nil
		ws.curLastCoord = nil
		ws.cellsInSparseTile = 0
	}
	return nil
}

// WriteUnsorted sorts the batch's cells by CellIndex, the schema's cell
// order over the whole domain (cells are not bucketed by tile id first,
// even for tiled sparse arrays), and streams the
// sorted result through a bounded scratch buffer, emitting sorted
// sub-batches to WriteOrdered. Stable ordering of
// ties is not required.
func (ws *WriteState) WriteUnsorted(batch CellBatch) error {
	if ws.s.Dense {
		return status.New(status.InvalidArg, "unsorted write is sparse-only")
	}
	dimNum := len(ws.s.Dimensions)
	perm := make([]int, batch.NumCells)
	for i := range perm {
		perm[i] = i
	}
	keys := make([]uint64, batch.NumCells)
	for i := 0; i < batch.NumCells; i++ {
		coord := batch.Coords[i*dimNum : (i+1)*dimNum]
		keys[i] = CellIndex(ws.s, coord)
	}
	sort.Slice(perm, func(a, b int) bool { return keys[perm[a]] < keys[perm[b]] })

	// Estimate per-cell byte footprints across fixed attrs and across
	// variable values to size scratch sub-batches within
	// fixedScratchBudget and varScratchBudget.
	fixedPerCell := dimNum * 8
	for attr, buf := range batch.Fixed {
		_ = attr
		if batch.NumCells > 0 {
			fixedPerCell += len(buf) / batch.NumCells
		}
	}
	chunk := batch.NumCells
	if fixedPerCell > 0 {
		if byCells := fixedScratchBudget / fixedPerCell; byCells > 0 && byCells < chunk {
			chunk = byCells
		}
	}
	varBytes := 0
	for _, vals := range batch.Var {
		for _, v := range vals {
			varBytes += len(v)
		}
	}
	if varBytes > 0 {
		varPerCell := (varBytes + batch.NumCells - 1) / batch.NumCells
		if byCells := varScratchBudget / varPerCell; byCells > 0 && byCells < chunk {
			chunk = byCells
		}
	}
	if chunk == 0 {
		chunk = 1
	}

	for start := 0; start < batch.NumCells; start += chunk {
		end := start + chunk
		if end > batch.NumCells {
			end = batch.NumCells
		}
		sub := ws.gatherPermuted(batch, perm[start:end])
		if err := ws.WriteOrdered(sub); err != nil {
			return err
		}
	}
	return nil
}

func (ws *WriteState) gatherPermuted(batch CellBatch, idx []int) CellBatch {
	n := len(idx)
	dimNum := len(ws.s.Dimensions)
	out := CellBatch{NumCells: n}
	if batch.Coords != nil {
		out.Coords = make([]schema.Datum, 0, n*dimNum)
		for _, i := range idx {
			out.Coords = append(out.Coords, batch.Coords[i*dimNum:(i+1)*dimNum]...)
		}
	}
	if batch.Fixed != nil {
		out.Fixed = make(map[string][]byte, len(batch.Fixed))
		for attr, buf := range batch.Fixed {
			cellSize := len(buf) / batch.NumCells
			nb := make([]byte, 0, n*cellSize)
			for _, i := range idx {
				nb = append(nb, buf[i*cellSize:(i+1)*cellSize]...)
			}
			out.Fixed[attr] = nb
		}
	}
	if batch.Var != nil {
		out.Var = make(map[string][][]byte, len(batch.Var))
		for attr, vals := range batch.Var {
			nv := make([][]byte, n)
			for j, i := range idx {
				nv[j] = vals[i]
			}
			out.Var[attr] = nv
		}
	}
	return out
}

// Finalize writes the current partial tile, the bookkeeping file, and
// the fragment sentinel last, so a reader never observes a fragment
// directory that isn't yet safe to read.
func (ws *WriteState) Finalize() error {
	if ws.closed {
		return nil
	}
	lastCellCount := ws.attrs[ws.attrOrder[0]].cellsInTileBuf
	if lastCellCount > 0 {
		if err := ws.flushTile(); err != nil {
			return err
		}
	}
	if lastCellCount == 0 && ws.totalCells > 0 {
		// The batch divided evenly into whole tiles; the last tile
		// written by flushTile was full.
		lastCellCount = int(ws.tileCells)
	}
	ws.bk.SetLastTileCellNum(int64(lastCellCount))

	if !ws.s.Dense && ws.nonEmptyLo != nil {
		ws.bk.NonEmptyDomain = EncodeCoordPair(ws.s.Dimensions, ws.nonEmptyLo, ws.nonEmptyHi)
	}

	for _, attr := range ws.attrOrder {
		as := ws.attrs[attr]
		if err := as.appender.Sync(); err != nil {
			return status.Wrap(status.IoError, err, "sync %s", attr)
		}
		if err := as.appender.Close(); err != nil {
			return status.Wrap(status.IoError, err, "close %s", attr)
		}
		if as.varAppender != nil {
			if err := as.varAppender.Sync(); err != nil {
				return status.Wrap(status.IoError, err, "sync var %s", attr)
			}
			if err := as.varAppender.Close(); err != nil {
				return status.Wrap(status.IoError, err, "close var %s", attr)
			}
		}
	}

	bkBytes, err := ws.bk.Flush()
	if err != nil {
		return err
	}
	if err := ws.filesystem.CreateFile(fs.Join(ws.dir, bookkeeping.FileName), bkBytes); err != nil {
		return status.Wrap(status.IoError, err, "write bookkeeping")
	}

	if err := ws.filesystem.CreateFile(fs.Join(ws.dir, SentinelFileName), nil); err != nil {
		return status.Wrap(status.IoError, err, "write fragment sentinel")
	}
	if err := ws.filesystem.Sync(ws.dir); err != nil {
		return status.Wrap(status.IoError, err, "sync fragment directory")
	}
	ws.closed = true
	return nil
}

// Discard abandons the fragment by deleting its directory: a write that
// fails mid-fragment is recoverable by discarding the fragment directory.
func (ws *WriteState) Discard() error {
	ws.closed = true
	return ws.filesystem.DeleteDir(ws.dir)
}

// Dir returns the fragment directory path.
func (ws *WriteState) Dir() string { return ws.dir }
