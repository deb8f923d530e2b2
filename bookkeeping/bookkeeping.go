// Package bookkeeping implements the per-fragment sidecar metadata
//: tile offsets, MBRs
// and bounding coordinates recorded as a fragment is written, and the
// fixed binary, gzip-wrapped file format a reader loads back to randomly
// address any tile without scanning.
package bookkeeping

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"

	"github.com/tdbstore/tdbstore/status"
)

// Bookkeeping is the append-time accumulator and the loaded, in-memory
// form of a fragment's sidecar file. attrOrder fixes the iteration order
// used both when appending and when (de)serializing so attribute index i
// always means the same physical attribute.
type Bookkeeping struct {
	attrOrder []string
	varAttrs  map[string]bool

	NonEmptyDomain []byte // raw 2*dimNum coordinate bytes, sparse only
	MBRs           [][]byte
	BoundingCoords [][]byte

	tileOffsets    map[string][]int64  // cumulative, from zero
	tileVarOffsets map[string][]int64  // cumulative, variable attrs only
	tileVarSizes   map[string][]uint64 // raw per-tile size, variable attrs only

	LastTileCellNum int64
}

// New creates an empty Bookkeeping for the given attribute order (which
// must match the order WriteState iterates attributes in); varAttrs
// names the subset that are variable-length.
func New(attrOrder []string, varAttrs map[string]bool) *Bookkeeping {
	return &Bookkeeping{
		attrOrder:      attrOrder,
		varAttrs:       varAttrs,
		tileOffsets:    make(map[string][]int64),
		tileVarOffsets: make(map[string][]int64),
		tileVarSizes:   make(map[string][]uint64),
	}
}

// AppendBoundingCoords records a sparse tile's (first, last) coordinate
// pair, raw-encoded bytes (2*dimNum*sizeof(coord)).
func (b *Bookkeeping) AppendBoundingCoords(bc []byte) {
	b.BoundingCoords = append(b.BoundingCoords, bc)
}

// AppendMBR records a sparse tile's minimum bounding rectangle, raw-encoded.
func (b *Bookkeeping) AppendMBR(mbr []byte) {
	b.MBRs = append(b.MBRs, mbr)
}

// AppendTileOffset records sizeDelta (the compressed byte length just
// appended to attr's file) as the next cumulative tile offset.
func (b *Bookkeeping) AppendTileOffset(attr string, sizeDelta int64) {
	offs := b.tileOffsets[attr]
	var next int64
	if len(offs) > 0 {
		next = offs[len(offs)-1] + sizeDelta
	} else {
		next = sizeDelta
	}
	b.tileOffsets[attr] = append(offs, next)
}

// AppendTileVarOffset records the cumulative variable-file offset for a
// variable-length attribute's tile.
func (b *Bookkeeping) AppendTileVarOffset(attr string, sizeDelta int64) {
	offs := b.tileVarOffsets[attr]
	var next int64
	if len(offs) > 0 {
		next = offs[len(offs)-1] + sizeDelta
	} else {
		next = sizeDelta
	}
	b.tileVarOffsets[attr] = append(offs, next)
}

// AppendTileVarSize records the raw (decompressed) byte size of a
// variable-length tile.
func (b *Bookkeeping) AppendTileVarSize(attr string, rawSize uint64) {
	b.tileVarSizes[attr] = append(b.tileVarSizes[attr], rawSize)
}

func (b *Bookkeeping) SetLastTileCellNum(n int64) {
	b.LastTileCellNum = n
}

// TileOffsets returns the cumulative tile-offset table for attr: entry i
// is the offset of the byte just past tile i, so tile i starts at entry
// i-1, and tile 0 starts at an implicit 0.
func (b *Bookkeeping) TileOffsets(attr string) []int64 { return b.tileOffsets[attr] }

func (b *Bookkeeping) TileVarOffsets(attr string) []int64 { return b.tileVarOffsets[attr] }

func (b *Bookkeeping) TileVarSizes(attr string) []uint64 { return b.tileVarSizes[attr] }

// NumTiles returns the number of tiles recorded for attr.
func (b *Bookkeeping) NumTiles(attr string) int { return len(b.tileOffsets[attr]) }

// FileName is the fixed file name of the sidecar within a fragment
// directory.
const FileName = "__book_keeping.tdb.gz"

// Flush serializes the bookkeeping's fixed binary layout, wrapped in
// one gzip stream, and returns the bytes ready to be written by the
// caller (fragment.WriteState.Finalize writes it through the
// Filesystem).
func (b *Bookkeeping) Flush() ([]byte, error) {
	var raw bytes.Buffer
	writeBytesLen := func(p []byte) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		raw.Write(n[:])
		raw.Write(p)
	}
	writeI64 := func(v int64) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(v))
		raw.Write(n[:])
	}
	writeU64 := func(v uint64) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], v)
		raw.Write(n[:])
	}

	// 1. non-empty domain
	writeBytesLen(b.NonEmptyDomain)

	// 2. MBRs
	writeI64(int64(len(b.MBRs)))
	for _, m := range b.MBRs {
		raw.Write(m)
	}

	// 3. bounding coords
	writeI64(int64(len(b.BoundingCoords)))
	for _, bc := range b.BoundingCoords {
		raw.Write(bc)
	}

	// 4. per-attribute tile offsets
	for _, attr := range b.attrOrder {
		offs := b.tileOffsets[attr]
		writeI64(int64(len(offs)))
		for _, o := range offs {
			writeI64(o)
		}
	}

	// 5. per variable attribute, tile var offsets
	for _, attr := range b.attrOrder {
		if !b.varAttrs[attr] {
			continue
		}
		offs := b.tileVarOffsets[attr]
		writeI64(int64(len(offs)))
		for _, o := range offs {
			writeI64(o)
		}
	}

	// 6. per variable attribute, tile var sizes
	for _, attr := range b.attrOrder {
		if !b.varAttrs[attr] {
			continue
		}
		sizes := b.tileVarSizes[attr]
		writeI64(int64(len(sizes)))
		for _, s := range sizes {
			writeU64(s)
		}
	}

	// 7. last tile cell num
	writeI64(b.LastTileCellNum)

	var gz bytes.Buffer
	w, err := gzip.NewWriterLevel(&gz, gzip.BestCompression)
	if err != nil {
		return nil, status.Wrap(status.EncodeError, err, "bookkeeping gzip writer")
	}
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "bookkeeping gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "bookkeeping gzip close")
	}
	return gz.Bytes(), nil
}

// Load reverses Flush, verifying that attribute tile-offset counts are
// internally consistent. Decode errors are never retried silently; the
// fragment is reported corrupt.
func Load(data []byte, attrOrder []string, varAttrs map[string]bool) (*Bookkeeping, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "bookkeeping gzip reader")
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "bookkeeping gzip read")
	}

	b := New(attrOrder, varAttrs)
	r := &byteReader{buf: raw}

	domainLen, err := r.readU64()
	if err != nil {
		return nil, err
	}
	b.NonEmptyDomain, err = r.readN(int(domainLen))
	if err != nil {
		return nil, err
	}

	mbrNum, err := r.readI64()
	if err != nil {
		return nil, err
	}
	mbrEntrySize := 0
	if mbrNum > 0 {
		// MBR entry size is inferred from the non-empty domain's size
		// (2*dimNum*sizeof(coord)), which is identical in layout.
		mbrEntrySize = len(b.NonEmptyDomain)
	}
	for i := int64(0); i < mbrNum; i++ {
		m, err := r.readN(mbrEntrySize)
		if err != nil {
			return nil, err
		}
		b.MBRs = append(b.MBRs, m)
	}

	bcNum, err := r.readI64()
	if err != nil {
		return nil, err
	}
	for i := int64(0); i < bcNum; i++ {
		bc, err := r.readN(mbrEntrySize)
		if err != nil {
			return nil, err
		}
		b.BoundingCoords = append(b.BoundingCoords, bc)
	}

	if len(b.MBRs) != len(b.BoundingCoords) {
		return nil, status.New(status.DecodeError, "bookkeeping: mbr count %d != bounding coord count %d", len(b.MBRs), len(b.BoundingCoords))
	}

	for _, attr := range attrOrder {
		n, err := r.readI64()
		if err != nil {
			return nil, err
		}
		offs := make([]int64, n)
		for i := range offs {
			v, err := r.readI64()
			if err != nil {
				return nil, err
			}
			offs[i] = v
		}
		b.tileOffsets[attr] = offs
	}

	firstCount := -1
	for _, attr := range attrOrder {
		if firstCount == -1 {
			firstCount = len(b.tileOffsets[attr])
		} else if len(b.tileOffsets[attr]) != firstCount {
			return nil, status.New(status.DecodeError, "bookkeeping: tile offset count mismatch across attributes")
		}
	}

	for _, attr := range attrOrder {
		if !varAttrs[attr] {
			continue
		}
		n, err := r.readI64()
		if err != nil {
			return nil, err
		}
		offs := make([]int64, n)
		for i := range offs {
			v, err := r.readI64()
			if err != nil {
				return nil, err
			}
			offs[i] = v
		}
		b.tileVarOffsets[attr] = offs
	}

	for _, attr := range attrOrder {
		if !varAttrs[attr] {
			continue
		}
		n, err := r.readI64()
		if err != nil {
			return nil, err
		}
		sizes := make([]uint64, n)
		for i := range sizes {
			v, err := r.readU64()
			if err != nil {
				return nil, err
			}
			sizes[i] = v
		}
		b.tileVarSizes[attr] = sizes
	}

	last, err := r.readI64()
	if err != nil {
		return nil, err
	}
	b.LastTileCellNum = last

	return b, nil
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readN(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, status.New(status.DecodeError, "bookkeeping: truncated (wanted %d bytes at %d, have %d)", n, r.pos, len(r.buf))
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) readI64() (int64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *byteReader) readU64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
