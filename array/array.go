package array

import (
	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
	"github.com/tdbstore/tdbstore/status"
)

// Mode selects read or write on Open; whether a write is pre-sorted is
// a separate sorted argument to Write rather than an extra Mode value,
// since direction and sortedness are independent axes.
type Mode uint8

const (
	Read Mode = iota
	Write
)

// ArrayFileName is the sentinel marking a directory as an array.
const ArrayFileName = "__array"

// Array is the facade over schema load/store, fragment discovery, and
// the Open/Close lifecycle that hands out a WriteState or an
// ArrayReadState.
type Array struct {
	filesystem fs.Filesystem
	path       string
	Schema     *schema.ArraySchema

	mode Mode
	ctx  *Context

	// read-mode state
	readFrags []*fragment.ReadState
	readState *ArrayReadState

	// write-mode state
	writeState *fragment.WriteState
}

// Create serializes s to path and marks it an array. ctx may be nil
// (DefaultContext is used).
func Create(ctx *Context, filesystem fs.Filesystem, path string, s *schema.ArraySchema) error {
	if filesystem.IsFile(fs.Join(path, ArrayFileName)) {
		return status.New(status.AlreadyExists, "array already exists at %s", path)
	}
	if err := filesystem.CreateDir(path); err != nil {
		return status.Wrap(status.IoError, err, "create array directory")
	}
	if err := schema.Store(filesystem, path, s); err != nil {
		return err
	}
	if err := filesystem.CreateFile(fs.Join(path, ArrayFileName), nil); err != nil {
		return err
	}
	ctx.logger().Printf("created array at %s (dense=%v dims=%d attrs=%d)", path, s.Dense, len(s.Dimensions), len(s.Attributes))
	return nil
}

// Open loads the schema, discovers visible fragments, and installs
// either a WriteState (mode Write) or an ArrayReadState over subLo/subHi
// (mode Read; nil means the entire domain). ctx may be nil.
func Open(ctx *Context, filesystem fs.Filesystem, path string, mode Mode, subLo, subHi []schema.Datum) (*Array, error) {
	if !filesystem.IsFile(fs.Join(path, ArrayFileName)) {
		return nil, status.New(status.NotFound, "no array at %s", path)
	}
	s, err := schema.Load(filesystem, path)
	if err != nil {
		return nil, err
	}
	a := &Array{filesystem: filesystem, path: path, Schema: s, mode: mode, ctx: ctx}

	if mode == Write {
		ws, err := fragment.Create(filesystem, path, s)
		if err != nil {
			return nil, err
		}
		a.writeState = ws
		return a, nil
	}

	names, err := fragment.Discover(filesystem, path)
	if err != nil {
		return nil, err
	}
	for _, dir := range names {
		rs, err := fragment.Open(filesystem, dir, s)
		if err != nil {
			return nil, err
		}
		a.readFrags = append(a.readFrags, rs)
	}
	ctx.logger().Printf("opened array %s for read: %d visible fragments", path, len(a.readFrags))

	lo, hi := subLo, subHi
	if lo == nil {
		lo, hi = domainBounds(s)
	}
	ars, err := NewArrayReadState(s, a.readFrags, lo, hi)
	if err != nil {
		return nil, err
	}
	a.readState = ars
	return a, nil
}

func domainBounds(s *schema.ArraySchema) ([]schema.Datum, []schema.Datum) {
	lo := make([]schema.Datum, len(s.Dimensions))
	hi := make([]schema.Datum, len(s.Dimensions))
	for i, d := range s.Dimensions {
		lo[i] = d.Lo
		hi[i] = d.Hi
	}
	return lo, hi
}

// Write feeds batch to the open WriteState (ordered or unsorted
// depending on sorted).
func (a *Array) Write(batch fragment.CellBatch, sorted bool) error {
	if a.mode != Write {
		return status.New(status.InvalidArg, "array not opened for write")
	}
	if sorted {
		return a.writeState.WriteOrdered(batch)
	}
	return a.writeState.WriteUnsorted(batch)
}

// Read delegates to the ArrayReadState merger.
func (a *Array) Read(buf *AttrBuffer) error {
	if a.mode != Read {
		return status.New(status.InvalidArg, "array not opened for read")
	}
	return a.readState.Read(buf)
}

// Overflow reports whether the last Read call for attr stopped early.
func (a *Array) Overflow(attrBuf *AttrBuffer) bool { return attrBuf.Overflow }

// Done reports whether every one of attrs has been fully read.
func (a *Array) Done(attrs []string) bool {
	if a.readState == nil {
		return true
	}
	return a.readState.Done(attrs)
}

// SkipAndRead skips skip cells of attrBuf.Attr before resuming the
// normal Read copy loop, for a caller that tracks cursor position
// outside the engine and needs to realign after an out-of-band seek.
func (a *Array) SkipAndRead(attrBuf *AttrBuffer, skip int) error {
	if a.mode != Read {
		return status.New(status.InvalidArg, "array not opened for read")
	}
	return a.readState.SkipAndRead(attrBuf, skip)
}

// ResetAttributes rewinds the read cursors of attrs (or every attribute,
// if attrs is nil) back to the start of the current merge, without the
// cost of recomputing it the way ResetSubarray does.
func (a *Array) ResetAttributes(attrs []string) error {
	if a.mode != Read {
		return status.New(status.InvalidArg, "array not opened for read")
	}
	a.readState.ResetAttributes(attrs)
	return nil
}

// SyncAttribute realigns attr's read cursor to match to's, bringing two
// attributes that drifted out of lockstep back in sync.
func (a *Array) SyncAttribute(attr, to string) error {
	if a.mode != Read {
		return status.New(status.InvalidArg, "array not opened for read")
	}
	a.readState.SyncAttribute(attr, to)
	return nil
}

// ResetSubarray re-merges the array's already-open fragments over a new
// subarray.
func (a *Array) ResetSubarray(subLo, subHi []schema.Datum) error {
	if a.mode != Read {
		return status.New(status.InvalidArg, "array not opened for read")
	}
	ars, err := NewArrayReadState(a.Schema, a.readFrags, subLo, subHi)
	if err != nil {
		return err
	}
	a.readState = ars
	return nil
}

// Close finalizes a write-mode array or releases read-mode fragment
// handles.
func (a *Array) Close() error {
	if a.mode == Write && a.writeState != nil {
		return a.writeState.Finalize()
	}
	return nil
}

// Abort discards an in-progress write: a write that fails mid-fragment
// is recoverable by discarding the fragment directory.
func (a *Array) Abort() error {
	if a.mode == Write && a.writeState != nil {
		return a.writeState.Discard()
	}
	return nil
}
