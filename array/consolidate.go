package array

import (
	"github.com/schollz/progressbar/v3"
	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
	"github.com/tdbstore/tdbstore/status"
)

// consolidateChunkCells bounds how many cells Consolidate materializes
// into memory per WriteOrdered call.
const consolidateChunkCells = 1 << 16

// Consolidate opens a new fragment in write mode, reads every live
// fragment in cell order through the merger, writes the merged stream
// into the new fragment, finalizes it, then deletes all old fragments.
// It is a logical no-op from any reader's standpoint since the new
// fragment subsumes the old ones. ctx may be nil.
func Consolidate(ctx *Context, filesystem fs.Filesystem, path string) error {
	if !filesystem.SupportsConsolidation() {
		return status.New(status.InvalidArg, "filesystem backend does not support consolidation")
	}

	s, err := schema.Load(filesystem, path)
	if err != nil {
		return err
	}
	oldDirs, err := fragment.Discover(filesystem, path)
	if err != nil {
		return err
	}
	if len(oldDirs) <= 1 {
		return nil
	}

	var frags []*fragment.ReadState
	for _, dir := range oldDirs {
		rs, err := fragment.Open(filesystem, dir, s)
		if err != nil {
			return err
		}
		frags = append(frags, rs)
	}

	if s.Dense && fragment.CheckDenseDisjoint(s, frags) {
		ctx.logger().Printf("consolidate %s: %d fragments are tile-disjoint, overwrite resolution is a no-op", path, len(frags))
	}

	lo, hi := domainBounds(s)
	ars, err := NewArrayReadState(s, frags, lo, hi)
	if err != nil {
		return err
	}

	ws, err := fragment.Create(filesystem, path, s)
	if err != nil {
		return err
	}

	// The coordinates pseudo-attribute is populated via CellBatch.Coords,
	// not as a regular Fixed entry (fragment.WriteState.bufferSub derives
	// the physical __coords tile from Coords directly).
	attrs := s.Attributes

	n := ars.NumCells()
	bar := progressbar.Default(int64(n), "consolidating "+path)
	for start := 0; start < n; start += consolidateChunkCells {
		end := start + consolidateChunkCells
		if end > n {
			end = n
		}
		batch, err := ars.CellBatch(start, end, attrs)
		if err != nil {
			_ = ws.Discard()
			return err
		}
		if err := ws.WriteOrdered(batch); err != nil {
			_ = ws.Discard()
			return err
		}
		_ = bar.Add(end - start)
	}
	if err := ws.Finalize(); err != nil {
		return err
	}

	for _, dir := range oldDirs {
		if err := filesystem.DeleteDir(dir); err != nil {
			return status.Wrap(status.IoError, err, "delete old fragment %s", dir)
		}
	}
	ctx.logger().Printf("consolidate %s: merged %d fragments into one, %d cells", path, len(oldDirs), n)
	return nil
}
