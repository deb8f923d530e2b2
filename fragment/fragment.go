// Package fragment implements one immutable, atomic array write: the
// on-disk per-attribute tile files, the bookkeeping sidecar, and the
// cell-order arithmetic (row/column-major, Hilbert) that tiles and
// sorts cells.
package fragment

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/status"
)

// SentinelFileName marks a fragment directory as complete and visible to
// readers; it is always the last file Finalize creates.
const SentinelFileName = "__fragment"

var lastTimestamp int64

// nextTimestamp returns a strictly increasing nanosecond timestamp, using
// a monotonic counter to break ties when called faster than the clock's
// resolution, so two fragments from the same writer always sort in
// creation order even when their wall-clock timestamps collide.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		prev := atomic.LoadInt64(&lastTimestamp)
		next := now
		if next <= prev {
			next = prev + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, prev, next) {
			return next
		}
	}
}

// NewName generates a fragment directory name `__<uuid>_<timestamp>`.
func NewName() string {
	return fmt.Sprintf("__%s_%d", uuid.NewString(), nextTimestamp())
}

// Timestamp extracts the timestamp suffix from a fragment directory name,
// used to sort fragments newest-last for the merger (newer wins on
// overlapping cells).
func Timestamp(name string) (int64, bool) {
	var u string
	var ts int64
	n, err := fmt.Sscanf(name, "__%36s_%d", &u, &ts)
	if err != nil || n != 2 {
		return 0, false
	}
	return ts, true
}

// AttrFileName is the fixed-length tile file for attr within a fragment
// directory.
func AttrFileName(attr string) string { return attr + ".tdb" }

// AttrVarFileName is the variable-value file for a variable-length
// attribute.
func AttrVarFileName(attr string) string { return attr + "_var.tdb" }

// Discover lists the fragment directories under arrayDir that carry a
// sentinel, sorted oldest-first by embedded timestamp. Directories with
// a missing sentinel are write-in-progress or abandoned and are skipped.
func Discover(filesystem fs.Filesystem, arrayDir string) ([]string, error) {
	dirs, err := filesystem.ListDirs(arrayDir)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "list fragment directories")
	}
	type entry struct {
		name string
		ts   int64
	}
	var entries []entry
	for _, d := range dirs {
		full := fs.Join(arrayDir, d)
		if !filesystem.IsFile(fs.Join(full, SentinelFileName)) {
			continue
		}
		ts, ok := Timestamp(d)
		if !ok {
			continue
		}
		entries = append(entries, entry{name: full, ts: ts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts < entries[j].ts })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out, nil
}
