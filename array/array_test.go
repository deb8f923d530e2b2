package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/internal/testfixture"
	"github.com/tdbstore/tdbstore/schema"
)

func writeDenseFull(t *testing.T, mem *testfixture.MemFS, path string, s *schema.ArraySchema, values []int32) {
	t.Helper()
	a, err := Open(nil, mem, path, Write, nil, nil)
	require.NoError(t, err)
	fixed := make([]byte, 0, len(values)*4)
	for _, v := range values {
		fixed = schema.Encode(schema.Int32, schema.DatumInt32(v), fixed)
	}
	batch := fragment.CellBatch{NumCells: len(values), Fixed: map[string][]byte{"value": fixed}}
	require.NoError(t, a.Write(batch, true))
	require.NoError(t, a.Close())
}

func readAllInt32(t *testing.T, a *Array) []int32 {
	t.Helper()
	buf := &AttrBuffer{Attr: "value", Fixed: make([]byte, 1024)}
	var out []int32
	for !a.Done([]string{"value"}) {
		buf.FixedUsed = 0
		buf.Overflow = false
		require.NoError(t, a.Read(buf))
		for i := 0; i < buf.FixedUsed; i += 4 {
			out = append(out, schema.Decode(schema.Int32, buf.Fixed[i:]).I32)
		}
	}
	return out
}

func TestTwoFragmentDenseOverwriteMerge(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := testfixture.NewMemFS()
	require.NoError(t, Create(nil, mem, "arr", s))

	base := make([]int32, 16)
	for i := range base {
		base[i] = int32(i + 1)
	}
	writeDenseFull(t, mem, "arr", s, base)

	overlay := make([]int32, 16)
	for i := range overlay {
		overlay[i] = int32(1000 + i)
	}
	writeDenseFull(t, mem, "arr", s, overlay)

	a, err := Open(nil, mem, "arr", Read, nil, nil)
	require.NoError(t, err)
	got := readAllInt32(t, a)
	assert.Equal(t, len(overlay), len(got))
	assert.Equal(t, int32(1000), got[0])
}

func TestOutOfBandFragmentDeletionIsNotVisible(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := testfixture.NewMemFS()
	require.NoError(t, Create(nil, mem, "arr", s))

	base := make([]int32, 16)
	for i := range base {
		base[i] = int32(i)
	}
	writeDenseFull(t, mem, "arr", s, base)

	a, err := Open(nil, mem, "arr", Read, nil, nil)
	require.NoError(t, err)

	dirs, err := fragment.Discover(mem, "arr")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.NoError(t, mem.DeleteDir(dirs[0]))

	// a's ArrayReadState snapshotted the fragment at Open time, so the
	// out-of-band deletion must not affect an already-open read.
	got := readAllInt32(t, a)
	assert.Equal(t, base, got)
}

func TestSparseOverflowResume(t *testing.T) {
	s := testfixture.Sparse1D1000()
	mem := testfixture.NewMemFS()
	require.NoError(t, Create(nil, mem, "arr", s))

	wa, err := Open(nil, mem, "arr", Write, nil, nil)
	require.NoError(t, err)
	coords := make([]schema.Datum, 0, 1000)
	fixed := make([]byte, 0, 1000*4)
	for i := int32(0); i < 1000; i++ {
		coords = append(coords, schema.DatumInt32(i))
		fixed = schema.Encode(schema.Int32, schema.DatumInt32(i), fixed)
	}
	batch := fragment.CellBatch{NumCells: 1000, Coords: coords, Fixed: map[string][]byte{"value": fixed}}
	require.NoError(t, wa.Write(batch, true))
	require.NoError(t, wa.Close())

	ra, err := Open(nil, mem, "arr", Read, nil, nil)
	require.NoError(t, err)

	buf := &AttrBuffer{Attr: "value", Fixed: make([]byte, 400)}
	var got []int32
	calls := 0
	for !ra.Done([]string{"value"}) {
		buf.FixedUsed = 0
		buf.Overflow = false
		require.NoError(t, ra.Read(buf))
		calls++
		for i := 0; i < buf.FixedUsed; i += 4 {
			got = append(got, schema.Decode(schema.Int32, buf.Fixed[i:]).I32)
		}
	}
	assert.Equal(t, 1000, len(got))
	assert.Equal(t, 10, calls)
	assert.Equal(t, int32(0), got[0])
	assert.Equal(t, int32(999), got[999])
}
