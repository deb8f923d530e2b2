package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdbstore/tdbstore/internal/testfixture"
	"github.com/tdbstore/tdbstore/schema"
)

func TestDenseWriteReadRoundTrip(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := testfixture.NewMemFS()

	ws, err := Create(mem, "arr", s)
	require.NoError(t, err)

	// 16 cells in row-major domain order, values 1..16.
	fixed := make([]byte, 0, 16*4)
	for v := int32(1); v <= 16; v++ {
		fixed = schema.Encode(schema.Int32, schema.DatumInt32(v), fixed)
	}
	batch := CellBatch{NumCells: 16, Fixed: map[string][]byte{"value": fixed}}
	require.NoError(t, ws.WriteOrdered(batch))
	require.NoError(t, ws.Finalize())

	rs, err := Open(mem, ws.Dir(), s)
	require.NoError(t, err)
	assert.Equal(t, 4, rs.NumTiles("value"))

	tile0, err := rs.Fetch("value", 0)
	require.NoError(t, err)
	var got []int32
	for i := 0; i < 4; i++ {
		got = append(got, schema.Decode(schema.Int32, tile0[i*4:]).I32)
	}
	assert.Equal(t, []int32{1, 2, 5, 6}, got)
}

func TestSparseUnsortedWriteReadRoundTrip(t *testing.T) {
	s := testfixture.Sparse100x100()
	mem := testfixture.NewMemFS()

	ws, err := Create(mem, "arr", s)
	require.NoError(t, err)

	coords := []schema.Datum{
		schema.DatumInt32(5), schema.DatumInt32(5),
		schema.DatumInt32(1), schema.DatumInt32(1),
		schema.DatumInt32(3), schema.DatumInt32(9),
		schema.DatumInt32(2), schema.DatumInt32(2),
	}
	values := []float64{50, 10, 30, 20}
	fixed := make([]byte, 0, len(values)*8)
	for _, v := range values {
		fixed = schema.Encode(schema.Float64, schema.DatumFloat64(v), fixed)
	}
	batch := CellBatch{NumCells: 4, Coords: coords, Fixed: map[string][]byte{"value": fixed}}
	require.NoError(t, ws.WriteUnsorted(batch))
	require.NoError(t, ws.Finalize())

	rs, err := Open(mem, ws.Dir(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.NumTiles("value"))
	assert.Equal(t, int64(4), rs.LastTileCellNum())

	lo, hi := rs.BoundingCoords(0)
	assert.Equal(t, int32(1), lo[0].I32)
	assert.Equal(t, int32(1), lo[1].I32)
	assert.Equal(t, int32(5), hi[0].I32)
	assert.Equal(t, int32(5), hi[1].I32)

	mbr := rs.MBR(0)
	assert.Equal(t, int32(1), mbr.Lo[0].I32)
	assert.Equal(t, int32(1), mbr.Lo[1].I32)
	assert.Equal(t, int32(5), mbr.Hi[0].I32)
	assert.Equal(t, int32(9), mbr.Hi[1].I32)
}

func TestSparseVariableLengthRoundTrip(t *testing.T) {
	s := testfixture.SparseVarString()
	mem := testfixture.NewMemFS()

	ws, err := Create(mem, "arr", s)
	require.NoError(t, err)

	coords := []schema.Datum{
		schema.DatumInt32(0), schema.DatumInt32(1), schema.DatumInt32(2),
	}
	vals := [][]byte{
		encodeInts(1, 2, 3),
		encodeInts(4),
		encodeInts(),
	}
	batch := CellBatch{NumCells: 3, Coords: coords, Var: map[string][][]byte{"label": vals}}
	require.NoError(t, ws.WriteOrdered(batch))
	require.NoError(t, ws.Finalize())

	rs, err := Open(mem, ws.Dir(), s)
	require.NoError(t, err)

	offTile, err := rs.Fetch("label", 0)
	require.NoError(t, err)
	valTile, err := rs.FetchVarValues("label", 0)
	require.NoError(t, err)
	base := rs.VarTileBase("label", 0)
	assert.Equal(t, int64(0), base)

	lo0 := beU64(offTile[0:8])
	lo1 := beU64(offTile[8:16])
	lo2 := beU64(offTile[16:24])
	assert.Equal(t, []int32{1, 2, 3}, decodeInts(valTile[lo0:lo1]))
	assert.Equal(t, []int32{4}, decodeInts(valTile[lo1:lo2]))
	assert.Equal(t, []int32{}, decodeInts(valTile[lo2:]))
}

func encodeInts(vs ...int32) []byte {
	var out []byte
	for _, v := range vs {
		out = schema.Encode(schema.Int32, schema.DatumInt32(v), out)
	}
	return out
}

func decodeInts(b []byte) []int32 {
	out := make([]int32, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		out = append(out, schema.Decode(schema.Int32, b[i:]).I32)
	}
	return out
}

func beU64(b []byte) int64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return int64(v)
}
