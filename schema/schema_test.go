package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdbstore/tdbstore/internal/testfixture"
	"github.com/tdbstore/tdbstore/schema"
)

func TestDenseRequiresTileExtent(t *testing.T) {
	dims := []schema.Dimension{{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(9)}}
	_, err := schema.New(true, dims, schema.RowMajor, schema.TileRowMajor, 0, []schema.Attribute{{Name: "v", Type: schema.Int32, CellValNum: 1}})
	assert.Error(t, err)
}

func TestSparseRequiresPositiveCapacity(t *testing.T) {
	dims := []schema.Dimension{{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(9)}}
	_, err := schema.New(false, dims, schema.RowMajor, schema.TileRowMajor, 0, []schema.Attribute{{Name: "v", Type: schema.Int32, CellValNum: 1}})
	assert.Error(t, err)
}

func TestHilbertIsSparseOnly(t *testing.T) {
	extent := int64(2)
	dims := []schema.Dimension{{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(9), TileExtent: &extent}}
	_, err := schema.New(true, dims, schema.Hilbert, schema.TileRowMajor, 0, []schema.Attribute{{Name: "v", Type: schema.Int32, CellValNum: 1}})
	assert.Error(t, err)
}

func TestCoordsAttributeNameReserved(t *testing.T) {
	extent := int64(2)
	dims := []schema.Dimension{{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(9), TileExtent: &extent}}
	_, err := schema.New(true, dims, schema.RowMajor, schema.TileRowMajor, 0, []schema.Attribute{{Name: schema.CoordsAttrName, Type: schema.Int32, CellValNum: 1}})
	assert.Error(t, err)
}

func TestExpandedDomainRoundsUpToWholeTiles(t *testing.T) {
	extent := int64(3)
	dims := []schema.Dimension{{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(9), TileExtent: &extent}}
	s, err := schema.New(true, dims, schema.RowMajor, schema.TileRowMajor, 0, []schema.Attribute{{Name: "v", Type: schema.Int32, CellValNum: 1}})
	require.NoError(t, err)
	// domain span is 10 cells, not a multiple of 3; expands to 12 (4 tiles).
	assert.Equal(t, int32(11), s.ExpandedDomain[0].Hi.I32)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := testfixture.NewMemFS()
	require.NoError(t, schema.Store(mem, "arr", s))

	loaded, err := schema.Load(mem, "arr")
	require.NoError(t, err)
	assert.Equal(t, s.Dense, loaded.Dense)
	assert.Equal(t, len(s.Dimensions), len(loaded.Dimensions))
	assert.Equal(t, s.Attributes[0].Name, loaded.Attributes[0].Name)
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	_, err := schema.FromJSON([]byte("not json"))
	assert.Error(t, err)
}
