package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tdbstore/tdbstore/internal/testfixture"
	"github.com/tdbstore/tdbstore/schema"
)

func TestCellIndexRowMajor4x4Tile2x2(t *testing.T) {
	s := testfixture.Dense4x4Int32()

	coord := func(x, y int32) []schema.Datum {
		return []schema.Datum{schema.DatumInt32(x), schema.DatumInt32(y)}
	}

	// Row-major CellIndex ranks cells over the whole 4x4 domain, not per
	// tile: (1,1) (1,2) are 0 and 1, and the next row starts at 4, so the
	// rest of the top-left 2x2 tile, (2,1) (2,2), is 4 and 5.
	assert.Equal(t, uint64(0), CellIndex(s, coord(1, 1)))
	assert.Equal(t, uint64(1), CellIndex(s, coord(1, 2)))
	assert.Equal(t, uint64(4), CellIndex(s, coord(2, 1)))
	assert.Equal(t, uint64(5), CellIndex(s, coord(2, 2)))
}

func TestTileIDRowMajor2x2Tiles(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	// A 4x4 domain with 2x2 tiles has a 2x2 tile grid; row-major tile
	// order visits tile (0,0),(0,1),(1,0),(1,1) as 0..3.
	assert.Equal(t, uint64(0), TileID(s, []int64{0, 0}))
	assert.Equal(t, uint64(1), TileID(s, []int64{0, 1}))
	assert.Equal(t, uint64(2), TileID(s, []int64{1, 0}))
	assert.Equal(t, uint64(3), TileID(s, []int64{1, 1}))
}

func TestTileCoordsOf(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	got := TileCoordsOf(s, []schema.Datum{schema.DatumInt32(3), schema.DatumInt32(4)})
	assert.Equal(t, []int64{1, 1}, got)
}

func TestHilbertIndexDistinctForDistinctCells(t *testing.T) {
	dims := []schema.Dimension{
		{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(15)},
		{Name: "y", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(15)},
	}
	s, err := schema.New(false, dims, schema.Hilbert, schema.TileRowMajor, 4, []schema.Attribute{
		{Name: "v", Type: schema.Int32, CellValNum: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[uint64]bool{}
	for x := int32(0); x < 16; x++ {
		for y := int32(0); y < 16; y++ {
			idx := CellIndex(s, []schema.Datum{schema.DatumInt32(x), schema.DatumInt32(y)})
			if seen[idx] {
				t.Fatalf("duplicate hilbert index %d for (%d,%d)", idx, x, y)
			}
			seen[idx] = true
		}
	}
}
