package bookkeeping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushLoadRoundTrip(t *testing.T) {
	order := []string{"value", "label"}
	varAttrs := map[string]bool{"label": true}

	b := New(order, varAttrs)
	b.NonEmptyDomain = []byte{1, 2, 3, 4}
	b.AppendMBR([]byte{1, 2, 3, 4})
	b.AppendMBR([]byte{5, 6, 7, 8})
	b.AppendBoundingCoords([]byte{9, 9, 9, 9})
	b.AppendBoundingCoords([]byte{8, 8, 8, 8})

	b.AppendTileOffset("value", 100)
	b.AppendTileOffset("value", 50)
	b.AppendTileOffset("label", 10)
	b.AppendTileOffset("label", 20)

	b.AppendTileVarOffset("label", 30)
	b.AppendTileVarOffset("label", 15)
	b.AppendTileVarSize("label", 30)
	b.AppendTileVarSize("label", 15)

	b.SetLastTileCellNum(3)

	data, err := b.Flush()
	require.NoError(t, err)

	loaded, err := Load(data, order, varAttrs)
	require.NoError(t, err)

	assert.Equal(t, b.NonEmptyDomain, loaded.NonEmptyDomain)
	assert.Equal(t, b.MBRs, loaded.MBRs)
	assert.Equal(t, b.BoundingCoords, loaded.BoundingCoords)
	assert.Equal(t, []int64{100, 150}, loaded.TileOffsets("value"))
	assert.Equal(t, []int64{10, 30}, loaded.TileOffsets("label"))
	assert.Equal(t, []int64{30, 45}, loaded.TileVarOffsets("label"))
	assert.Equal(t, []uint64{30, 15}, loaded.TileVarSizes("label"))
	assert.Equal(t, int64(3), loaded.LastTileCellNum)
	assert.Equal(t, 2, loaded.NumTiles("value"))
}

func TestLoadRejectsMismatchedAttrOffsetCounts(t *testing.T) {
	order := []string{"a", "b"}
	b := New(order, nil)
	b.AppendTileOffset("a", 10)
	b.AppendTileOffset("a", 10)
	b.AppendTileOffset("b", 10)

	data, err := b.Flush()
	require.NoError(t, err)

	_, err = Load(data, order, nil)
	assert.Error(t, err)
}

func TestNewEmptyFlushLoad(t *testing.T) {
	order := []string{"value"}
	b := New(order, nil)
	data, err := b.Flush()
	require.NoError(t, err)

	loaded, err := Load(data, order, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.NumTiles("value"))
	assert.Equal(t, int64(0), loaded.LastTileCellNum)
}
