package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredCodecsRoundTrip(t *testing.T) {
	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i % 251)
	}

	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			c, err := Get(name)
			require.NoError(t, err)

			compressed, err := c.Compress(0, src)
			require.NoError(t, err)

			decoded, err := c.Decompress(compressed, len(src))
			require.NoError(t, err)
			if diff := cmp.Diff(src, decoded); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegisteredCodecsEmptyInput(t *testing.T) {
	for _, name := range Names() {
		c, err := Get(name)
		require.NoError(t, err)
		compressed, err := c.Compress(0, nil)
		require.NoError(t, err)
		decoded, err := c.Decompress(compressed, 0)
		require.NoError(t, err)
		assert.Empty(t, decoded)
	}
}

func TestGetUnknownCompressor(t *testing.T) {
	_, err := Get("does-not-exist")
	assert.Error(t, err)
}

func TestGetEmptyNameDefaultsToNone(t *testing.T) {
	c, err := Get("")
	require.NoError(t, err)
	assert.Equal(t, "none", c.Name())
}

func TestRLEGenericRoundTrip(t *testing.T) {
	data := []byte{1, 1, 1, 1, 2, 2, 3, 4, 4, 4}
	encoded := RLEEncode(1, data)
	decoded, err := RLEDecode(1, encoded, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestRLECoordsRoundTrip(t *testing.T) {
	dimCount := 3
	coords := []int64{
		1, 1, 5,
		1, 1, 9,
		1, 2, 5,
		2, 2, 5,
	}
	cellCount := len(coords) / dimCount

	rowEnc := RLEEncodeCoordsRowMajor(dimCount, cellCount, coords)
	rowDec, n, err := RLEDecodeCoordsRowMajor(rowEnc, dimCount)
	require.NoError(t, err)
	assert.Equal(t, cellCount, n)
	assert.Equal(t, coords, rowDec)

	colEnc := RLEEncodeCoordsColMajor(dimCount, cellCount, coords)
	colDec, n, err := RLEDecodeCoordsColMajor(colEnc, dimCount)
	require.NoError(t, err)
	assert.Equal(t, cellCount, n)
	assert.Equal(t, coords, colDec)
}

func TestDoubleDeltaRoundTrip(t *testing.T) {
	col := []int64{10, 12, 15, 15, 20, 5, 5, 5, -3}
	encoded := DoubleDeltaEncodeColumn(col)
	decoded, err := DoubleDeltaDecodeColumn(encoded, len(col))
	require.NoError(t, err)
	assert.Equal(t, col, decoded)
}

func TestDoubleDeltaEmptyAndSingle(t *testing.T) {
	decoded, err := DoubleDeltaDecodeColumn(DoubleDeltaEncodeColumn(nil), 0)
	require.NoError(t, err)
	assert.Empty(t, decoded)

	one := []int64{42}
	decoded, err = DoubleDeltaDecodeColumn(DoubleDeltaEncodeColumn(one), 1)
	require.NoError(t, err)
	assert.Equal(t, one, decoded)
}
