package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdbstore/tdbstore/internal/testfixture"
)

func TestDecodeCellBatchSparse(t *testing.T) {
	s := testfixture.Sparse100x100()
	data := []byte(`{"cells":[
		{"coords":[1,2],"attrs":{"value":10}},
		{"coords":[3,4],"attrs":{"value":20}}
	]}`)
	batch, err := decodeCellBatch(data, s)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.NumCells)
	assert.Len(t, batch.Fixed["value"], 16)
}

func TestDecodeCellBatchRejectsMissingAttr(t *testing.T) {
	s := testfixture.Sparse100x100()
	data := []byte(`{"cells":[{"coords":[1,2],"attrs":{}}]}`)
	_, err := decodeCellBatch(data, s)
	assert.Error(t, err)
}

func TestParseCSVFloats(t *testing.T) {
	vals, err := parseCSVFloats("1,2.5,3")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, vals)

	vals, err = parseCSVFloats("")
	require.NoError(t, err)
	assert.Nil(t, vals)
}

func TestDecodeCellBatchVariableLength(t *testing.T) {
	s := testfixture.SparseVarString()
	data := []byte(`{"cells":[
		{"coords":[0],"attrs":{"label":[1,2,3]}},
		{"coords":[1],"attrs":{"label":[]}}
	]}`)
	batch, err := decodeCellBatch(data, s)
	require.NoError(t, err)
	assert.Len(t, batch.Var["label"], 2)
	assert.Len(t, batch.Var["label"][0], 12)
	assert.Len(t, batch.Var["label"][1], 0)
}
