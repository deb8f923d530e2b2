package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/internal/testfixture"
)

func TestConsolidateIsReadTransparent(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := testfixture.NewMemFS()
	require.NoError(t, Create(nil, mem, "arr", s))

	base := make([]int32, 16)
	for i := range base {
		base[i] = int32(i)
	}
	writeDenseFull(t, mem, "arr", s, base)

	overlay := make([]int32, 16)
	for i := range overlay {
		overlay[i] = int32(100 + i)
	}
	writeDenseFull(t, mem, "arr", s, overlay)

	before, err := Open(nil, mem, "arr", Read, nil, nil)
	require.NoError(t, err)
	wantCells := readAllInt32(t, before)

	require.NoError(t, Consolidate(nil, mem, "arr"))

	dirs, err := fragment.Discover(mem, "arr")
	require.NoError(t, err)
	assert.Len(t, dirs, 1)

	after, err := Open(nil, mem, "arr", Read, nil, nil)
	require.NoError(t, err)
	gotCells := readAllInt32(t, after)
	assert.Equal(t, wantCells, gotCells)
}

func TestConsolidateNoOpUnderTwoFragments(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := testfixture.NewMemFS()
	require.NoError(t, Create(nil, mem, "arr", s))

	writeDenseFull(t, mem, "arr", s, make([]int32, 16))

	require.NoError(t, Consolidate(nil, mem, "arr"))

	dirs, err := fragment.Discover(mem, "arr")
	require.NoError(t, err)
	assert.Len(t, dirs, 1)
}

func TestConsolidateRejectsUnsupportedBackend(t *testing.T) {
	s := testfixture.Dense4x4Int32()
	mem := &noConsolidationFS{MemFS: testfixture.NewMemFS()}
	require.NoError(t, Create(nil, mem, "arr", s))
	err := Consolidate(nil, mem, "arr")
	assert.Error(t, err)
}

type noConsolidationFS struct {
	*testfixture.MemFS
}

func (n *noConsolidationFS) SupportsConsolidation() bool { return false }
