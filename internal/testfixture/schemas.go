package testfixture

import "github.com/tdbstore/tdbstore/schema"

// Dense4x4Int32 is a 4x4 dense schema, 2x2 tiles, row-major, one int32
// "value" attribute, gzip-compressed — covers the basic dense
// read/write case.
func Dense4x4Int32() *schema.ArraySchema {
	extent := int64(2)
	dims := []schema.Dimension{
		{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(1), Hi: schema.DatumInt32(4), TileExtent: &extent},
		{Name: "y", Type: schema.Int32, Lo: schema.DatumInt32(1), Hi: schema.DatumInt32(4), TileExtent: &extent},
	}
	attrs := []schema.Attribute{
		{Name: "value", Type: schema.Int32, CellValNum: 1, Compressor: schema.Compressor{Name: "gzip"}},
	}
	s, err := schema.New(true, dims, schema.RowMajor, schema.TileRowMajor, 0, attrs)
	if err != nil {
		panic(err)
	}
	return s
}

// Sparse100x100 is a 100x100 sparse schema, capacity 4, row-major cell
// order, one float64 "value" attribute — covers the sparse unsorted
// write case.
func Sparse100x100() *schema.ArraySchema {
	dims := []schema.Dimension{
		{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(99)},
		{Name: "y", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(99)},
	}
	attrs := []schema.Attribute{
		{Name: "value", Type: schema.Float64, CellValNum: 1, Compressor: schema.Compressor{Name: "none"}},
	}
	s, err := schema.New(false, dims, schema.RowMajor, schema.TileRowMajor, 4, attrs)
	if err != nil {
		panic(err)
	}
	return s
}

// Sparse1D1000 is a 1-dimensional sparse schema over [0, 999], capacity
// 100, one int32 attribute — exercises the overflow-resume read path.
func Sparse1D1000() *schema.ArraySchema {
	dims := []schema.Dimension{
		{Name: "i", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(999)},
	}
	attrs := []schema.Attribute{
		{Name: "value", Type: schema.Int32, CellValNum: 1, Compressor: schema.Compressor{Name: "none"}},
	}
	s, err := schema.New(false, dims, schema.RowMajor, schema.TileRowMajor, 100, attrs)
	if err != nil {
		panic(err)
	}
	return s
}

// SparseVarString is a sparse schema with one variable-length int32
// "label" attribute, used for variable-length round-trip tests.
func SparseVarString() *schema.ArraySchema {
	dims := []schema.Dimension{
		{Name: "x", Type: schema.Int32, Lo: schema.DatumInt32(0), Hi: schema.DatumInt32(9)},
	}
	attrs := []schema.Attribute{
		{Name: "label", Type: schema.Int32, CellValNumVar: true, Compressor: schema.Compressor{Name: "none"}},
	}
	s, err := schema.New(false, dims, schema.RowMajor, schema.TileRowMajor, 4, attrs)
	if err != nil {
		panic(err)
	}
	return s
}
