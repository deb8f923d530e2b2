// Package schema defines the array schema: dimensions, domain, tile
// geometry, attributes and the cell/tile ordering of an array, together
// with the invariant checks required before an array can be created.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/status"
)

// CellOrder is the total order over cells within a tile (and, for sparse
// arrays, over cells within the whole array).
type CellOrder uint8

const (
	RowMajor CellOrder = iota
	ColMajor
	Hilbert
)

// TileOrder is the order in which tiles are laid out; Hilbert is not a
// valid tile order (sparse arrays have no grid to order by tile order).
type TileOrder uint8

const (
	TileRowMajor TileOrder = iota
	TileColMajor
)

// Compressor identifies one of the codec package's registered algorithms
// by name, kept as a string here so schema has no import-time dependency
// on codec (codec.Registry looks names up by this string).
type Compressor struct {
	Name  string
	Level int
}

// Dimension is one axis of the array's domain.
type Dimension struct {
	Name string
	Type DType
	// Lo/Hi are the closed domain bounds, inclusive, in Type's datum form.
	Lo, Hi Datum
	// TileExtent, if non-nil, makes this dimension chunked. Required for
	// dense arrays; optional (and generally unused) for sparse.
	TileExtent *int64
}

// Attribute is one named, per-cell value stored by the array.
type Attribute struct {
	Name string
	Type DType
	// CellValNum is the number of Type values per cell; CellValNumVar
	// marks a variable-length attribute instead.
	CellValNum    int
	CellValNumVar bool
	Compressor    Compressor
}

// FixedCellSize returns the byte size of one cell's worth of this
// attribute, or 0 for variable-length attributes.
func (a Attribute) FixedCellSize() int {
	if a.CellValNumVar {
		return 0
	}
	return a.Type.Size() * a.CellValNum
}

// CoordsAttrName is the well-known pseudo-attribute appended internally
// to sparse arrays, carrying the dimension-tuple of each cell.
const CoordsAttrName = "__coords"

// ArraySchema is immutable after Create; all engine components treat it
// as a read-only value passed by pointer.
type ArraySchema struct {
	Dense      bool
	Dimensions []Dimension
	CellOrder  CellOrder
	TileOrder  TileOrder
	Capacity   int64 // sparse tile size in cells; unused when Dense
	Attributes []Attribute

	// ExpandedDomain is the per-dimension [lo, expandedHi] domain after
	// rounding up to a whole number of tile extents; computed by New,
	// not set directly by callers.
	ExpandedDomain []ExpandedBound
}

// ExpandedBound is the tile-aligned domain bound for one dimension.
type ExpandedBound struct {
	Lo, Hi Datum
}

// New validates dims/attrs and constructs an ArraySchema, computing the
// expanded domain for dense arrays.
func New(dense bool, dims []Dimension, cellOrder CellOrder, tileOrder TileOrder, capacity int64, attrs []Attribute) (*ArraySchema, error) {
	if len(dims) == 0 {
		return nil, status.New(status.InvalidArg, "schema must declare at least one dimension")
	}
	if len(attrs) == 0 {
		return nil, status.New(status.InvalidArg, "schema must declare at least one attribute")
	}
	if dense && cellOrder == Hilbert {
		return nil, status.New(status.InvalidArg, "Hilbert cell order is sparse-only")
	}
	seen := map[string]bool{}
	for _, d := range dims {
		if seen[d.Name] {
			return nil, status.New(status.InvalidArg, "duplicate dimension name %q", d.Name)
		}
		seen[d.Name] = true
		if Compare(d.Type, d.Lo, d.Hi) > 0 {
			return nil, status.New(status.InvalidArg, "dimension %q has lo > hi", d.Name)
		}
		if dense && d.TileExtent == nil {
			return nil, status.New(status.InvalidArg, "dense dimension %q must declare a tile extent", d.Name)
		}
		if d.TileExtent != nil && *d.TileExtent <= 0 {
			return nil, status.New(status.InvalidArg, "dimension %q has non-positive tile extent", d.Name)
		}
	}
	if !dense && capacity <= 0 {
		return nil, status.New(status.InvalidArg, "sparse arrays require capacity > 0")
	}
	attrSeen := map[string]bool{}
	for _, a := range attrs {
		if a.Name == CoordsAttrName {
			return nil, status.New(status.InvalidArg, "attribute name %q is reserved", CoordsAttrName)
		}
		if attrSeen[a.Name] {
			return nil, status.New(status.InvalidArg, "duplicate attribute name %q", a.Name)
		}
		attrSeen[a.Name] = true
		if !a.CellValNumVar && a.CellValNum <= 0 {
			return nil, status.New(status.InvalidArg, "attribute %q has non-positive cell_val_num", a.Name)
		}
	}

	s := &ArraySchema{
		Dense:      dense,
		Dimensions: dims,
		CellOrder:  cellOrder,
		TileOrder:  tileOrder,
		Capacity:   capacity,
		Attributes: attrs,
	}
	s.ExpandedDomain = make([]ExpandedBound, len(dims))
	for i, d := range dims {
		eb := ExpandedBound{Lo: d.Lo, Hi: d.Hi}
		if dense && d.TileExtent != nil {
			span := ToInt64(d.Type, d.Hi) - ToInt64(d.Type, d.Lo) + 1
			extent := *d.TileExtent
			rem := span % extent
			if rem != 0 {
				eb.Hi = AddInt(d.Type, d.Hi, extent-rem)
			}
		}
		s.ExpandedDomain[i] = eb
	}
	return s, nil
}

// SparseAttributes is Attributes plus the internal coordinates
// pseudo-attribute, used wherever bookkeeping/writestate must iterate
// "every physical per-attribute file" for a sparse array.
func (s *ArraySchema) SparseAttributes() []Attribute {
	if s.Dense {
		return s.Attributes
	}
	coordSize := 0
	for _, d := range s.Dimensions {
		coordSize += d.Type.Size()
	}
	coords := Attribute{Name: CoordsAttrName, Type: Int64, CellValNum: len(s.Dimensions)}
	_ = coordSize
	return append(append([]Attribute{}, s.Attributes...), coords)
}

// TileCellCount returns the number of cells in one fully-populated dense
// tile (∏ extents); meaningless for sparse schemas.
func (s *ArraySchema) TileCellCount() int64 {
	n := int64(1)
	for _, d := range s.Dimensions {
		n *= *d.TileExtent
	}
	return n
}

// jsonSchema is the on-disk representation written to __array_schema.tdb.
type jsonSchema struct {
	Dense      bool        `json:"dense"`
	Dimensions []jsonDim   `json:"dimensions"`
	CellOrder  CellOrder   `json:"cell_order"`
	TileOrder  TileOrder   `json:"tile_order"`
	Capacity   int64       `json:"capacity"`
	Attributes []jsonAttr  `json:"attributes"`
}

type jsonDim struct {
	Name       string `json:"name"`
	Type       DType  `json:"type"`
	Lo         Datum  `json:"lo"`
	Hi         Datum  `json:"hi"`
	TileExtent *int64 `json:"tile_extent,omitempty"`
}

type jsonAttr struct {
	Name          string     `json:"name"`
	Type          DType      `json:"type"`
	CellValNum    int        `json:"cell_val_num"`
	CellValNumVar bool       `json:"cell_val_num_var"`
	Compressor    Compressor `json:"compressor"`
}

// SchemaFileName is the fixed file name of the serialized schema within
// an array directory.
const SchemaFileName = "__array_schema.tdb"

// Store serializes s as JSON under dir/SchemaFileName.
func Store(filesystem fs.Filesystem, dir string, s *ArraySchema) error {
	js := jsonSchema{Dense: s.Dense, CellOrder: s.CellOrder, TileOrder: s.TileOrder, Capacity: s.Capacity}
	for _, d := range s.Dimensions {
		js.Dimensions = append(js.Dimensions, jsonDim{Name: d.Name, Type: d.Type, Lo: d.Lo, Hi: d.Hi, TileExtent: d.TileExtent})
	}
	for _, a := range s.Attributes {
		js.Attributes = append(js.Attributes, jsonAttr{Name: a.Name, Type: a.Type, CellValNum: a.CellValNum, CellValNumVar: a.CellValNumVar, Compressor: a.Compressor})
	}
	bs, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return status.Wrap(status.EncodeError, err, "marshal schema")
	}
	return filesystem.CreateFile(fs.Join(dir, SchemaFileName), bs)
}

// Load reads and validates a schema previously written by Store.
func Load(filesystem fs.Filesystem, dir string) (*ArraySchema, error) {
	bs, err := filesystem.ReadAll(fs.Join(dir, SchemaFileName))
	if err != nil {
		return nil, status.Wrap(status.NotFound, err, "read schema")
	}
	return FromJSON(bs)
}

// FromJSON parses a schema in the same JSON shape Store writes, for
// callers (the CLI's create command) that accept a schema description
// from a file before any array exists to Load it from.
func FromJSON(bs []byte) (*ArraySchema, error) {
	var js jsonSchema
	if err := json.Unmarshal(bs, &js); err != nil {
		return nil, status.Wrap(status.DecodeError, err, "unmarshal schema")
	}
	var dims []Dimension
	for _, d := range js.Dimensions {
		dims = append(dims, Dimension{Name: d.Name, Type: d.Type, Lo: d.Lo, Hi: d.Hi, TileExtent: d.TileExtent})
	}
	var attrs []Attribute
	for _, a := range js.Attributes {
		attrs = append(attrs, Attribute{Name: a.Name, Type: a.Type, CellValNum: a.CellValNum, CellValNumVar: a.CellValNumVar, Compressor: a.Compressor})
	}
	return New(js.Dense, dims, js.CellOrder, js.TileOrder, js.Capacity, attrs)
}

// AttributeByName looks up an attribute (including the internal
// coordinates pseudo-attribute for sparse schemas) by name.
func (s *ArraySchema) AttributeByName(name string) (Attribute, error) {
	if !s.Dense && name == CoordsAttrName {
		coords := Attribute{Name: CoordsAttrName, Type: Int64, CellValNum: len(s.Dimensions)}
		return coords, nil
	}
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, nil
		}
	}
	return Attribute{}, status.New(status.InvalidArg, "unknown attribute %q", name)
}

func (s *ArraySchema) String() string {
	return fmt.Sprintf("ArraySchema{dense=%v dims=%d attrs=%d}", s.Dense, len(s.Dimensions), len(s.Attributes))
}
