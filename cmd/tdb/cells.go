package main

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/schema"
	"github.com/tdbstore/tdbstore/status"
)

// parseCSVFloats parses a comma-separated flag value ("1,2,3") into a
// float64 slice, empty input yielding a nil slice.
func parseCSVFloats(csv string) ([]float64, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, status.Wrap(status.InvalidArg, err, "parse value %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// cellJSON is one cell of the write command's input file: Coords is only
// read for sparse arrays, Attrs holds one entry per schema attribute,
// either a bare number (cell_val_num == 1), an array of numbers
// (cell_val_num > 1), or an array of numbers of any length (variable).
type cellJSON struct {
	Coords []float64                  `json:"coords,omitempty"`
	Attrs  map[string]json.RawMessage `json:"attrs"`
}

type batchJSON struct {
	Cells []cellJSON `json:"cells"`
}

// decodeCellBatch parses the write command's input file into the
// CellBatch shape fragment.WriteState expects.
func decodeCellBatch(data []byte, s *schema.ArraySchema) (fragment.CellBatch, error) {
	var bj batchJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return fragment.CellBatch{}, status.Wrap(status.DecodeError, err, "unmarshal cell batch")
	}
	n := len(bj.Cells)
	batch := fragment.CellBatch{NumCells: n, Fixed: map[string][]byte{}, Var: map[string][][]byte{}}
	if !s.Dense {
		batch.Coords = make([]schema.Datum, 0, n*len(s.Dimensions))
	}

	for _, cell := range bj.Cells {
		if !s.Dense {
			if len(cell.Coords) != len(s.Dimensions) {
				return fragment.CellBatch{}, status.New(status.InvalidArg, "cell has %d coords, schema declares %d dimensions", len(cell.Coords), len(s.Dimensions))
			}
			for i, d := range s.Dimensions {
				batch.Coords = append(batch.Coords, datumFromFloat(d.Type, cell.Coords[i]))
			}
		}
		for _, a := range s.Attributes {
			raw, ok := cell.Attrs[a.Name]
			if !ok {
				return fragment.CellBatch{}, status.New(status.InvalidArg, "cell missing attribute %q", a.Name)
			}
			vals, err := decodeNumbers(raw)
			if err != nil {
				return fragment.CellBatch{}, status.Wrap(status.DecodeError, err, "unmarshal attribute %q", a.Name)
			}
			if !a.CellValNumVar && len(vals) != a.CellValNum {
				return fragment.CellBatch{}, status.New(status.InvalidArg, "attribute %q wants %d values, got %d", a.Name, a.CellValNum, len(vals))
			}
			var enc []byte
			for _, v := range vals {
				enc = schema.Encode(a.Type, datumFromFloat(a.Type, v), enc)
			}
			if a.CellValNumVar {
				batch.Var[a.Name] = append(batch.Var[a.Name], enc)
			} else {
				batch.Fixed[a.Name] = append(batch.Fixed[a.Name], enc...)
			}
		}
	}
	return batch, nil
}

// decodeNumbers accepts either a bare JSON number or an array of numbers,
// always returning a slice.
func decodeNumbers(raw json.RawMessage) ([]float64, error) {
	var vals []float64
	if err := json.Unmarshal(raw, &vals); err == nil {
		return vals, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func datumFromFloat(t schema.DType, v float64) schema.Datum {
	switch t {
	case schema.Int32:
		return schema.DatumInt32(int32(v))
	case schema.Int64:
		return schema.DatumInt64(int64(v))
	case schema.Float32:
		return schema.DatumFloat32(float32(v))
	default:
		return schema.DatumFloat64(v)
	}
}

// decodeDomainValues parses the comma-separated --lo/--hi flag values
// into one Datum per dimension.
func decodeDomainValues(s *schema.ArraySchema, csv []float64) ([]schema.Datum, error) {
	if len(csv) != len(s.Dimensions) {
		return nil, status.New(status.InvalidArg, "expected %d values, got %d", len(s.Dimensions), len(csv))
	}
	out := make([]schema.Datum, len(s.Dimensions))
	for i, d := range s.Dimensions {
		out[i] = datumFromFloat(d.Type, csv[i])
	}
	return out, nil
}

// attrValueJSON decodes one cell's worth of raw attribute bytes back
// into plain numbers for the read command's output.
func attrValueJSON(a schema.Attribute, raw []byte) interface{} {
	size := a.Type.Size()
	n := len(raw) / size
	if n == 1 && !a.CellValNumVar {
		return schema.Decode(a.Type, raw).AsFloat64(a.Type)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = schema.Decode(a.Type, raw[i*size:]).AsFloat64(a.Type)
	}
	return out
}
