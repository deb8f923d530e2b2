package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tdbstore/tdbstore/array"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
)

// readBufCells bounds how many cells' worth of output ReadCmd buffers
// per attribute per Read call; the command resumes across overflow the
// way any caller of the engine's resumable read path must.
const readBufCells = 4096

// ReadCmd opens Path for read over the subarray [Lo, Hi] (the whole
// domain if either is empty) and prints the result as one JSON object per
// cell, demonstrating the overflow-resume contract directly instead of
// hiding it behind a single slurp.
type ReadCmd struct {
	Path string `arg:"" help:"Home URL or local directory of the array."`
	Lo   string `help:"Comma-separated subarray lower bound, one value per dimension."`
	Hi   string `help:"Comma-separated subarray upper bound, one value per dimension."`
}

func (c *ReadCmd) Run(g *Globals, ctx context.Context) error {
	filesystem, err := fs.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	s, err := schema.Load(filesystem, ".")
	if err != nil {
		return err
	}

	var lo, hi []schema.Datum
	if c.Lo != "" && c.Hi != "" {
		loCSV, err := parseCSVFloats(c.Lo)
		if err != nil {
			return err
		}
		hiCSV, err := parseCSVFloats(c.Hi)
		if err != nil {
			return err
		}
		if lo, err = decodeDomainValues(s, loCSV); err != nil {
			return err
		}
		if hi, err = decodeDomainValues(s, hiCSV); err != nil {
			return err
		}
	}

	a, err := array.Open(g.ctx, filesystem, ".", array.Read, lo, hi)
	if err != nil {
		return err
	}

	attrs := s.Attributes
	names := make([]string, 0, len(attrs)+1)
	bufs := make(map[string]*array.AttrBuffer, len(attrs)+1)
	for _, attr := range attrs {
		names = append(names, attr.Name)
		bufs[attr.Name] = newAttrBuffer(attr)
	}
	if !s.Dense {
		coordsAttr := schema.Attribute{Name: schema.CoordsAttrName, Type: schema.Int64, CellValNum: len(s.Dimensions)}
		names = append(names, schema.CoordsAttrName)
		bufs[schema.CoordsAttrName] = newAttrBuffer(coordsAttr)
	}

	cellsOut := 0
	for !a.Done(names) {
		results := make(map[string][]interface{}, len(names))
		for _, name := range names {
			buf := bufs[name]
			resetAttrBuffer(buf)
			if err := a.Read(buf); err != nil {
				return err
			}
			results[name] = decodeAttrBuffer(attrByName(s, name), buf)
		}
		n := len(results[names[0]])
		for i := 0; i < n; i++ {
			cell := make(map[string]interface{}, len(names))
			for _, name := range names {
				cell[name] = results[name][i]
			}
			line, err := json.Marshal(cell)
			if err != nil {
				return err
			}
			fmt.Println(string(line))
			cellsOut++
		}
	}
	g.ctx.Logger.Printf("read %d cells from %s", cellsOut, c.Path)
	return nil
}

func attrByName(s *schema.ArraySchema, name string) schema.Attribute {
	if name == schema.CoordsAttrName {
		return schema.Attribute{Name: name, Type: schema.Int64, CellValNum: len(s.Dimensions)}
	}
	for _, a := range s.Attributes {
		if a.Name == name {
			return a
		}
	}
	return schema.Attribute{}
}

func newAttrBuffer(a schema.Attribute) *array.AttrBuffer {
	buf := &array.AttrBuffer{Attr: a.Name}
	if a.CellValNumVar {
		buf.Offsets = make([]int64, readBufCells)
		buf.Values = make([]byte, readBufCells*256)
	} else {
		buf.Fixed = make([]byte, readBufCells*a.FixedCellSize())
	}
	return buf
}

func resetAttrBuffer(buf *array.AttrBuffer) {
	buf.FixedUsed = 0
	buf.OffsetsUsed = 0
	buf.ValuesUsed = 0
	buf.Overflow = false
}

func decodeAttrBuffer(a schema.Attribute, buf *array.AttrBuffer) []interface{} {
	if a.CellValNumVar {
		out := make([]interface{}, buf.OffsetsUsed)
		for i := 0; i < buf.OffsetsUsed; i++ {
			lo := buf.Offsets[i]
			var hi int64
			if i+1 < buf.OffsetsUsed {
				hi = buf.Offsets[i+1]
			} else {
				hi = int64(buf.ValuesUsed)
			}
			out[i] = attrValueJSON(a, buf.Values[lo:hi])
		}
		return out
	}
	cellSize := a.FixedCellSize()
	n := buf.FixedUsed / cellSize
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = attrValueJSON(a, buf.Fixed[i*cellSize:(i+1)*cellSize])
	}
	return out
}
