package main

import (
	"context"
	"os"

	"github.com/tdbstore/tdbstore/array"
	"github.com/tdbstore/tdbstore/fs"
)

// WriteCmd opens Path for write and feeds it the cell batch described by
// the JSON file at Cells, either via the ordered or unsorted path.
type WriteCmd struct {
	Path     string `arg:"" help:"Home URL or local directory of the array."`
	Cells    string `arg:"" type:"existingfile" help:"Path to a cell-batch JSON file."`
	Unsorted bool   `help:"Cells are not in cell order yet; sort them before writing (sparse only)."`
}

func (c *WriteCmd) Run(g *Globals, ctx context.Context) error {
	filesystem, err := fs.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	a, err := array.Open(g.ctx, filesystem, ".", array.Write, nil, nil)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.Cells)
	if err != nil {
		return err
	}
	batch, err := decodeCellBatch(data, a.Schema)
	if err != nil {
		return err
	}
	if err := a.Write(batch, !c.Unsorted); err != nil {
		_ = a.Abort()
		return err
	}
	return a.Close()
}
