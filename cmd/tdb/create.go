package main

import (
	"context"
	"os"

	"github.com/tdbstore/tdbstore/array"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
)

// CreateCmd creates a new array directory at Path from the schema
// described by the JSON file at Schema.
type CreateCmd struct {
	Schema string `arg:"" type:"existingfile" help:"Path to a schema JSON file (same shape __array_schema.tdb uses)."`
	Path   string `arg:"" help:"Home URL or local directory to create the array at."`
}

func (c *CreateCmd) Run(g *Globals, ctx context.Context) error {
	bs, err := os.ReadFile(c.Schema)
	if err != nil {
		return err
	}
	s, err := schema.FromJSON(bs)
	if err != nil {
		return err
	}
	filesystem, err := fs.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer filesystem.Close()
	return array.Create(g.ctx, filesystem, ".", s)
}
