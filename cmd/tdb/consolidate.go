package main

import (
	"context"

	"github.com/tdbstore/tdbstore/array"
	"github.com/tdbstore/tdbstore/fs"
)

// ConsolidateCmd merges every fragment under Path into one, deleting the
// originals once the merge is durable.
type ConsolidateCmd struct {
	Path string `arg:"" help:"Home URL or local directory of the array."`
}

func (c *ConsolidateCmd) Run(g *Globals, ctx context.Context) error {
	filesystem, err := fs.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer filesystem.Close()
	return array.Consolidate(g.ctx, filesystem, ".")
}
