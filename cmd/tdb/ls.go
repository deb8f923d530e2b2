package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/fs"
)

// LsCmd lists the fragment directories currently visible under Path,
// oldest first, the order the merger resolves overwrites in.
type LsCmd struct {
	Path string `arg:"" help:"Home URL or local directory of the array."`
}

func (c *LsCmd) Run(g *Globals, ctx context.Context) error {
	filesystem, err := fs.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	dirs, err := fragment.Discover(filesystem, ".")
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if ts, ok := fragment.Timestamp(dir); ok {
			fmt.Printf("%s\t%s\n", dir, time.Unix(0, ts).UTC().Format(time.RFC3339Nano))
		} else {
			fmt.Println(dir)
		}
	}
	return nil
}
