package main

import (
	"context"
	"fmt"

	"github.com/tdbstore/tdbstore/fragment"
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/schema"
)

// ShowCmd prints an array's schema and a per-fragment tile-count
// summary; for two-dimensional sparse arrays it also reports the overall
// spatial bound spanned by every fragment's tile MBRs.
type ShowCmd struct {
	Path string `arg:"" help:"Home URL or local directory of the array."`
}

func (c *ShowCmd) Run(g *Globals, ctx context.Context) error {
	filesystem, err := fs.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	s, err := schema.Load(filesystem, ".")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", s)
	fmt.Printf("cell_order=%d tile_order=%d capacity=%d\n", s.CellOrder, s.TileOrder, s.Capacity)
	for _, d := range s.Dimensions {
		fmt.Printf("  dim %-12s type=%-7s [%v, %v]\n", d.Name, d.Type, d.Lo.AsFloat64(d.Type), d.Hi.AsFloat64(d.Type))
	}
	for _, a := range s.Attributes {
		fmt.Printf("  attr %-12s type=%-7s cell_val_num=%d var=%v compressor=%s\n", a.Name, a.Type, a.CellValNum, a.CellValNumVar, a.Compressor.Name)
	}

	dirs, err := fragment.Discover(filesystem, ".")
	if err != nil {
		return err
	}
	fmt.Printf("%d visible fragments\n", len(dirs))

	var allMBRs []fragment.MBR
	for _, dir := range dirs {
		rs, err := fragment.Open(filesystem, dir, s)
		if err != nil {
			return err
		}
		attr := s.Attributes[0].Name
		if !s.Dense {
			attr = schema.CoordsAttrName
		}
		fmt.Printf("  %s: %d tiles, last tile cell count %d\n", dir, rs.NumTiles(attr), rs.LastTileCellNum())
		if !s.Dense && len(s.Dimensions) == 2 {
			for i := 0; i < rs.NumTiles(attr); i++ {
				allMBRs = append(allMBRs, rs.MBR(i))
			}
		}
	}
	if len(allMBRs) > 0 {
		b := fragment.UnionBound2D(s.Dimensions, allMBRs)
		fmt.Printf("spatial bound: [%v, %v] - [%v, %v]\n", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}
	return nil
}
