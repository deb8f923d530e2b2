// Command tdb is the reference CLI over the array engine: create a
// schema, write cells, read a subarray, consolidate fragments, and
// inspect an array's layout, each a thin kong command over the array
// package facade.
package main

import (
	"context"
	"log"
	"os"

	"github.com/alecthomas/kong"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/tdbstore/tdbstore/array"
)

// Globals is threaded into every command's Run via kong.Bind, carrying
// the Context explicitly instead of a package-level global.
type Globals struct {
	ctx *array.Context
}

var cli struct {
	Create      CreateCmd      `cmd:"" help:"Create a new array from a schema file."`
	Write       WriteCmd       `cmd:"" help:"Write a cell batch from a JSON file into an array."`
	Read        ReadCmd        `cmd:"" help:"Read a subarray and print cells as JSON."`
	Consolidate ConsolidateCmd `cmd:"" help:"Merge an array's fragments into one."`
	Show        ShowCmd        `cmd:"" help:"Print an array's schema and fragment summary."`
	Ls          LsCmd          `cmd:"" help:"List an array's visible fragments."`
}

func main() {
	logger := log.New(os.Stderr, "", log.Ldate|log.Ltime)
	g := &Globals{ctx: &array.Context{Logger: logger}}

	kctx := kong.Parse(&cli,
		kong.Name("tdb"),
		kong.Description("Multi-dimensional array storage engine CLI."),
		kong.UsageOnError(),
	)
	err := kctx.Run(g, context.Background())
	kctx.FatalIfErrorf(err)
}
