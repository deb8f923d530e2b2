// Package codec implements the tile compression pipeline:
// a closed set of compressors/decompressors operating on whole tile
// buffers, plus exported coordinate-specific RLE and double-delta
// helpers. The fragment write path does not call those helpers: it
// stores sparse coordinate tiles uncompressed.
package codec

import (
	"fmt"
	"sort"

	"github.com/tdbstore/tdbstore/status"
)

// Codec compresses and decompresses whole tile buffers. Implementations
// must be strictly lossless and deterministic.
type Codec interface {
	Name() string
	// Compress returns the compressed form of src at the given level
	// (algorithm-specific meaning; 0 means "default").
	Compress(level int, src []byte) ([]byte, error)
	// Decompress fills exactly outLen bytes decoded from src, or fails.
	Decompress(src []byte, outLen int) ([]byte, error)
}

var registry = map[string]Codec{}

func register(c Codec) {
	registry[c.Name()] = c
}

// Get looks up a registered codec by name (schema.Compressor.Name).
func Get(name string) (Codec, error) {
	if name == "" {
		name = "none"
	}
	c, ok := registry[name]
	if !ok {
		return nil, status.New(status.InvalidArg, "unknown compressor %q", name)
	}
	return c, nil
}

// Names lists every registered codec, stable order, for CLI help/tests.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func decodeSizeMismatch(name string, got, want int) error {
	return status.New(status.DecodeError, "%s: decompressed %d bytes, expected %d", name, got, want)
}

func init() {
	register(noneCodec{})
	register(gzipCodec{})
	register(zstdCodec{})
	register(lz4ClassCodec{})
	register(brotliCodec{})
	register(bzip2Codec{})
	register(xzCodec{})
	register(rleCodec{})
	register(doubleDeltaCodec{})
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
