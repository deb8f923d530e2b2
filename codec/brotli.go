package codec

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/tdbstore/tdbstore/status"
)

// brotliCodec stands in for the Blosc-with-sub-algorithm slot's
// high-ratio mode; brotli is the
// high-ratio general-purpose codec the pack carries (brawer-wikidata-qrank).
type brotliCodec struct{}

func (brotliCodec) Name() string { return "blosc-zlib" }

func (brotliCodec) Compress(level int, src []byte) ([]byte, error) {
	if level <= 0 {
		level = brotli.DefaultCompression
	}
	var b bytes.Buffer
	w := brotli.NewWriterLevel(&b, level)
	if _, err := w.Write(src); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "brotli write")
	}
	if err := w.Close(); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "brotli close")
	}
	return b.Bytes(), nil
}

func (brotliCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(src))
	out := make([]byte, outLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, status.Wrap(status.DecodeError, err, "brotli read")
	}
	if n != outLen {
		return nil, decodeSizeMismatch("blosc-zlib", n, outLen)
	}
	return out, nil
}
