package codec

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/tdbstore/tdbstore/status"
)

// gzipCodec is the deflate/gzip compressor, default level 6.
type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) Compress(level int, src []byte) ([]byte, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var b bytes.Buffer
	w, err := gzip.NewWriterLevel(&b, level)
	if err != nil {
		return nil, status.Wrap(status.EncodeError, err, "gzip writer")
	}
	if _, err := w.Write(src); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "gzip close")
	}
	return b.Bytes(), nil
}

func (gzipCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "gzip reader")
	}
	defer r.Close()
	out := make([]byte, outLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, status.Wrap(status.DecodeError, err, "gzip read")
	}
	if n != outLen {
		return nil, decodeSizeMismatch("gzip", n, outLen)
	}
	return out, nil
}
