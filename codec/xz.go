package codec

import (
	"bytes"
	"io"

	"github.com/tdbstore/tdbstore/status"
	"github.com/ulikunitz/xz"
)

// xzCodec is an extra registry codec, selectable by name like the others
// (the bookkeeping file is always gzip-framed and does not use it),
// sourced from the same xz package KarpelesLab-squashfs and
// distr1-distri both depend on.
type xzCodec struct{}

func (xzCodec) Name() string { return "xz" }

func (xzCodec) Compress(level int, src []byte) ([]byte, error) {
	var b bytes.Buffer
	w, err := xz.NewWriter(&b)
	if err != nil {
		return nil, status.Wrap(status.EncodeError, err, "xz writer")
	}
	if _, err := w.Write(src); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "xz write")
	}
	if err := w.Close(); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "xz close")
	}
	return b.Bytes(), nil
}

func (xzCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "xz reader")
	}
	out := make([]byte, outLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, status.Wrap(status.DecodeError, err, "xz read")
	}
	if n != outLen {
		return nil, decodeSizeMismatch("xz", n, outLen)
	}
	return out, nil
}
