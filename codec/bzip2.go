package codec

import (
	stdbzip2 "compress/bzip2"
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/tdbstore/tdbstore/status"
)

// bzip2Codec compresses with dsnet/compress/bzip2 (the standard library's
// compress/bzip2 is decode-only) and decompresses with the standard
// library reader, which is the pairing distr1-distri and the pack's other
// bzip2 users rely on.
type bzip2Codec struct{}

func (bzip2Codec) Name() string { return "bzip2" }

func (bzip2Codec) Compress(level int, src []byte) ([]byte, error) {
	if level <= 0 {
		level = bzip2.DefaultCompression
	}
	var b bytes.Buffer
	w, err := bzip2.NewWriterLevel(&b, level)
	if err != nil {
		return nil, status.Wrap(status.EncodeError, err, "bzip2 writer")
	}
	if _, err := w.Write(src); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "bzip2 write")
	}
	if err := w.Close(); err != nil {
		return nil, status.Wrap(status.EncodeError, err, "bzip2 close")
	}
	return b.Bytes(), nil
}

func (bzip2Codec) Decompress(src []byte, outLen int) ([]byte, error) {
	r := stdbzip2.NewReader(bytes.NewReader(src))
	out := make([]byte, outLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, status.Wrap(status.DecodeError, err, "bzip2 read")
	}
	if n != outLen {
		return nil, decodeSizeMismatch("bzip2", n, outLen)
	}
	return out, nil
}
