package codec

import (
	"github.com/klauspost/compress/s2"
	"github.com/tdbstore/tdbstore/status"
)

// lz4ClassCodec implements the "lz4" compressor name. No standalone LZ4
// block codec is available, so klauspost's s2 (Snappy-compatible,
// LZ4-class fast byte-oriented compressor) is used instead, same family
// of speed/ratio trade-off as LZ4 and from the same dependency already
// pulled in for zstd (see DESIGN.md).
type lz4ClassCodec struct{}

func (lz4ClassCodec) Name() string { return "lz4" }

func (lz4ClassCodec) Compress(level int, src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (lz4ClassCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "s2 decode")
	}
	if len(out) != outLen {
		return nil, decodeSizeMismatch("lz4", len(out), outLen)
	}
	return out, nil
}
