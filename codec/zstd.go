package codec

import (
	"github.com/klauspost/compress/zstd"
	"github.com/tdbstore/tdbstore/status"
)

// zstdCodec wraps klauspost/compress/zstd, the Zstandard implementation
// already used for compression elsewhere in the retrieval pack
// (brawer-wikidata-qrank, distr1-distri both vendor klauspost/compress).
type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(level int, src []byte) ([]byte, error) {
	elevel := zstd.SpeedDefault
	switch {
	case level == 0:
		// 0 keeps the default level.
	case level <= 1:
		elevel = zstd.SpeedFastest
	case level >= 9:
		elevel = zstd.SpeedBestCompression
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(elevel))
	if err != nil {
		return nil, status.Wrap(status.EncodeError, err, "zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(src, nil), nil
}

func (zstdCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, make([]byte, 0, outLen))
	if err != nil {
		return nil, status.Wrap(status.DecodeError, err, "zstd decode")
	}
	if len(out) != outLen {
		return nil, decodeSizeMismatch("zstd", len(out), outLen)
	}
	return out, nil
}
