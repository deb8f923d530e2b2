package codec

// noneCodec is the identity compressor.
type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Compress(level int, src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (noneCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	if len(src) != outLen {
		return nil, decodeSizeMismatch("none", len(src), outLen)
	}
	out := make([]byte, outLen)
	copy(out, src)
	return out, nil
}
