package codec

import (
	"encoding/binary"

	"github.com/tdbstore/tdbstore/status"
)

// maxRun is the largest run length a single RLE pair can carry; longer
// runs are split across multiple pairs.
const maxRun = 65535

// RLEEncode run-length encodes a buffer of fixed-width elements: pairs of
// (value, run-length uint16 LE), generic mode.
func RLEEncode(elemSize int, data []byte) []byte {
	out := make([]byte, 0, len(data)/4+elemSize)
	n := len(data) / elemSize
	i := 0
	for i < n {
		val := data[i*elemSize : (i+1)*elemSize]
		run := 1
		for i+run < n && run < maxRun && bytesEqual(data[(i+run)*elemSize:(i+run+1)*elemSize], val) {
			run++
		}
		out = append(out, val...)
		var rl [2]byte
		binary.LittleEndian.PutUint16(rl[:], uint16(run))
		out = append(out, rl[:]...)
		i += run
	}
	return out
}

// RLEDecode reverses RLEEncode, producing exactly outLen bytes (outLen
// must be a multiple of elemSize).
func RLEDecode(elemSize int, data []byte, outLen int) ([]byte, error) {
	out := make([]byte, 0, outLen)
	pos := 0
	for pos < len(data) {
		if pos+elemSize+2 > len(data) {
			return nil, status.New(status.DecodeError, "rle: truncated pair")
		}
		val := data[pos : pos+elemSize]
		run := binary.LittleEndian.Uint16(data[pos+elemSize : pos+elemSize+2])
		for j := uint16(0); j < run; j++ {
			out = append(out, val...)
		}
		pos += elemSize + 2
	}
	if len(out) != outLen {
		return nil, decodeSizeMismatch("rle", len(out), outLen)
	}
	return out, nil
}

// rleCodec is the registry-visible Codec wrapping RLEEncode/RLEDecode at
// byte granularity (elemSize 1), for attributes whose compressor selects
// "rle". The dimension-aware coordinate variants below are separate
// exported helpers; the fragment write/read path does not call them.
type rleCodec struct{}

func (rleCodec) Name() string { return "rle" }

func (rleCodec) Compress(level int, src []byte) ([]byte, error) {
	return RLEEncode(1, src), nil
}

func (rleCodec) Decompress(src []byte, outLen int) ([]byte, error) {
	return RLEDecode(1, src, outLen)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RLEEncodeCoordsRowMajor implements the row-major coordinate RLE variant
//: the first d-1 dimensions are RLE-encoded independently
// column-by-column, the last dimension is stored verbatim, and the whole
// thing is prefixed with an int64 cell count.
func RLEEncodeCoordsRowMajor(dimCount int, cellCount int, coordsRowMajor []int64) []byte {
	return rleEncodeCoords(dimCount, cellCount, coordsRowMajor, dimCount-1)
}

// RLEEncodeCoordsColMajor is the mirror image: the first dimension is
// stored verbatim, the remaining d-1 are RLE-encoded.
func RLEEncodeCoordsColMajor(dimCount int, cellCount int, coordsRowMajor []int64) []byte {
	return rleEncodeCoordsVerbatimFirst(dimCount, cellCount, coordsRowMajor)
}

func rleEncodeCoords(dimCount, cellCount int, coords []int64, rleDims int) []byte {
	var out []byte
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(cellCount))
	out = append(out, hdr[:]...)
	// RLE-encode the first rleDims dimensions, column by column.
	for d := 0; d < rleDims; d++ {
		col := make([]byte, cellCount*8)
		for c := 0; c < cellCount; c++ {
			binary.LittleEndian.PutUint64(col[c*8:(c+1)*8], uint64(coords[c*dimCount+d]))
		}
		encoded := RLEEncode(8, col)
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(encoded)))
		out = append(out, lenBuf[:]...)
		out = append(out, encoded...)
	}
	// remaining dimensions verbatim
	for d := rleDims; d < dimCount; d++ {
		for c := 0; c < cellCount; c++ {
			var v [8]byte
			binary.LittleEndian.PutUint64(v[:], uint64(coords[c*dimCount+d]))
			out = append(out, v[:]...)
		}
	}
	return out
}

func rleEncodeCoordsVerbatimFirst(dimCount, cellCount int, coords []int64) []byte {
	var out []byte
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(cellCount))
	out = append(out, hdr[:]...)
	// dimension 0 verbatim
	for c := 0; c < cellCount; c++ {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], uint64(coords[c*dimCount+0]))
		out = append(out, v[:]...)
	}
	// remaining dimensions RLE-encoded
	for d := 1; d < dimCount; d++ {
		col := make([]byte, cellCount*8)
		for c := 0; c < cellCount; c++ {
			binary.LittleEndian.PutUint64(col[c*8:(c+1)*8], uint64(coords[c*dimCount+d]))
		}
		encoded := RLEEncode(8, col)
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(encoded)))
		out = append(out, lenBuf[:]...)
		out = append(out, encoded...)
	}
	return out
}

// RLEDecodeCoordsRowMajor reverses RLEEncodeCoordsRowMajor.
func RLEDecodeCoordsRowMajor(data []byte, dimCount int) ([]int64, int, error) {
	return rleDecodeCoords(data, dimCount, dimCount-1, false)
}

// RLEDecodeCoordsColMajor reverses RLEEncodeCoordsColMajor.
func RLEDecodeCoordsColMajor(data []byte, dimCount int) ([]int64, int, error) {
	return rleDecodeCoords(data, dimCount, dimCount-1, true)
}

func rleDecodeCoords(data []byte, dimCount, rleDims int, verbatimFirst bool) ([]int64, int, error) {
	if len(data) < 8 {
		return nil, 0, status.New(status.DecodeError, "rle-coords: truncated header")
	}
	cellCount := int(binary.LittleEndian.Uint64(data[0:8]))
	pos := 8
	out := make([]int64, cellCount*dimCount)

	readRLECol := func(d int) error {
		if pos+8 > len(data) {
			return status.New(status.DecodeError, "rle-coords: truncated column length")
		}
		segLen := int(binary.LittleEndian.Uint64(data[pos : pos+8]))
		pos += 8
		if pos+segLen > len(data) {
			return status.New(status.DecodeError, "rle-coords: truncated column")
		}
		col, err := RLEDecode(8, data[pos:pos+segLen], cellCount*8)
		if err != nil {
			return err
		}
		pos += segLen
		for c := 0; c < cellCount; c++ {
			out[c*dimCount+d] = int64(binary.LittleEndian.Uint64(col[c*8 : (c+1)*8]))
		}
		return nil
	}

	readVerbatimCol := func(d int) error {
		if pos+cellCount*8 > len(data) {
			return status.New(status.DecodeError, "rle-coords: truncated verbatim column")
		}
		for c := 0; c < cellCount; c++ {
			out[c*dimCount+d] = int64(binary.LittleEndian.Uint64(data[pos+c*8 : pos+(c+1)*8]))
		}
		pos += cellCount * 8
		return nil
	}

	if verbatimFirst {
		if err := readVerbatimCol(0); err != nil {
			return nil, 0, err
		}
		for d := 1; d < dimCount; d++ {
			if err := readRLECol(d); err != nil {
				return nil, 0, err
			}
		}
	} else {
		for d := 0; d < rleDims; d++ {
			if err := readRLECol(d); err != nil {
				return nil, 0, err
			}
		}
		for d := rleDims; d < dimCount; d++ {
			if err := readVerbatimCol(d); err != nil {
				return nil, 0, err
			}
		}
	}
	return out, cellCount, nil
}
