package fingerprint

import (
	"encoding/binary"
	"fmt"

	"github.com/kerinin/hmsearch/dberrors"
)

// The wire encoding of every fingerprint shape is little-endian for
// integer shapes and element-wise in declared order for vector shapes.
// These helpers are the single place that byte order is decided; the
// factory and the HTTP boundary both go through them.

// EncodeUint64 little-endian encodes x.
func EncodeUint64(x uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, x)
	return buf
}

// EncodeUint32 little-endian encodes x.
func EncodeUint32(x uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, x)
	return buf
}

// EncodeUint16 little-endian encodes x.
func EncodeUint16(x uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, x)
	return buf
}

// EncodeUint8 encodes x as a single byte.
func EncodeUint8(x uint8) []byte {
	return []byte{x}
}

// EncodeArray2 little-endian encodes a 128-bit fingerprint word-by-word.
func EncodeArray2(v [2]uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], v[0])
	binary.LittleEndian.PutUint64(buf[8:16], v[1])
	return buf
}

// EncodeArray4 little-endian encodes a 256-bit fingerprint word-by-word.
func EncodeArray4(v [4]uint64) []byte {
	buf := make([]byte, 32)
	for i, w := range v {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], w)
	}
	return buf
}

// EncodeWords little-endian encodes a variable-length word vector,
// element-wise in declared order.
func EncodeWords(v []uint64) []byte {
	buf := make([]byte, len(v)*8)
	for i, w := range v {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], w)
	}
	return buf
}

func wrongLength(want, got int) error {
	return dberrors.Encoding("fingerprint.Decode", fmt.Errorf("expected %d bytes, got %d", want, got))
}

// DecodeUint8 decodes a single-byte fingerprint.
func DecodeUint8(b []byte) (uint8, error) {
	if len(b) != 1 {
		return 0, wrongLength(1, len(b))
	}
	return b[0], nil
}

// DecodeUint16 decodes a little-endian 16-bit fingerprint.
func DecodeUint16(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, wrongLength(2, len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// DecodeUint32 decodes a little-endian 32-bit fingerprint.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, wrongLength(4, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// DecodeUint64 decodes a little-endian 64-bit fingerprint.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, wrongLength(8, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// DecodeArray2 decodes a little-endian 128-bit fingerprint word-by-word.
func DecodeArray2(b []byte) ([2]uint64, error) {
	var v [2]uint64
	if len(b) != 16 {
		return v, wrongLength(16, len(b))
	}
	v[0] = binary.LittleEndian.Uint64(b[0:8])
	v[1] = binary.LittleEndian.Uint64(b[8:16])
	return v, nil
}

// DecodeArray4 decodes a little-endian 256-bit fingerprint word-by-word.
func DecodeArray4(b []byte) ([4]uint64, error) {
	var v [4]uint64
	if len(b) != 32 {
		return v, wrongLength(32, len(b))
	}
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return v, nil
}
