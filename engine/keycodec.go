package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/kerinin/hmsearch/dberrors"
	"github.com/kerinin/hmsearch/fingerprint"
)

// The durable backend stores variant keys content-encoded: substitution
// keys as (partition_index, zero_or_one_tag, window_bits),
// deletion keys as (partition_index, variant_bits, deleted_index). Both
// collapse onto one layout here: uvarint partition, one tag byte, uvarint
// deleted index (zero for substitution), uvarint window width, then the
// window's live words little-endian.

// EncodeVariantKey content-encodes k for the on-disk variant store.
func EncodeVariantKey(k VariantKey) []byte {
	words := (k.Window.Width + 63) / 64
	if words == 0 {
		words = 1
	}
	buf := make([]byte, 0, 3*binary.MaxVarintLen64+1+words*8)
	buf = binary.AppendUvarint(buf, uint64(k.Partition))
	buf = append(buf, byte(k.Tag))
	buf = binary.AppendUvarint(buf, uint64(k.Index))
	buf = binary.AppendUvarint(buf, uint64(k.Window.Width))
	for i := 0; i < words; i++ {
		buf = binary.LittleEndian.AppendUint64(buf, k.Window.Words[i])
	}
	return buf
}

// DecodeVariantKey inverts EncodeVariantKey.
func DecodeVariantKey(buf []byte) (VariantKey, error) {
	var k VariantKey
	rest := buf

	part, n := binary.Uvarint(rest)
	if n <= 0 {
		return k, badVariantKey(buf)
	}
	rest = rest[n:]
	k.Partition = int(part)

	if len(rest) < 1 {
		return k, badVariantKey(buf)
	}
	k.Tag = Tag(rest[0])
	rest = rest[1:]

	idx, n := binary.Uvarint(rest)
	if n <= 0 {
		return k, badVariantKey(buf)
	}
	rest = rest[n:]
	k.Index = int(idx)

	width, n := binary.Uvarint(rest)
	if n <= 0 {
		return k, badVariantKey(buf)
	}
	rest = rest[n:]

	var w fingerprint.BitWindow
	w.Width = int(width)
	words := (w.Width + 63) / 64
	if words == 0 {
		words = 1
	}
	if words > len(w.Words) {
		return k, badVariantKey(buf)
	}
	if len(rest) != words*8 {
		return k, badVariantKey(buf)
	}
	for i := 0; i < words; i++ {
		w.Words[i] = binary.LittleEndian.Uint64(rest[i*8 : i*8+8])
	}
	k.Window = w
	return k, nil
}

func badVariantKey(buf []byte) error {
	return dberrors.Storage("engine.DecodeVariantKey", fmt.Errorf("malformed variant key (%d bytes)", len(buf)))
}
