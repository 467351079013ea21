package fingerprint

import (
	"github.com/cespare/xxhash/v2"
	"github.com/kerinin/hmsearch/dberrors"
)

// VectorShape implements Shape for variable-length fingerprints whose
// dimensions are whole elements rather than bits (e.g. raw MinHash
// signatures, or any general byte string). The fingerprint travels as a Go
// string — its little-endian, element-wise wire encoding — because strings
// are comparable and so can key the accumulator's candidate map the same
// way integer fingerprints do. ElemSize is the
// byte width of one element: 1 for byte vectors, 8 for word vectors.
//
// "Dimension" here means one element, not one bit: windows are element-wise
// sub-slices, never bit-packed.
//
// Substitution is not defined for this shape: the alphabet per dimension
// (256 or 2^64 element values) is too large to enumerate as
// single-substitution variants, so vector-shaped fingerprints always run
// on the deletion engine.
type VectorShape struct {
	Dims     int
	ElemSize int
}

// ByteVector is the shape of Dims-element byte-string fingerprints.
func ByteVector(dims int) VectorShape { return VectorShape{Dims: dims, ElemSize: 1} }

// WordVector is the shape of Dims-element vectors of 64-bit words, encoded
// little-endian word by word.
func WordVector(dims int) VectorShape { return VectorShape{Dims: dims, ElemSize: 8} }

func (s VectorShape) Dimensions() int { return s.Dims }

// elem returns element i of v as its raw ElemSize-byte encoding.
func (s VectorShape) elem(v string, i int) string {
	return v[i*s.ElemSize : (i+1)*s.ElemSize]
}

func (s VectorShape) Hamming(a, b string) int {
	n := 0
	for i := 0; i < s.Dims; i++ {
		if s.elem(a, i) != s.elem(b, i) {
			n++
		}
	}
	return n
}

func (s VectorShape) HammingLTE(a, b string, bound int) bool {
	n := 0
	for i := 0; i < s.Dims; i++ {
		if s.elem(a, i) != s.elem(b, i) {
			n++
			if n > bound {
				return false
			}
		}
	}
	return true
}

// Window returns the sub-slice [start, start+width) verbatim; no bit
// packing takes place.
func (s VectorShape) Window(v string, start, width int) string {
	if start < 0 || width < 0 || start+width > s.Dims {
		panic(dimensionOutOfRange(start, width, s.Dims))
	}
	return v[start*s.ElemSize : (start+width)*s.ElemSize]
}

func (VectorShape) SupportsSubstitution() bool { return false }

// DeletionVariants enumerates one (surrogate key, deleted index) pair per
// element of the window, using a running-XOR hash rather than materializing
// each variant: each element's per-position hash is folded into a single
// 64-bit surrogate via XOR, so no O(width) allocation is needed per
// variant. "Deleting" position i replaces its contribution with a fixed
// deletion-tag contribution at that position — the analogue of the
// bit-shape forced-to-1 tag. The exact Hamming re-check in the result
// accumulator absorbs the rare surrogate collision, exactly as it does for
// the content-hash surrogate IDs used by large fingerprints.
func (s VectorShape) DeletionVariants(w string) []DeletionVariant {
	width := len(w) / s.ElemSize
	var base uint64
	for i := 0; i < width; i++ {
		base ^= positionHash(i, s.elem(w, i))
	}
	out := make([]DeletionVariant, width)
	for i := 0; i < width; i++ {
		h := base ^ positionHash(i, s.elem(w, i)) ^ deletionTagHash(i)
		var win BitWindow
		win.Width = wordBits
		win.Words[0] = h
		out[i] = DeletionVariant{Window: win, Index: i}
	}
	return out
}

// positionHash mixes a dimension index into the element's hash so that the
// same element value at two different positions contributes different
// surrogate bits (otherwise every constant window would collapse to a
// single key regardless of position).
func positionHash(pos int, elem string) uint64 {
	var d xxhash.Digest
	d.Reset()
	var buf [8]byte
	putPos(buf[:], pos)
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(elem)
	return d.Sum64()
}

// deletionTagHash is positionHash for the deletion marker at pos. For
// byte vectors the marker coincides with a real 0xFF element at that
// position, the same marker-value overlap the bit shapes have with their
// forced-to-1 tag; the exact Hamming filter absorbs it.
func deletionTagHash(pos int) uint64 {
	var buf [9]byte
	putPos(buf[:8], pos)
	buf[8] = 0xFF
	return xxhash.Sum64(buf[:])
}

func putPos(buf []byte, pos int) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(pos >> (8 * i))
	}
}

func dimensionOutOfRange(start, width, dims int) error {
	return dberrors.ErrDimensionOutOfRange{Start: start, Width: width, Dimensions: dims}
}
