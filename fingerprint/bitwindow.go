package fingerprint

import (
	"math/bits"

	"github.com/kerinin/hmsearch/dberrors"
)

// maxWindowBits is the widest window the engine ever needs to represent: a
// full 256-bit fingerprint extracted as a single partition (k=0 collapses
// to one partition spanning all of d, and the widest supported array shape
// is 256 bits).
const maxWindowBits = 256

const wordBits = 64
const wordCount = maxWindowBits / wordBits

// BitWindow is a fixed-capacity, right-aligned bit window: the value
// occupies its low `Width` bits across Words[0] (least significant) through
// Words[3] (most significant). It is comparable, so it can be used directly
// as a map key for variant-store buckets.
//
// The same type doubles as the deletion variant key for byte/word vector
// shapes: there Width is fixed at 64 and Words[0] carries an opaque
// rolling-hash surrogate rather than a true bit pattern (see DESIGN.md,
// the running-XOR surrogate in the `fingerprint` section).
type BitWindow struct {
	Words [wordCount]uint64
	Width int
}

// bitAt returns bit i (0 = least significant) of a little-endian word
// array, where word j holds bits [64j, 64j+64).
func bitAt(words []uint64, i int) uint64 {
	return (words[i/wordBits] >> uint(i%wordBits)) & 1
}

// WindowFromBits extracts `width` contiguous bits starting at bit `start`
// (0 = least significant) from a little-endian word array representing a
// `dims`-bit fingerprint, right-aligning the result. Out-of-range arguments
// are precondition violations: it panics with
// dberrors.ErrDimensionOutOfRange/ErrWindowTooNarrow.
func WindowFromBits(words []uint64, start, width, dims int) BitWindow {
	if start < 0 || width < 0 || start+width > dims {
		panic(dberrors.ErrDimensionOutOfRange{Start: start, Width: width, Dimensions: dims})
	}
	if width > maxWindowBits {
		panic(dberrors.ErrWindowTooNarrow{Width: width, Capacity: maxWindowBits})
	}
	var w BitWindow
	w.Width = width
	for i := 0; i < width; i++ {
		if bitAt(words, start+i) == 1 {
			w.Words[i/wordBits] |= 1 << uint(i%wordBits)
		}
	}
	return w
}

// masked returns w's words with any bits at or above Width cleared, so
// equality/Hamming comparisons ignore garbage beyond the logical width.
func (w BitWindow) masked() [wordCount]uint64 {
	out := w.Words
	full := w.Width / wordBits
	rem := w.Width % wordBits
	for i := full; i < wordCount; i++ {
		if i == full && rem != 0 {
			out[i] &= (uint64(1) << uint(rem)) - 1
		} else if i > full || (i == full && rem == 0) {
			out[i] = 0
		}
	}
	return out
}

// Equal reports whether two windows hold the same bit pattern. Widths must
// match; this is a programming error otherwise (windows from the same
// partition always share a width).
func (w BitWindow) Equal(o BitWindow) bool {
	if w.Width != o.Width {
		return false
	}
	return w.masked() == o.masked()
}

// Hamming returns the number of bit positions where w and o differ, over
// the logical width of w.
func (w BitWindow) Hamming(o BitWindow) int {
	a, b := w.masked(), o.masked()
	n := 0
	for i := range a {
		n += bits.OnesCount64(a[i] ^ b[i])
	}
	return n
}

// WithBitFlipped returns a copy of w with bit i toggled. Used to enumerate
// substitution variants.
func (w BitWindow) WithBitFlipped(i int) BitWindow {
	c := w
	c.Words[i/wordBits] ^= 1 << uint(i%wordBits)
	return c
}

// WithBitSet returns a copy of w with bit i forced to 1. Used to enumerate
// deletion variants; set-to-1 is the canonical deletion tag from the
// HmSearch paper.
func (w BitWindow) WithBitSet(i int) BitWindow {
	c := w
	c.Words[i/wordBits] |= 1 << uint(i%wordBits)
	return c
}

// NullVariant is the window unchanged, used as the Zero-bucket key in
// substitution mode.
func NullVariant(w BitWindow) BitWindow {
	return w
}

// SubstitutionVariants returns the `w.Width` windows obtained by flipping
// exactly one bit of w, one per bit position.
func SubstitutionVariants(w BitWindow) []BitWindow {
	out := make([]BitWindow, w.Width)
	for i := 0; i < w.Width; i++ {
		out[i] = w.WithBitFlipped(i)
	}
	return out
}

// DeletionVariant pairs a deletion-variant key with the index of the bit
// treated as "deleted". The index travels alongside the forced-to-1 window:
// two variants whose windows coincide but whose deleted positions differ
// are distinct keys.
type DeletionVariant struct {
	Window BitWindow
	Index  int
}

// DeletionVariants returns the `w.Width` (variant, index) pairs obtained by
// forcing exactly one bit of w to 1, one per bit position.
func DeletionVariants(w BitWindow) []DeletionVariant {
	out := make([]DeletionVariant, w.Width)
	for i := 0; i < w.Width; i++ {
		out[i] = DeletionVariant{Window: w.WithBitSet(i), Index: i}
	}
	return out
}
