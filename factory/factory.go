// Package factory selects and assembles the concrete value, window,
// variant and store types for one index from its runtime parameters. The
// supported combinations are a closed enumeration: each is statically
// instantiated with type-precise inner loops and hidden behind the
// byte-oriented DB interface the boundary layers consume.
package factory

import (
	"fmt"
	"path/filepath"

	"github.com/kerinin/hmsearch/dberrors"
	"github.com/kerinin/hmsearch/dbstore"
	"github.com/kerinin/hmsearch/diskstore"
	"github.com/kerinin/hmsearch/engine"
	"github.com/kerinin/hmsearch/fingerprint"
	"github.com/kerinin/hmsearch/partition"
)

// Kind names a fingerprint shape family at the boundary.
type Kind string

const (
	// KindUint is a fixed-width integer fingerprint: 8/16/32/64 bits
	// stored as unsigned integers, 128/256 bits stored as fixed arrays of
	// 64-bit words.
	KindUint Kind = "uint"
	// KindVector is a variable-length vector fingerprint, one element per
	// dimension: byte elements (Bits=8) or 64-bit word elements (Bits=64).
	KindVector Kind = "vector"
)

// Spec is the full identity of one index. DataDir selects the backend:
// empty means in-memory stores, otherwise the durable stores live under
// DataDir.
type Spec struct {
	Kind       Kind
	Bits       int // fingerprint width for KindUint; element width for KindVector
	Dimensions int // element count; KindVector only
	Tolerance  int
	DataDir    string
}

// Name is the stable identity string for a spec: directory name on disk
// and metrics label. It intentionally excludes DataDir.
func (s Spec) Name() string {
	if s.Kind == KindVector {
		return fmt.Sprintf("vector%dx%d-k%d", s.Bits, s.Dimensions, s.Tolerance)
	}
	return fmt.Sprintf("uint%d-k%d", s.Bits, s.Tolerance)
}

// dimensions is d: total bits for integer shapes, element count for
// vector shapes.
func (s Spec) dimensions() int {
	if s.Kind == KindVector {
		return s.Dimensions
	}
	return s.Bits
}

func (s Spec) validate() error {
	switch s.Kind {
	case KindUint:
		switch s.Bits {
		case 8, 16, 32, 64, 128, 256:
		default:
			return dberrors.Configuration("factory.New", fmt.Errorf("unsupported integer width %d", s.Bits))
		}
	case KindVector:
		if s.Bits != 8 && s.Bits != 64 {
			return dberrors.Configuration("factory.New", fmt.Errorf("unsupported vector element width %d", s.Bits))
		}
		if s.Dimensions <= 0 {
			return dberrors.Configuration("factory.New", fmt.Errorf("vector shape requires positive dimensions, got %d", s.Dimensions))
		}
	default:
		return dberrors.Configuration("factory.New", dberrors.ErrUnsupportedShape)
	}
	if s.Tolerance < 0 || s.Tolerance > s.dimensions() {
		return dberrors.Configuration("factory.New", dberrors.ErrIllegalTolerance{Dimensions: s.dimensions(), Tolerance: s.Tolerance})
	}
	return nil
}

// DB is the uniform, byte-oriented handle the boundary layers hold. All
// fingerprints cross it in their wire encoding: little-endian for integer
// shapes, element-wise in declared order for vector shapes.
type DB interface {
	// Insert indexes the fingerprint, reporting true on first insertion.
	Insert(fp []byte) (bool, error)
	// Get returns the wire encodings of every indexed fingerprint within
	// tolerance of fp, reporting ok=false when none match.
	Get(fp []byte) ([][]byte, bool, error)
	// Remove un-indexes the fingerprint, reporting true if it was present.
	Remove(fp []byte) (bool, error)
	// Close flushes and releases backend resources.
	Close() error

	Dimensions() int
	Tolerance() int
}

// New assembles, opens and returns the index described by spec.
func New(spec Spec) (DB, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	switch spec.Kind {
	case KindUint:
		switch spec.Bits {
		case 8:
			return newSmallUint(spec, fingerprint.IntegerShape[uint8]{}, fingerprint.DecodeUint8, fingerprint.EncodeUint8)
		case 16:
			return newSmallUint(spec, fingerprint.IntegerShape[uint16]{}, fingerprint.DecodeUint16, fingerprint.EncodeUint16)
		case 32:
			return newSmallUint(spec, fingerprint.IntegerShape[uint32]{}, fingerprint.DecodeUint32, fingerprint.EncodeUint32)
		case 64:
			return newSmallUint(spec, fingerprint.IntegerShape[uint64]{}, fingerprint.DecodeUint64, fingerprint.EncodeUint64)
		case 128:
			return newLargeUint[[2]uint64](spec, fingerprint.Array2Shape{}, fingerprint.DecodeArray2, fingerprint.EncodeArray2)
		default: // 256, validated above
			return newLargeUint[[4]uint64](spec, fingerprint.Array4Shape{}, fingerprint.DecodeArray4, fingerprint.EncodeArray4)
		}
	default: // KindVector, validated above
		return newVector(spec)
	}
}

// maxPartitionWidth is the widest window the plan for spec produces; it
// decides substitution versus deletion for bit shapes (substitution when
// every window fits a 64-bit word).
func maxPartitionWidth(spec Spec) (int, error) {
	parts, err := partition.Plan(spec.dimensions(), spec.Tolerance)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, p := range parts {
		if p.Width > max {
			max = p.Width
		}
	}
	return max, nil
}

// newSmallUint wires fingerprints of at most 64 bits: identity IDs (the
// value is its own identifier), substitution engine.
func newSmallUint[T fingerprint.Unsigned](
	spec Spec,
	shape fingerprint.IntegerShape[T],
	decode func([]byte) (T, error),
	encode func(T) []byte,
) (DB, error) {
	// The value is its own identifier, so the value store is the no-op
	// identity map regardless of backend: the durable state lives entirely
	// in the variant store.
	values := dbstore.NewIdentityIDMap[T]()
	variants, err := openVariantStore[T](spec, encode, decode)
	if err != nil {
		return nil, err
	}

	eng, err := engine.NewSubstitution[T, T](spec.dimensions(), spec.Tolerance, shape, fingerprint.IdentityID[T], values, variants)
	if err != nil {
		return nil, err
	}
	return openAdapter[T](spec, eng, decode, encode)
}

// newLargeUint wires 128- and 256-bit array fingerprints: 64-bit surrogate
// IDs derived from content, substitution engine while every window fits 64
// bits, deletion engine otherwise (low tolerances yield windows wider than
// the preferred window type).
func newLargeUint[T comparable](
	spec Spec,
	shape fingerprint.BitShape[T],
	decode func([]byte) (T, error),
	encode func(T) []byte,
) (DB, error) {
	toID := func(v T) uint64 { return fingerprint.SurrogateID(encode(v)) }

	values, variants, err := openSurrogateStores[T](spec,
		diskstore.IDMapCodec[uint64, T]{EncodeID: fingerprint.EncodeUint64, EncodeValue: encode, DecodeValue: decode})
	if err != nil {
		return nil, err
	}

	maxWidth, err := maxPartitionWidth(spec)
	if err != nil {
		return nil, err
	}

	var eng engine.DB[T]
	if maxWidth <= 64 {
		eng, err = engine.NewSubstitution[T, uint64](spec.dimensions(), spec.Tolerance, shape, toID, values, variants)
	} else {
		variantsOf := func(v T, start, width int) []fingerprint.DeletionVariant {
			return fingerprint.DeletionVariants(shape.Window(v, start, width))
		}
		eng, err = engine.NewDeletion[T, uint64](spec.dimensions(), spec.Tolerance, shape, variantsOf, toID, values, variants)
	}
	if err != nil {
		return nil, err
	}
	return openAdapter[T](spec, eng, decode, encode)
}

// newVector wires variable-length vector fingerprints: 64-bit surrogate
// IDs, deletion engine over rolling-hash variant surrogates.
func newVector(spec Spec) (DB, error) {
	var shape fingerprint.VectorShape
	if spec.Bits == 8 {
		shape = fingerprint.ByteVector(spec.Dimensions)
	} else {
		shape = fingerprint.WordVector(spec.Dimensions)
	}

	wireLen := spec.Dimensions * shape.ElemSize
	decode := func(b []byte) (string, error) {
		if len(b) != wireLen {
			return "", dberrors.Encoding("factory.decode", fmt.Errorf("expected %d bytes, got %d", wireLen, len(b)))
		}
		return string(b), nil
	}
	encode := func(v string) []byte { return []byte(v) }
	toID := func(v string) uint64 { return fingerprint.SurrogateID([]byte(v)) }

	values, variants, err := openSurrogateStores[string](spec,
		diskstore.IDMapCodec[uint64, string]{EncodeID: fingerprint.EncodeUint64, EncodeValue: encode, DecodeValue: decode})
	if err != nil {
		return nil, err
	}

	variantsOf := func(v string, start, width int) []fingerprint.DeletionVariant {
		return shape.DeletionVariants(shape.Window(v, start, width))
	}
	eng, err := engine.NewDeletion[string, uint64](spec.dimensions(), spec.Tolerance, shape, variantsOf, toID, values, variants)
	if err != nil {
		return nil, err
	}
	return openAdapter[string](spec, eng, decode, encode)
}

// openVariantStore builds just the variant store for identity-ID shapes:
// in-memory by default, durable under DataDir/<name>/variant_store when a
// data directory is configured.
func openVariantStore[ID comparable](
	spec Spec,
	encodeID func(ID) []byte,
	decodeID func([]byte) (ID, error),
) (dbstore.MapSet[engine.VariantKey, ID], error) {
	if spec.DataDir == "" {
		return dbstore.NewHashMapSet[engine.VariantKey, ID](), nil
	}
	return diskstore.OpenMapSet(filepath.Join(spec.DataDir, spec.Name(), "variant_store"), diskstore.MapSetCodec[engine.VariantKey, ID]{
		EncodeKey: engine.EncodeVariantKey,
		DecodeKey: engine.DecodeVariantKey,
		EncodeID:  encodeID,
		DecodeID:  decodeID,
	})
}

// openSurrogateStores builds the value and variant stores for shapes keyed
// by 64-bit content-hash surrogates: in-memory hash stores by default, the
// durable diskstore pair under DataDir/<name> otherwise.
func openSurrogateStores[T comparable](
	spec Spec,
	idCodec diskstore.IDMapCodec[uint64, T],
) (dbstore.IDMap[uint64, T], dbstore.MapSet[engine.VariantKey, uint64], error) {
	if spec.DataDir == "" {
		return dbstore.NewHashIDMap[uint64, T](), dbstore.NewHashMapSet[engine.VariantKey, uint64](), nil
	}

	root := filepath.Join(spec.DataDir, spec.Name())
	values, err := diskstore.OpenIDMap(filepath.Join(root, "value_store"), idCodec, fingerprint.DecodeUint64)
	if err != nil {
		return nil, nil, err
	}
	variants, err := diskstore.OpenMapSet(filepath.Join(root, "variant_store"), diskstore.MapSetCodec[engine.VariantKey, uint64]{
		EncodeKey: engine.EncodeVariantKey,
		DecodeKey: engine.DecodeVariantKey,
		EncodeID:  fingerprint.EncodeUint64,
		DecodeID:  fingerprint.DecodeUint64,
	})
	if err != nil {
		values.Close()
		return nil, nil, err
	}
	return values, variants, nil
}
