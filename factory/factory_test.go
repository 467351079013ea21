package factory_test

import (
	"testing"

	"github.com/kerinin/hmsearch/factory"
	"github.com/kerinin/hmsearch/fingerprint"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpecs(t *testing.T) {
	cases := []factory.Spec{
		{Kind: "nope", Bits: 64, Tolerance: 2},
		{Kind: factory.KindUint, Bits: 12, Tolerance: 2},
		{Kind: factory.KindUint, Bits: 64, Tolerance: -1},
		{Kind: factory.KindUint, Bits: 8, Tolerance: 9},
		{Kind: factory.KindVector, Bits: 16, Dimensions: 8, Tolerance: 2},
		{Kind: factory.KindVector, Bits: 8, Dimensions: 0, Tolerance: 2},
	}
	for _, spec := range cases {
		_, err := factory.New(spec)
		require.Error(t, err, "spec %+v must be rejected", spec)
	}
}

func TestUintRoundTripAllWidths(t *testing.T) {
	cases := []struct {
		bits  int
		value []byte
		near  []byte // within tolerance 2
		far   []byte // beyond tolerance 2
	}{
		{8, []byte{0x0F}, []byte{0x07}, []byte{0xF0}},
		{16, fingerprint.EncodeUint16(0x00FF), fingerprint.EncodeUint16(0x01FF), fingerprint.EncodeUint16(0xFF00)},
		{32, fingerprint.EncodeUint32(0xDEADBEEF), fingerprint.EncodeUint32(0xDEADBEEE), fingerprint.EncodeUint32(0)},
		{64, fingerprint.EncodeUint64(0xDEADBEEFCAFEF00D), fingerprint.EncodeUint64(0xDEADBEEFCAFEF00C), fingerprint.EncodeUint64(0)},
		{128, fingerprint.EncodeArray2([2]uint64{1, 2}), fingerprint.EncodeArray2([2]uint64{3, 2}), fingerprint.EncodeArray2([2]uint64{^uint64(0), 2})},
		{256, fingerprint.EncodeArray4([4]uint64{1, 2, 3, 4}), fingerprint.EncodeArray4([4]uint64{0, 2, 3, 4}), fingerprint.EncodeArray4([4]uint64{^uint64(0), 2, 3, 4})},
	}

	for _, tc := range cases {
		db, err := factory.New(factory.Spec{Kind: factory.KindUint, Bits: tc.bits, Tolerance: 2})
		require.NoError(t, err, "bits=%d", tc.bits)

		added, err := db.Insert(tc.value)
		require.NoError(t, err, "bits=%d", tc.bits)
		require.True(t, added, "bits=%d", tc.bits)

		matches, found, err := db.Get(tc.near)
		require.NoError(t, err, "bits=%d", tc.bits)
		require.True(t, found, "bits=%d", tc.bits)
		require.Equal(t, [][]byte{tc.value}, matches, "bits=%d", tc.bits)

		_, found, err = db.Get(tc.far)
		require.NoError(t, err, "bits=%d", tc.bits)
		require.False(t, found, "bits=%d", tc.bits)

		removed, err := db.Remove(tc.value)
		require.NoError(t, err, "bits=%d", tc.bits)
		require.True(t, removed, "bits=%d", tc.bits)

		_, found, err = db.Get(tc.value)
		require.NoError(t, err, "bits=%d", tc.bits)
		require.False(t, found, "bits=%d", tc.bits)

		require.NoError(t, db.Close())
	}
}

func TestVectorRoundTrip(t *testing.T) {
	db, err := factory.New(factory.Spec{Kind: factory.KindVector, Bits: 8, Dimensions: 8, Tolerance: 2})
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, 8, db.Dimensions())
	require.Equal(t, 2, db.Tolerance())

	v := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	added, err := db.Insert(v)
	require.NoError(t, err)
	require.True(t, added)

	q := []byte{1, 2, 3, 40, 5, 6, 7, 80}
	matches, found, err := db.Get(q)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{v}, matches)
}

func TestVectorRejectsWrongLength(t *testing.T) {
	db, err := factory.New(factory.Spec{Kind: factory.KindVector, Bits: 8, Dimensions: 8, Tolerance: 2})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Insert([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestUintRejectsWrongLength(t *testing.T) {
	db, err := factory.New(factory.Spec{Kind: factory.KindUint, Bits: 64, Tolerance: 2})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Insert([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDurableBackendSurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()
	spec := factory.Spec{Kind: factory.KindUint, Bits: 64, Tolerance: 3, DataDir: dataDir}

	v := fingerprint.EncodeUint64(0xCAFEF00DDEADBEEF)

	db, err := factory.New(spec)
	require.NoError(t, err)
	added, err := db.Insert(v)
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, db.Close())

	db, err = factory.New(spec)
	require.NoError(t, err)
	defer db.Close()

	matches, found, err := db.Get(v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{v}, matches)

	// The reopened index still knows the value exists: re-inserting is
	// not a first insertion.
	added, err = db.Insert(v)
	require.NoError(t, err)
	require.False(t, added)
}

func TestDurableBackendSurrogateIDsSurviveReopen(t *testing.T) {
	dataDir := t.TempDir()
	spec := factory.Spec{Kind: factory.KindUint, Bits: 128, Tolerance: 4, DataDir: dataDir}

	v := fingerprint.EncodeArray2([2]uint64{0x1111, 0x2222})
	near := fingerprint.EncodeArray2([2]uint64{0x1110, 0x2222})

	db, err := factory.New(spec)
	require.NoError(t, err)
	_, err = db.Insert(v)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = factory.New(spec)
	require.NoError(t, err)
	defer db.Close()

	matches, found, err := db.Get(near)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{v}, matches)
}

func TestSpecName(t *testing.T) {
	require.Equal(t, "uint64-k7", factory.Spec{Kind: factory.KindUint, Bits: 64, Tolerance: 7}.Name())
	require.Equal(t, "vector8x16-k3", factory.Spec{Kind: factory.KindVector, Bits: 8, Dimensions: 16, Tolerance: 3}.Name())
}
