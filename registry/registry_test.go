package registry_test

import (
	"testing"

	"github.com/kerinin/hmsearch/factory"
	"github.com/kerinin/hmsearch/registry"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameHandle(t *testing.T) {
	reg, err := registry.New("", 8)
	require.NoError(t, err)
	defer reg.CloseAll()

	key := registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 7, Namespace: "a"}

	_, ok := reg.Get(key)
	require.False(t, ok, "index must not exist before first use")

	db1, err := reg.GetOrCreate(key)
	require.NoError(t, err)
	db2, err := reg.GetOrCreate(key)
	require.NoError(t, err)
	require.Same(t, db1, db2)
	require.Equal(t, 1, reg.Len())
}

func TestDistinctKeysGetDistinctIndexes(t *testing.T) {
	reg, err := registry.New("", 8)
	require.NoError(t, err)
	defer reg.CloseAll()

	a, err := reg.GetOrCreate(registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 7, Namespace: "a"})
	require.NoError(t, err)
	b, err := reg.GetOrCreate(registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 3, Namespace: "a"})
	require.NoError(t, err)
	require.NotSame(t, a, b)
	require.Equal(t, 2, reg.Len())
}

func TestBadKeySurfacesConfigurationError(t *testing.T) {
	reg, err := registry.New("", 8)
	require.NoError(t, err)
	defer reg.CloseAll()

	_, err = reg.GetOrCreate(registry.Key{Kind: factory.KindUint, Bits: 13, Tolerance: 7, Namespace: "a"})
	require.Error(t, err)
	require.Equal(t, 0, reg.Len())
}

func TestEvictionClosesColdIndexes(t *testing.T) {
	reg, err := registry.New("", 2)
	require.NoError(t, err)
	defer reg.CloseAll()

	for _, ns := range []string{"a", "b", "c"} {
		_, err := reg.GetOrCreate(registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 7, Namespace: ns})
		require.NoError(t, err)
	}
	require.Equal(t, 2, reg.Len(), "registry must stay within its bound")

	// The evicted index transparently reopens on next use.
	db, err := reg.GetOrCreate(registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 7, Namespace: "a"})
	require.NoError(t, err)
	_, err = db.Insert([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
}

func TestDurableIndexesShareStateAcrossEviction(t *testing.T) {
	dataDir := t.TempDir()
	reg, err := registry.New(dataDir, 1)
	require.NoError(t, err)
	defer reg.CloseAll()

	keyA := registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 3, Namespace: "a"}
	keyB := registry.Key{Kind: factory.KindUint, Bits: 64, Tolerance: 3, Namespace: "b"}

	fp := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	dbA, err := reg.GetOrCreate(keyA)
	require.NoError(t, err)
	_, err = dbA.Insert(fp)
	require.NoError(t, err)

	// Creating b evicts and closes a.
	_, err = reg.GetOrCreate(keyB)
	require.NoError(t, err)

	// Reopening a finds the previously inserted fingerprint on disk.
	dbA, err = reg.GetOrCreate(keyA)
	require.NoError(t, err)
	matches, found, err := dbA.Get(fp)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{fp}, matches)
}
