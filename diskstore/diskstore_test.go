package diskstore_test

import (
	"path/filepath"
	"testing"

	"github.com/kerinin/hmsearch/diskstore"
	"github.com/stretchr/testify/require"
)

func stringIDMapCodec() diskstore.IDMapCodec[string, string] {
	return diskstore.IDMapCodec[string, string]{
		EncodeID:    func(id string) []byte { return []byte(id) },
		EncodeValue: func(v string) []byte { return []byte(v) },
		DecodeValue: func(b []byte) (string, error) { return string(b), nil },
	}
}

func stringMapSetCodec() diskstore.MapSetCodec[string, string] {
	return diskstore.MapSetCodec[string, string]{
		EncodeKey: func(k string) []byte { return []byte(k) },
		DecodeKey: func(b []byte) (string, error) { return string(b), nil },
		EncodeID:  func(id string) []byte { return []byte(id) },
		DecodeID:  func(b []byte) (string, error) { return string(b), nil },
	}
}

func decodeStringID(b []byte) (string, error) { return string(b), nil }

func TestIDMapRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "value_store")
	m, err := diskstore.OpenIDMap(dir, stringIDMapCodec(), decodeStringID)
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.Get("a")
	require.False(t, ok)

	m.Insert("a", "alpha")
	m.Insert("b", "beta")

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, "alpha", v)

	m.Remove("a")
	_, ok = m.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())
}

func TestIDMapSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "value_store")

	m, err := diskstore.OpenIDMap(dir, stringIDMapCodec(), decodeStringID)
	require.NoError(t, err)
	m.Insert("a", "alpha")
	m.Insert("b", "beta")
	m.Insert("a", "alpha-2") // overwrite keeps newest
	m.Remove("b")
	require.NoError(t, m.Close())

	m, err = diskstore.OpenIDMap(dir, stringIDMapCodec(), decodeStringID)
	require.NoError(t, err)
	defer m.Close()

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, "alpha-2", v)

	_, ok = m.Get("b")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())
}

func TestMapSetInsertGetRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "variant_store")
	s, err := diskstore.OpenMapSet(dir, stringMapSetCodec())
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Insert("k", "1"))
	require.False(t, s.Insert("k", "1"), "second insert of same id must report false")
	require.True(t, s.Insert("k", "2"))

	ids, ok := s.Get("k")
	require.True(t, ok)
	require.ElementsMatch(t, []string{"1", "2"}, ids)

	_, ok = s.Get("never-written")
	require.False(t, ok)

	require.True(t, s.Remove("k", "1"))
	require.False(t, s.Remove("k", "1"))
	require.True(t, s.Remove("k", "2"))

	_, ok = s.Get("k")
	require.False(t, ok, "bucket must be removed once empty")
	require.Equal(t, 0, s.Len())
}

func TestMapSetSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "variant_store")

	s, err := diskstore.OpenMapSet(dir, stringMapSetCodec())
	require.NoError(t, err)
	require.True(t, s.Insert("k", "1"))
	require.True(t, s.Insert("k", "2"))
	require.True(t, s.Insert("other", "9"))
	require.True(t, s.Remove("k", "2"))
	require.NoError(t, s.Close())

	s, err = diskstore.OpenMapSet(dir, stringMapSetCodec())
	require.NoError(t, err)
	defer s.Close()

	ids, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, []string{"1"}, ids)

	ids, ok = s.Get("other")
	require.True(t, ok)
	require.Equal(t, []string{"9"}, ids)
	require.Equal(t, 2, s.Len())
}

func TestFlushMakesRecordsVisibleWithoutClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "variant_store")

	s, err := diskstore.OpenMapSet(dir, stringMapSetCodec())
	require.NoError(t, err)
	require.True(t, s.Insert("k", "1"))
	require.NoError(t, s.Flush())

	// A second handle replaying the same log sees the flushed record.
	s2, err := diskstore.OpenMapSet(dir, stringMapSetCodec())
	require.NoError(t, err)
	ids, ok := s2.Get("k")
	require.True(t, ok)
	require.Equal(t, []string{"1"}, ids)
	require.NoError(t, s2.Close())
	require.NoError(t, s.Close())
}
