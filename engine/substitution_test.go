package engine_test

import (
	"testing"

	"github.com/kerinin/hmsearch/dbstore"
	"github.com/kerinin/hmsearch/engine"
	"github.com/kerinin/hmsearch/fingerprint"
	"github.com/stretchr/testify/require"
)

func newSubstitutionU8(t *testing.T, tolerance int) *engine.Substitution[uint8, uint8] {
	t.Helper()
	db, err := engine.NewSubstitution[uint8, uint8](
		8, tolerance,
		fingerprint.IntegerShape[uint8]{},
		fingerprint.IdentityID[uint8],
		dbstore.NewIdentityIDMap[uint8](),
		dbstore.NewHashMapSet[engine.VariantKey, uint8](),
	)
	require.NoError(t, err)
	require.NoError(t, db.Open())
	return db
}

func TestSubstitutionExactMatch(t *testing.T) {
	db := newSubstitutionU8(t, 2)

	added, err := db.Insert(0b11111111)
	require.NoError(t, err)
	require.True(t, added)

	got, found, err := db.Get(0b11111111)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []uint8{0b11111111}, got)
}

func TestSubstitutionWithinTolerance(t *testing.T) {
	db := newSubstitutionU8(t, 2)

	_, err := db.Insert(0b00001111)
	require.NoError(t, err)

	got, found, err := db.Get(0b00000111)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []uint8{0b00001111}, got)
}

func TestSubstitutionMultipleMatches(t *testing.T) {
	db := newSubstitutionU8(t, 4)

	values := []uint8{0b10000000, 0b10000001, 0b11000001, 0b11000011}
	for _, v := range values {
		_, err := db.Insert(v)
		require.NoError(t, err)
	}

	got, found, err := db.Get(0b00000000)
	require.NoError(t, err)
	require.True(t, found)
	require.ElementsMatch(t, values, got)
}

func TestSubstitutionToleranceBoundary(t *testing.T) {
	db := newSubstitutionU8(t, 3)

	_, err := db.Insert(0b11111111)
	require.NoError(t, err)

	// hamming = 3: inside tolerance
	got, found, err := db.Get(0b00011111)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []uint8{0b11111111}, got)

	// hamming = 4: outside tolerance
	_, found, err = db.Get(0b00001111)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSubstitutionRemove(t *testing.T) {
	db := newSubstitutionU8(t, 2)

	_, err := db.Insert(0b00001111)
	require.NoError(t, err)

	removed, err := db.Remove(0b00001111)
	require.NoError(t, err)
	require.True(t, removed)

	_, found, err := db.Get(0b00001111)
	require.NoError(t, err)
	require.False(t, found)

	removed, err = db.Remove(0b00001111)
	require.NoError(t, err)
	require.False(t, removed, "second remove must report the value absent")
}

func TestSubstitutionIdempotentInsert(t *testing.T) {
	db := newSubstitutionU8(t, 2)

	added, err := db.Insert(0b10101010)
	require.NoError(t, err)
	require.True(t, added)

	added, err = db.Insert(0b10101010)
	require.NoError(t, err)
	require.False(t, added, "second insert of same value must report false")

	// One logical copy: remove once, and it is gone.
	removed, err := db.Remove(0b10101010)
	require.NoError(t, err)
	require.True(t, removed)
	_, found, err := db.Get(0b10101010)
	require.NoError(t, err)
	require.False(t, found)
}

// Completeness and soundness, exhaustively over the whole 8-bit space:
// every value within tolerance is found and nothing else is.
func TestSubstitutionCompleteAndSoundExhaustive(t *testing.T) {
	shape := fingerprint.IntegerShape[uint8]{}
	for _, tolerance := range []int{0, 1, 2, 3, 4} {
		db := newSubstitutionU8(t, tolerance)

		indexed := []uint8{0b00000000, 0b00001111, 0b10101010, 0b11111111, 0b01100110}
		for _, v := range indexed {
			_, err := db.Insert(v)
			require.NoError(t, err)
		}

		for q := 0; q < 256; q++ {
			query := uint8(q)
			var want []uint8
			for _, v := range indexed {
				if shape.Hamming(query, v) <= tolerance {
					want = append(want, v)
				}
			}

			got, found, err := db.Get(query)
			require.NoError(t, err)
			if len(want) == 0 {
				require.False(t, found, "tolerance=%d q=%08b", tolerance, q)
			} else {
				require.True(t, found, "tolerance=%d q=%08b", tolerance, q)
				require.ElementsMatch(t, want, got, "tolerance=%d q=%08b", tolerance, q)
			}
		}
	}
}

func TestOperationsRequireOpen(t *testing.T) {
	db, err := engine.NewSubstitution[uint8, uint8](
		8, 2,
		fingerprint.IntegerShape[uint8]{},
		fingerprint.IdentityID[uint8],
		dbstore.NewIdentityIDMap[uint8](),
		dbstore.NewHashMapSet[engine.VariantKey, uint8](),
	)
	require.NoError(t, err)

	_, insErr := db.Insert(1)
	require.Error(t, insErr)

	require.NoError(t, db.Open())
	_, insErr = db.Insert(1)
	require.NoError(t, insErr)

	require.NoError(t, db.Close())
	_, insErr = db.Insert(2)
	require.Error(t, insErr)

	// Close is idempotent.
	require.NoError(t, db.Close())
}
