package engine

import (
	"github.com/kerinin/hmsearch/accumulator"
	"github.com/kerinin/hmsearch/dbstore"
	"github.com/kerinin/hmsearch/fingerprint"
)

// DeletionVariantsFunc enumerates the 1-deletion variant keys of the window
// of v at [start, start+width). Each fingerprint shape supplies its own:
// bit shapes enumerate forced-to-1 windows, vector shapes enumerate
// rolling-hash surrogates. It is a constructor argument
// rather than a Shape method because only deletion-capable call sites need
// it, and the two shape families produce it from different native window
// types.
type DeletionVariantsFunc[T any] func(v T, start, width int) []fingerprint.DeletionVariant

// Deletion is the HmSearch engine variant that keys each partition's
// variant store by 1-deletion variants of the window. It has lower
// write-time fan-out than Substitution for the same window width, at the
// cost of a counting pass per query.
type Deletion[T comparable, ID comparable] struct {
	*base[T, ID]
	variantsOf DeletionVariantsFunc[T]
}

// NewDeletion constructs a deletion-engine DB in the Fresh state. Open must
// be called before any operation.
func NewDeletion[T comparable, ID comparable](
	dimensions, tolerance int,
	shape fingerprint.Shape[T],
	variantsOf DeletionVariantsFunc[T],
	toID func(T) ID,
	values dbstore.IDMap[ID, T],
	variants dbstore.MapSet[VariantKey, ID],
) (*Deletion[T, ID], error) {
	b, err := newBase(dimensions, tolerance, shape, toID, values, variants, "deletion")
	if err != nil {
		return nil, err
	}
	return &Deletion[T, ID]{base: b, variantsOf: variantsOf}, nil
}

// Insert writes every 1-deletion-variant key for each partition. Unlike
// Substitution there is no Zero/One distinction at the store level. It
// reports true if any variant key was newly created for id.
func (d *Deletion[T, ID]) Insert(v T) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireOpenLocked(); err != nil {
		return false, err
	}

	id := d.toID(v)
	d.values.Insert(id, v)

	firstInsertion := false
	for i, part := range d.partitions {
		for _, dv := range d.variantsOf(v, part.Start, part.Width) {
			key := VariantKey{Partition: i, Tag: TagNone, Index: dv.Index, Window: dv.Window}
			if d.variants.Insert(key, id) {
				firstInsertion = true
			}
		}
	}
	return firstInsertion, nil
}

// Get aggregates candidates per partition: a local per-ID counter is built
// from every deletion variant's bucket, then folded into the shared
// accumulator. The count>2 threshold for a zero-class match is what the
// enlarged forced-bit equivalence class requires — an exact window match
// hits all of the window's variant buckets, a one-substitution neighbor
// only the bucket whose deleted position covers the difference.
func (d *Deletion[T, ID]) Get(q T) ([]T, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireOpenLocked(); err != nil {
		return nil, false, err
	}

	acc := accumulator.New[T](d.tolerance, q, d.shape.Hamming)
	for i, part := range d.partitions {
		localCounts := make(map[ID]int)
		for _, dv := range d.variantsOf(q, part.Start, part.Width) {
			key := VariantKey{Partition: i, Tag: TagNone, Index: dv.Index, Window: dv.Window}
			if ids, ok := d.variants.Get(key); ok {
				for _, id := range ids {
					localCounts[id]++
				}
			}
		}

		for id, count := range localCounts {
			val, ok := d.values.Get(id)
			if !ok {
				continue // value concurrently removed; skip the candidate
			}
			if count > 2 {
				acc.InsertZeroVariant(val)
			} else {
				acc.InsertOneVariant(val)
			}
		}
	}

	values, ok := acc.FoundValues()
	return values, ok, nil
}

// Remove deletes the same deletion-variant keys Insert wrote. It reports
// true if any key was present.
func (d *Deletion[T, ID]) Remove(v T) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireOpenLocked(); err != nil {
		return false, err
	}

	id := d.toID(v)
	removed := false
	for i, part := range d.partitions {
		for _, dv := range d.variantsOf(v, part.Start, part.Width) {
			key := VariantKey{Partition: i, Tag: TagNone, Index: dv.Index, Window: dv.Window}
			if d.variants.Remove(key, id) {
				removed = true
			}
		}
	}
	if removed {
		d.values.Remove(id)
	}
	return removed, nil
}
