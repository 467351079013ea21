package engine

import (
	"github.com/kerinin/hmsearch/accumulator"
	"github.com/kerinin/hmsearch/dberrors"
	"github.com/kerinin/hmsearch/dbstore"
	"github.com/kerinin/hmsearch/fingerprint"
)

// Substitution is the HmSearch engine variant that keys each partition's
// variant store by every single-bit substitution of the window, trading
// O(d) insert-time space for O(p) query-time lookups.
type Substitution[T comparable, ID comparable] struct {
	*base[T, ID]
	window fingerprint.BitShape[T]
}

// NewSubstitution constructs a substitution-engine DB in the Fresh state.
// Open must be called before any operation.
func NewSubstitution[T comparable, ID comparable](
	dimensions, tolerance int,
	shape fingerprint.BitShape[T],
	toID func(T) ID,
	values dbstore.IDMap[ID, T],
	variants dbstore.MapSet[VariantKey, ID],
) (*Substitution[T, ID], error) {
	if !shape.SupportsSubstitution() {
		return nil, dberrors.Configuration("NewSubstitution", dberrors.ErrUnsupportedShape)
	}
	b, err := newBase[T, ID](dimensions, tolerance, shape, toID, values, variants, "substitution")
	if err != nil {
		return nil, err
	}
	return &Substitution[T, ID]{base: b, window: shape}, nil
}

// Insert writes the Zero null-variant key and every One substitution-variant
// key for each partition. It reports true if this is the first insertion of
// v (the Zero key was newly created in any partition).
func (s *Substitution[T, ID]) Insert(v T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpenLocked(); err != nil {
		return false, err
	}

	id := s.toID(v)
	s.values.Insert(id, v)

	firstInsertion := false
	for i, part := range s.partitions {
		w := s.window.Window(v, part.Start, part.Width)

		zeroKey := VariantKey{Partition: i, Tag: TagZero, Window: fingerprint.NullVariant(w)}
		if s.variants.Insert(zeroKey, id) {
			firstInsertion = true
		}

		for _, variant := range fingerprint.SubstitutionVariants(w) {
			oneKey := VariantKey{Partition: i, Tag: TagOne, Window: variant}
			s.variants.Insert(oneKey, id)
		}
	}
	return firstInsertion, nil
}

// Get returns every indexed value within tolerance of q.
func (s *Substitution[T, ID]) Get(q T) ([]T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireOpenLocked(); err != nil {
		return nil, false, err
	}

	acc := accumulator.New[T](s.tolerance, q, s.shape.Hamming)
	for i, part := range s.partitions {
		w := s.window.Window(q, part.Start, part.Width)

		zeroKey := VariantKey{Partition: i, Tag: TagZero, Window: fingerprint.NullVariant(w)}
		if ids, ok := s.variants.Get(zeroKey); ok {
			for _, id := range ids {
				if val, ok := s.values.Get(id); ok {
					acc.InsertZeroVariant(val)
				}
				// A missing id means the value was concurrently removed
				// between the bucket snapshot and this lookup; skip it
				// rather than erroring.
			}
		}

		oneKey := VariantKey{Partition: i, Tag: TagOne, Window: w}
		if ids, ok := s.variants.Get(oneKey); ok {
			for _, id := range ids {
				if val, ok := s.values.Get(id); ok {
					acc.InsertOneVariant(val)
				}
			}
		}
	}

	values, ok := acc.FoundValues()
	return values, ok, nil
}

// Remove deletes the same key set Insert wrote, mirroring the insert path
// exactly: the Zero null-variant key and every One substitution-variant
// key. It reports true if the Zero key was present in any partition.
func (s *Substitution[T, ID]) Remove(v T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpenLocked(); err != nil {
		return false, err
	}

	id := s.toID(v)
	removed := false
	for i, part := range s.partitions {
		w := s.window.Window(v, part.Start, part.Width)

		zeroKey := VariantKey{Partition: i, Tag: TagZero, Window: fingerprint.NullVariant(w)}
		if s.variants.Remove(zeroKey, id) {
			removed = true
		}

		for _, variant := range fingerprint.SubstitutionVariants(w) {
			oneKey := VariantKey{Partition: i, Tag: TagOne, Window: variant}
			s.variants.Remove(oneKey, id)
		}
	}
	if removed {
		s.values.Remove(id)
	}
	return removed, nil
}
