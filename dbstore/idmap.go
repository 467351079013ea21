// Package dbstore defines the two storage abstractions the engine is built
// on — IDMap (identifier -> value) and MapSet (key -> set of identifiers) —
// and provides in-memory implementations. The on-disk counterparts live in
// package diskstore.
package dbstore

import (
	"sync"

	"github.com/kerinin/hmsearch/dberrors"
)

// IDMap maps an identifier to the fingerprint value it names. Get reports
// ok=false for an identifier that was never inserted or has since been
// removed (IdentityIDMap, below, always reports ok=true).
// Implementations must be safe for concurrent readers.
type IDMap[ID comparable, T any] interface {
	Get(id ID) (T, bool)
	Insert(id ID, v T)
	Remove(id ID)
}

// HashIDMap is a concurrency-safe, hash-map-backed IDMap. This is the
// default for surrogate IDs, where the identifier is not the value itself.
type HashIDMap[ID comparable, T any] struct {
	mu sync.RWMutex
	m  map[ID]T
}

func NewHashIDMap[ID comparable, T any]() *HashIDMap[ID, T] {
	return &HashIDMap[ID, T]{m: make(map[ID]T)}
}

func (h *HashIDMap[ID, T]) Get(id ID) (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.m[id]
	return v, ok
}

func (h *HashIDMap[ID, T]) Insert(id ID, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[id] = v
}

func (h *HashIDMap[ID, T]) Remove(id ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.m, id)
}

func (h *HashIDMap[ID, T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.m)
}

// IdentityIDMap is the trivial "identity" implementation for shapes where
// the value is its own identifier: it returns its argument and ignores
// Insert/Remove.
// Get always reports ok=true: by construction the caller only ever looks up
// an ID it derived from a value via fingerprint.IdentityID, so the "value"
// is reconstructed directly from the ID with no lookup needed.
type IdentityIDMap[T comparable] struct{}

func NewIdentityIDMap[T comparable]() IdentityIDMap[T] { return IdentityIDMap[T]{} }

func (IdentityIDMap[T]) Get(id T) (T, bool) { return id, true }
func (IdentityIDMap[T]) Insert(T, T)        {}
func (IdentityIDMap[T]) Remove(T)           {}

// MustGet looks up id and panics with a ProgrammingError if it is absent —
// used where the caller has already established the invariant that id must
// resolve (a dangling ID is a bug, not a storage condition), as opposed to
// the accumulator's tolerant just-removed skip.
func MustGet[ID comparable, T any](m IDMap[ID, T], id ID) T {
	v, ok := m.Get(id)
	if !ok {
		panic(dberrors.ErrMissingValue)
	}
	return v
}
