// Package engine implements the index DB state machine and the two
// HmSearch algorithmic variants: the substitution engine and the deletion
// engine. Both share the partitioning, locking, and store-wiring skeleton
// defined here in base.go.
package engine

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/kerinin/hmsearch/dberrors"
	"github.com/kerinin/hmsearch/dbstore"
	"github.com/kerinin/hmsearch/fingerprint"
	"github.com/kerinin/hmsearch/partition"
)

var log = logging.Logger("hmsearch/engine")

type state int

const (
	stateFresh state = iota
	stateOpen
	stateClosed
)

// Tag distinguishes the Zero and One buckets the substitution engine keys
// variant buckets by. The deletion engine has no such distinction at the
// store level and always uses TagNone.
type Tag uint8

const (
	TagZero Tag = iota
	TagOne
	TagNone
)

// VariantKey is the sub-index record key shared by both engines:
// (partition, ZeroOrOne, window) for substitution collapses onto
// (partition, variant) for deletion by fixing Tag to TagNone. For
// deletion keys the variant is the pair (forced-to-1 window, deleted bit
// index): the index is part of the key, so two variants whose forced
// windows coincide but whose deleted positions differ stay in separate
// buckets — the count>2 aggregation threshold depends on this.
// Substitution keys leave Index at zero.
type VariantKey struct {
	Partition int
	Tag       Tag
	Index     int
	Window    fingerprint.BitWindow
}

// closer is implemented by store backends that own resources to release on
// DB.Close (e.g. the on-disk backend's open file handles).
type closer interface {
	Close() error
}

// base holds everything the substitution and deletion engines share: the
// state machine, the DB-level reader-writer lock (Get acquires shared,
// Insert/Remove acquire exclusive), the partition plan, and the two store
// collaborators.
type base[T comparable, ID comparable] struct {
	mu    sync.RWMutex
	state state

	dimensions int
	tolerance  int
	partitions []partition.Partition

	shape fingerprint.Shape[T]
	toID  func(T) ID

	values   dbstore.IDMap[ID, T]
	variants dbstore.MapSet[VariantKey, ID]

	name string // for logging only
}

func newBase[T comparable, ID comparable](
	dimensions, tolerance int,
	shape fingerprint.Shape[T],
	toID func(T) ID,
	values dbstore.IDMap[ID, T],
	variants dbstore.MapSet[VariantKey, ID],
	name string,
) (*base[T, ID], error) {
	parts, err := partition.Plan(dimensions, tolerance)
	if err != nil {
		return nil, err
	}
	return &base[T, ID]{
		state:      stateFresh,
		dimensions: dimensions,
		tolerance:  tolerance,
		partitions: parts,
		shape:      shape,
		toID:       toID,
		values:     values,
		variants:   variants,
		name:       name,
	}, nil
}

// Open transitions Fresh -> Open. Only an Open DB accepts operations.
func (b *base[T, ID]) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateFresh {
		return dberrors.Configuration("DB.Open", dberrors.ErrNotOpen)
	}
	b.state = stateOpen
	log.Infow("opened", "db", b.name, "dimensions", b.dimensions, "tolerance", b.tolerance, "partitions", len(b.partitions))
	return nil
}

// Close transitions to Closed, flushing any backend-side buffers and
// releasing file handles. It is idempotent.
func (b *base[T, ID]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateClosed {
		return nil
	}
	b.state = stateClosed
	var firstErr error
	if c, ok := b.values.(closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c, ok := b.variants.(closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	log.Infow("closed", "db", b.name)
	if firstErr != nil {
		return dberrors.Storage("DB.Close", firstErr)
	}
	return nil
}

func (b *base[T, ID]) requireOpenLocked() error {
	switch b.state {
	case stateOpen:
		return nil
	case stateClosed:
		return dberrors.Configuration("DB", dberrors.ErrClosed)
	default:
		return dberrors.Configuration("DB", dberrors.ErrNotOpen)
	}
}

// Dimensions reports d.
func (b *base[T, ID]) Dimensions() int { return b.dimensions }

// Tolerance reports k.
func (b *base[T, ID]) Tolerance() int { return b.tolerance }

// Partitions returns the immutable partition plan.
func (b *base[T, ID]) Partitions() []partition.Partition { return b.partitions }
