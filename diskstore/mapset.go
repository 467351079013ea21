package diskstore

import (
	"sync"

	"github.com/ipfs/bbloom"
	"github.com/kerinin/hmsearch/dberrors"
)

// MapSetCodec converts between the in-memory key/identifier types and
// their content encodings. Both encoders must be injective; the decoders
// must invert them (replay depends on it).
type MapSetCodec[K comparable, ID comparable] struct {
	EncodeKey func(K) []byte
	DecodeKey func([]byte) (K, error)
	EncodeID  func(ID) []byte
	DecodeID  func([]byte) (ID, error)
}

// bloomEntries sizes the variant-store bloom filter; the false-positive
// rate only costs an extra map lookup, so the sizing is generous rather
// than precise.
const bloomEntries = 1 << 20

const bloomWrongs = 7 // ~1% false positives at capacity

// MapSet is the durable variant-store realization (the variant_store/
// sub-directory): an append-only log of (key, id) pairs replayed into an
// in-memory bucket index on open. A bloom filter over encoded keys sits in
// front of Get, so lookups for variant keys that were never written — the
// overwhelming majority during queries over sparse corpora — return before
// touching the index.
type MapSet[K comparable, ID comparable] struct {
	codec MapSetCodec[K, ID]
	log   *recordLog

	mu      sync.RWMutex
	buckets map[K]map[ID]struct{}
	bloom   *bbloom.Bloom
}

// OpenMapSet opens (or creates) the variant store under dir, replaying the
// existing log to rebuild the buckets and re-seed the bloom filter.
func OpenMapSet[K comparable, ID comparable](dir string, codec MapSetCodec[K, ID]) (*MapSet[K, ID], error) {
	rl, err := openRecordLog(dir)
	if err != nil {
		return nil, err
	}

	bloom, err := bbloom.New(float64(bloomEntries), float64(bloomWrongs))
	if err != nil {
		rl.close()
		return nil, dberrors.Storage("diskstore.OpenMapSet", err)
	}

	s := &MapSet[K, ID]{
		codec:   codec,
		log:     rl,
		buckets: make(map[K]map[ID]struct{}),
		bloom:   bloom,
	}

	err = rl.replay(func(rec record) error {
		k, err := codec.DecodeKey(rec.key)
		if err != nil {
			return err
		}
		id, err := codec.DecodeID(rec.value)
		if err != nil {
			return err
		}
		switch rec.op {
		case opPut:
			s.addLocked(k, id)
			s.bloom.Add(rec.key)
		case opDel:
			s.dropLocked(k, id)
		}
		return nil
	})
	if err != nil {
		rl.close()
		return nil, dberrors.Storage("diskstore.OpenMapSet", err)
	}

	log.Infow("opened variant store", "dir", dir, "buckets", len(s.buckets))
	return s, nil
}

func (s *MapSet[K, ID]) addLocked(k K, id ID) bool {
	bucket, ok := s.buckets[k]
	if !ok {
		bucket = make(map[ID]struct{}, 1)
		s.buckets[k] = bucket
	}
	if _, exists := bucket[id]; exists {
		return false
	}
	bucket[id] = struct{}{}
	return true
}

func (s *MapSet[K, ID]) dropLocked(k K, id ID) bool {
	bucket, ok := s.buckets[k]
	if !ok {
		return false
	}
	if _, exists := bucket[id]; !exists {
		return false
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(s.buckets, k)
	}
	return true
}

// Insert implements dbstore.MapSet, appending a (key, id) record for every
// newly added pair. Already-present pairs append nothing, which is what
// makes retried inserts idempotent on disk as well as in memory.
func (s *MapSet[K, ID]) Insert(k K, id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.addLocked(k, id) {
		return false
	}
	keyBytes := s.codec.EncodeKey(k)
	if _, err := s.log.append(opPut, keyBytes, s.codec.EncodeID(id)); err != nil {
		log.Errorw("variant store append failed", "err", err)
	}
	s.bloom.Add(keyBytes)
	return true
}

// Get implements dbstore.MapSet, returning a snapshot of the bucket under
// k. The bloom filter short-circuits keys that were never inserted.
func (s *MapSet[K, ID]) Get(k K) ([]ID, bool) {
	if !s.bloom.Has(s.codec.EncodeKey(k)) {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.buckets[k]
	if !ok || len(bucket) == 0 {
		return nil, false
	}
	out := make([]ID, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	return out, true
}

// Remove implements dbstore.MapSet, appending a tombstone for every pair
// actually removed. The bloom filter is append-only, so removed keys decay
// into false positives rather than false negatives.
func (s *MapSet[K, ID]) Remove(k K, id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dropLocked(k, id) {
		return false
	}
	if _, err := s.log.append(opDel, s.codec.EncodeKey(k), s.codec.EncodeID(id)); err != nil {
		log.Errorw("variant store tombstone append failed", "err", err)
	}
	return true
}

// Len reports the number of distinct populated buckets.
func (s *MapSet[K, ID]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}

// Flush makes all appended records visible to a reopening process.
func (s *MapSet[K, ID]) Flush() error {
	return dberrors.Storage("diskstore.MapSet.Flush", s.log.flush())
}

// Close flushes, syncs and releases the log file.
func (s *MapSet[K, ID]) Close() error {
	return dberrors.Storage("diskstore.MapSet.Close", s.log.close())
}
