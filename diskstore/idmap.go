package diskstore

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/kerinin/hmsearch/dberrors"
)

// IDMapCodec converts between the in-memory identifier/value types and
// their content encodings. EncodeID must be injective; DecodeValue must
// invert EncodeValue.
type IDMapCodec[ID comparable, T any] struct {
	EncodeID    func(ID) []byte
	EncodeValue func(T) []byte
	DecodeValue func([]byte) (T, error)
}

// valueLoc locates one live value inside the record log.
type valueLoc struct {
	off  int64
	size uint32
}

// IDMap is the durable identifier -> value store (the value_store/
// sub-directory). Values live in the append-only log; only their offsets
// are held in memory, with a bigcache front absorbing hot reads so repeated
// queries against the same candidates skip the disk entirely.
type IDMap[ID comparable, T any] struct {
	codec   IDMapCodec[ID, T]
	log     *recordLog
	offsets map[ID]valueLoc
	cache   *bigcache.BigCache
}

// OpenIDMap opens (or creates) the value store under dir, replaying the
// existing log to rebuild the offset index.
func OpenIDMap[ID comparable, T any](dir string, codec IDMapCodec[ID, T], decodeID func([]byte) (ID, error)) (*IDMap[ID, T], error) {
	rl, err := openRecordLog(dir)
	if err != nil {
		return nil, err
	}

	m := &IDMap[ID, T]{
		codec:   codec,
		log:     rl,
		offsets: make(map[ID]valueLoc),
	}

	err = rl.replay(func(rec record) error {
		id, err := decodeID(rec.key)
		if err != nil {
			return err
		}
		switch rec.op {
		case opPut:
			m.offsets[id] = valueLoc{off: rec.valueOff, size: rec.valueSize}
		case opDel:
			delete(m.offsets, id)
		}
		return nil
	})
	if err != nil {
		rl.close()
		return nil, dberrors.Storage("diskstore.OpenIDMap", err)
	}

	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(10*time.Minute))
	if err != nil {
		rl.close()
		return nil, dberrors.Storage("diskstore.OpenIDMap", err)
	}
	m.cache = cache

	log.Infow("opened value store", "dir", dir, "values", len(m.offsets))
	return m, nil
}

// Get implements dbstore.IDMap. Missing identifiers report ok=false; read
// failures are logged and reported as missing, which the engines treat
// as a skipped candidate rather than a query failure.
func (m *IDMap[ID, T]) Get(id ID) (T, bool) {
	var zero T
	loc, ok := m.offsets[id]
	if !ok {
		return zero, false
	}

	key := string(m.codec.EncodeID(id))
	if buf, err := m.cache.Get(key); err == nil {
		v, err := m.codec.DecodeValue(buf)
		if err == nil {
			return v, true
		}
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		log.Warnw("value cache read failed", "err", err)
	}

	buf, err := m.log.readValueAt(loc.off, loc.size)
	if err != nil {
		log.Errorw("value store read failed", "err", err)
		return zero, false
	}
	v, err := m.codec.DecodeValue(buf)
	if err != nil {
		log.Errorw("value store decode failed", "err", err)
		return zero, false
	}
	_ = m.cache.Set(key, buf)
	return v, true
}

// Insert implements dbstore.IDMap. Re-inserting an existing identifier
// appends a fresh record; the offset index keeps only the newest.
func (m *IDMap[ID, T]) Insert(id ID, v T) {
	keyBytes := m.codec.EncodeID(id)
	valBytes := m.codec.EncodeValue(v)
	off, err := m.log.append(opPut, keyBytes, valBytes)
	if err != nil {
		log.Errorw("value store append failed", "err", err)
		return
	}
	m.offsets[id] = valueLoc{off: off, size: uint32(len(valBytes))}
	_ = m.cache.Set(string(keyBytes), valBytes)
}

// Remove implements dbstore.IDMap, appending a tombstone record.
func (m *IDMap[ID, T]) Remove(id ID) {
	if _, ok := m.offsets[id]; !ok {
		return
	}
	keyBytes := m.codec.EncodeID(id)
	if _, err := m.log.append(opDel, keyBytes, nil); err != nil {
		log.Errorw("value store tombstone append failed", "err", err)
		return
	}
	delete(m.offsets, id)
	_ = m.cache.Delete(string(keyBytes))
}

// Len reports the number of live values.
func (m *IDMap[ID, T]) Len() int { return len(m.offsets) }

// Flush makes all appended records visible to a reopening process.
func (m *IDMap[ID, T]) Flush() error {
	return dberrors.Storage("diskstore.IDMap.Flush", m.log.flush())
}

// Close flushes, syncs and releases the log file and the read cache.
func (m *IDMap[ID, T]) Close() error {
	cerr := m.cache.Close()
	if err := m.log.close(); err != nil {
		return dberrors.Storage("diskstore.IDMap.Close", err)
	}
	if cerr != nil {
		return dberrors.Storage("diskstore.IDMap.Close", cerr)
	}
	return nil
}
