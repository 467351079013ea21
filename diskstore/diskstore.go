// Package diskstore provides the durable realizations of the engine's two
// storage abstractions: an on-disk IDMap (value_store/) and an on-disk
// MapSet (variant_store/). Each sub-store is an append-only record log
// plus an in-memory index rebuilt by replaying the log on open; a header
// file carries the format magic and version. Records are content-encoded
// by codec functions supplied by the caller, so the store itself never
// interprets fingerprints or variant keys.
package diskstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/kerinin/hmsearch/dberrors"
)

var log = logging.Logger("hmsearch/diskstore")

var magic = [8]byte{'h', 'm', 's', 'e', 'a', 'r', 'c', 'h'}

const version = uint64(1)

const (
	opPut byte = 1
	opDel byte = 2
)

// headerFileName sits next to each sub-store's log and pins the format.
const headerFileName = "header"

const logFileName = "records.log"

func writeHeader(dir string) error {
	buf := make([]byte, 16)
	copy(buf[:8], magic[:])
	binary.LittleEndian.PutUint64(buf[8:], version)
	return os.WriteFile(filepath.Join(dir, headerFileName), buf, 0o644)
}

func checkHeader(dir string) error {
	buf, err := os.ReadFile(filepath.Join(dir, headerFileName))
	if os.IsNotExist(err) {
		return writeHeader(dir)
	}
	if err != nil {
		return err
	}
	if len(buf) != 16 || string(buf[:8]) != string(magic[:]) {
		return fmt.Errorf("bad store header in %s", dir)
	}
	if v := binary.LittleEndian.Uint64(buf[8:]); v != version {
		return fmt.Errorf("unsupported store version %d in %s", v, dir)
	}
	return nil
}

// record is one replayed log entry: op, key bytes, value bytes, and the
// absolute file offset and length of the value bytes (used by the IDMap to
// read values back without keeping them in memory).
type record struct {
	op        byte
	key       []byte
	value     []byte
	valueOff  int64
	valueSize uint32
}

// recordLog is the append-only file both sub-stores are built on; each
// sub-store opens its own under its own directory. Appends
// go through a buffered writer; Flush makes them visible to reopen, Sync
// makes them durable. The caller serializes access (the DB-level lock in
// the engine already does).
type recordLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	size   int64
}

func openRecordLog(dir string) (*recordLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dberrors.Storage("diskstore.open", err)
	}
	if err := checkHeader(dir); err != nil {
		return nil, dberrors.Storage("diskstore.open", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, dberrors.Storage("diskstore.open", err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, dberrors.Storage("diskstore.open", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, dberrors.Storage("diskstore.open", err)
	}
	return &recordLog{
		file:   file,
		writer: bufio.NewWriter(file),
		size:   fi.Size(),
	}, nil
}

// append writes one record and returns the offset of its value bytes.
func (l *recordLog) append(op byte, key, value []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var hdr [1 + 2*binary.MaxVarintLen64]byte
	hdr[0] = op
	n := 1
	n += binary.PutUvarint(hdr[n:], uint64(len(key)))
	n += binary.PutUvarint(hdr[n:], uint64(len(value)))

	if _, err := l.writer.Write(hdr[:n]); err != nil {
		return 0, err
	}
	if _, err := l.writer.Write(key); err != nil {
		return 0, err
	}
	if _, err := l.writer.Write(value); err != nil {
		return 0, err
	}
	valueOff := l.size + int64(n) + int64(len(key))
	l.size += int64(n) + int64(len(key)) + int64(len(value))
	return valueOff, nil
}

// replay streams every record to fn in append order. It is called once on
// open, before the log accepts appends.
func (l *recordLog) replay(fn func(rec record) error) error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader := bufio.NewReader(l.file)
	var off int64
	for {
		op, err := reader.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		off++

		keyLen, n, err := readUvarint(reader)
		if err != nil {
			return err
		}
		off += int64(n)
		valLen, n, err := readUvarint(reader)
		if err != nil {
			return err
		}
		off += int64(n)

		key := make([]byte, keyLen)
		if _, err := io.ReadFull(reader, key); err != nil {
			return err
		}
		off += int64(keyLen)
		valueOff := off
		value := make([]byte, valLen)
		if _, err := io.ReadFull(reader, value); err != nil {
			return err
		}
		off += int64(valLen)

		if err := fn(record{op: op, key: key, value: value, valueOff: valueOff, valueSize: uint32(valLen)}); err != nil {
			return err
		}
	}
	_, err := l.file.Seek(0, io.SeekEnd)
	return err
}

func readUvarint(r *bufio.Reader) (uint64, int, error) {
	var x uint64
	var s uint
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, i, err
		}
		if b < 0x80 {
			return x | uint64(b)<<s, i + 1, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}

// readValueAt reads back value bytes previously returned by append. Reads
// flush the writer first so a value appended moments ago is visible.
func (l *recordLog) readValueAt(off int64, size uint32) ([]byte, error) {
	l.mu.Lock()
	if err := l.writer.Flush(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()
	buf := make([]byte, size)
	if _, err := l.file.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (l *recordLog) flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Flush()
}

func (l *recordLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		l.file.Close()
		return err
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
