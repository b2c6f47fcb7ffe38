// Package snapshot persists the record cache across restarts in a bbolt file.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-relay/internal/dns/domain"
	"github.com/haukened/rr-relay/internal/dns/repos/dnscache"
)

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")
	keySavedAt    = []byte("saved_at")
)

var errCorruptEntry = errors.New("corrupt snapshot entry")

// Store reads and writes cache snapshots.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the snapshot file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored snapshot with entries.
func (s *Store) Save(entries []dnscache.Entry, savedAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketEntries)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		for i, e := range entries {
			binary.BigEndian.PutUint64(key, uint64(i))
			if err := b.Put(key, encodeEntry(e)); err != nil {
				return err
			}
		}
		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(savedAt.UnixNano()))
		return tx.Bucket(bucketMeta).Put(keySavedAt, ts)
	})
}

// Load returns every stored entry in the order it was saved.
func (s *Store) Load() ([]dnscache.Entry, error) {
	var entries []dnscache.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				return fmt.Errorf("entry %x: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SavedAt returns when the stored snapshot was written.
func (s *Store) SavedAt() (time.Time, bool) {
	var (
		at time.Time
		ok bool
	)
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySavedAt); len(v) == 8 {
			at = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
			ok = true
		}
		return nil
	})
	return at, ok
}

// Entry layout, big-endian:
//
//	inserted_at(8) ttl(4) type(2) class(2) name_len(2) name data_len(2) data
func encodeEntry(e dnscache.Entry) []byte {
	rr := e.Record
	buf := make([]byte, 0, 20+len(rr.Name)+len(rr.Data))
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.InsertedAt.UnixNano()))
	buf = binary.BigEndian.AppendUint32(buf, uint32(rr.TTL))
	buf = binary.BigEndian.AppendUint16(buf, uint16(rr.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(rr.Class))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rr.Name)))
	buf = append(buf, rr.Name...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rr.Data)))
	buf = append(buf, rr.Data...)
	return buf
}

func decodeEntry(v []byte) (dnscache.Entry, error) {
	if len(v) < 18 {
		return dnscache.Entry{}, errCorruptEntry
	}
	insertedAt := time.Unix(0, int64(binary.BigEndian.Uint64(v[0:8])))
	ttl := int32(binary.BigEndian.Uint32(v[8:12]))
	rrtype := domain.RRType(binary.BigEndian.Uint16(v[12:14]))
	class := domain.RRClass(binary.BigEndian.Uint16(v[14:16]))
	v = v[16:]

	name, v, err := readString(v)
	if err != nil {
		return dnscache.Entry{}, err
	}
	data, v, err := readString(v)
	if err != nil {
		return dnscache.Entry{}, err
	}
	if len(v) != 0 {
		return dnscache.Entry{}, errCorruptEntry
	}
	return dnscache.Entry{
		Record:     domain.NewRecord(name, ttl, class, rrtype, data),
		InsertedAt: insertedAt,
	}, nil
}

func readString(v []byte) (string, []byte, error) {
	if len(v) < 2 {
		return "", nil, errCorruptEntry
	}
	n := int(binary.BigEndian.Uint16(v[0:2]))
	if len(v) < 2+n {
		return "", nil, errCorruptEntry
	}
	return string(v[2 : 2+n]), v[2+n:], nil
}
