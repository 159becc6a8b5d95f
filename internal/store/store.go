// Package store implements the ordered durable layer backing a queue.
//
// A Store wraps a single bbolt database file. Each queue owns one named
// Region inside the store: a top-level bucket holding a nested "entries"
// bucket (8-byte big-endian position key -> serialized value) plus a
// "schema" record identifying the codec/type combination that wrote the
// region.
//
// The database is opened with NoSync so that commits do not fsync on
// their own; the queue layer places the durability barrier explicitly by
// calling Flush after each mutation.
package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// DBFileName is the name of the database file inside the queue directory.
const DBFileName = "setq.db"

var (
	entriesName = []byte("entries")
	schemaKey   = []byte("schema")
)

// Store is a handle to one bbolt database file.
type Store struct {
	db  *bbolt.DB
	dir string
}

// Open opens or creates the store under dir. The directory is created if
// it does not exist. lockTimeout bounds how long Open waits for the
// file lock held by another process; zero waits indefinitely.
func Open(dir string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}

	db, err := bbolt.Open(filepath.Join(dir, DBFileName), 0o600, &bbolt.Options{
		Timeout: lockTimeout,
		NoSync:  true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", DBFileName)
	}

	return &Store{db: db, dir: dir}, nil
}

// Region opens or creates the named region within the store.
func (s *Store) Region(name string) (*Region, error) {
	if name == "" {
		return nil, errors.New("region name must not be empty")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		_, err = root.CreateBucketIfNotExists(entriesName)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create region %q", name)
	}

	return &Region{db: s.db, name: []byte(name)}, nil
}

// Dir returns the directory the store was opened at.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the database file and its lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Region is one named, ordered key space within a Store.
type Region struct {
	db   *bbolt.DB
	name []byte
}

// Name returns the region name.
func (r *Region) Name() string {
	return string(r.name)
}

// entries resolves the nested entries bucket within tx.
func (r *Region) entries(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	root := tx.Bucket(r.name)
	if root == nil {
		return nil, errors.Errorf("region %q missing", r.name)
	}
	b := root.Bucket(entriesName)
	if b == nil {
		return nil, errors.Errorf("region %q has no entries bucket", r.name)
	}
	return b, nil
}

// Insert stores value under the given position key.
func (r *Region) Insert(key int64, value []byte) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.entries(tx)
		if err != nil {
			return err
		}
		return b.Put(encodeKey(key), value)
	})
}

// First returns the entry with the minimum position key without removing
// it. ok is false when the region is empty.
func (r *Region) First() (key int64, value []byte, ok bool, err error) {
	return r.peek(func(c *bbolt.Cursor) ([]byte, []byte) { return c.First() })
}

// Last returns the entry with the maximum position key without removing
// it. ok is false when the region is empty.
func (r *Region) Last() (key int64, value []byte, ok bool, err error) {
	return r.peek(func(c *bbolt.Cursor) ([]byte, []byte) { return c.Last() })
}

func (r *Region) peek(move func(*bbolt.Cursor) ([]byte, []byte)) (key int64, value []byte, ok bool, err error) {
	err = r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.entries(tx)
		if err != nil {
			return err
		}
		k, v := move(b.Cursor())
		if k == nil {
			return nil
		}
		// Bytes are only valid for the life of the transaction.
		key = decodeKey(k)
		value = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return key, value, ok, err
}

// PopMin removes and returns the entry with the minimum position key in a
// single transaction. ok is false when the region is empty.
func (r *Region) PopMin() (key int64, value []byte, ok bool, err error) {
	return r.pop(func(c *bbolt.Cursor) ([]byte, []byte) { return c.First() })
}

// PopMax removes and returns the entry with the maximum position key in a
// single transaction. ok is false when the region is empty.
func (r *Region) PopMax() (key int64, value []byte, ok bool, err error) {
	return r.pop(func(c *bbolt.Cursor) ([]byte, []byte) { return c.Last() })
}

func (r *Region) pop(move func(*bbolt.Cursor) ([]byte, []byte)) (key int64, value []byte, ok bool, err error) {
	err = r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.entries(tx)
		if err != nil {
			return err
		}
		c := b.Cursor()
		k, v := move(c)
		if k == nil {
			return nil
		}
		key = decodeKey(k)
		value = append([]byte(nil), v...)
		if err := c.Delete(); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return 0, nil, false, err
	}
	return key, value, ok, nil
}

// MaxKey returns the maximum position key present. ok is false when the
// region is empty.
func (r *Region) MaxKey() (key int64, ok bool, err error) {
	err = r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.entries(tx)
		if err != nil {
			return err
		}
		k, _ := b.Cursor().Last()
		if k == nil {
			return nil
		}
		key = decodeKey(k)
		ok = true
		return nil
	})
	return key, ok, err
}

// Len returns the number of entries in the region.
func (r *Region) Len() (int, error) {
	n := 0
	err := r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.entries(tx)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// ForEach iterates every entry in ascending key order. The value slice is
// only valid for the duration of the callback.
func (r *Region) ForEach(fn func(key int64, value []byte) error) error {
	return r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.entries(tx)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(decodeKey(k), v)
		})
	})
}

// Clear removes every entry from the region in one transaction. The
// schema record is preserved.
func (r *Region) Clear() error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(r.name)
		if root == nil {
			return errors.Errorf("region %q missing", r.name)
		}
		if err := root.DeleteBucket(entriesName); err != nil {
			return err
		}
		_, err := root.CreateBucketIfNotExists(entriesName)
		return err
	})
}

// Schema returns the region's stored schema record, if any.
func (r *Region) Schema() (rec []byte, ok bool, err error) {
	err = r.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(r.name)
		if root == nil {
			return errors.Errorf("region %q missing", r.name)
		}
		v := root.Get(schemaKey)
		if v == nil {
			return nil
		}
		rec = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return rec, ok, err
}

// SetSchema stores the region's schema record.
func (r *Region) SetSchema(rec []byte) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(r.name)
		if root == nil {
			return errors.Errorf("region %q missing", r.name)
		}
		return root.Put(schemaKey, rec)
	})
}

// Flush forces committed writes to the durable medium.
func (r *Region) Flush() error {
	return r.db.Sync()
}

// encodeKey encodes a position key as 8 big-endian bytes so that
// lexicographic key order equals numeric order for non-negative keys.
func encodeKey(key int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key))
	return buf[:]
}

func decodeKey(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k))
}
