package bolt

import (
	"encoding/binary"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
)

var bucketDomains = []byte("domains")

// boltStore implements blocklist.Store using bbolt.
// Keys are canonical domains; values hold the unix time the domain was added.
type boltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// New opens (or creates) a Bolt database at path and ensures the bucket exists.
func New(path string) (blocklist.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open blocklist db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDomains)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create blocklist bucket: %w", err)
	}
	return &boltStore{db: db, now: time.Now}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Contains(name string) (bool, error) {
	var present bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		present = tx.Bucket(bucketDomains).Get([]byte(name)) != nil
		return nil
	})
	return present, err
}

func (s *boltStore) Add(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDomains)
		if b.Get([]byte(name)) != nil {
			return blocklist.ErrAlreadyPresent
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(s.now().Unix()))
		return b.Put([]byte(name), buf)
	})
}

func (s *boltStore) Remove(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDomains)
		if b.Get([]byte(name)) == nil {
			return blocklist.ErrNotPresent
		}
		return b.Delete([]byte(name))
	})
}

// List returns the domains in key (lexicographic) order.
func (s *boltStore) List() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDomains)
		out = make([]string, 0, b.Stats().KeyN)
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}
