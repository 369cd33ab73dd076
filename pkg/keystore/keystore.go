// Package keystore persists named salts in a bbolt database so callers can
// refer to key material by name instead of passing raw bytes on every command.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	saltsBucket = []byte("salts") // name -> salt bytes
	metaBucket  = []byte("meta")  // name -> json Entry
)

var (
	ErrNotFound    = errors.New("keystore: salt not found")
	ErrEmptyName   = errors.New("keystore: empty salt name")
	ErrEmptySalt   = errors.New("keystore: empty salt value")
	ErrInvalidName = errors.New("keystore: invalid salt name")
)

// Entry describes a stored salt. The salt bytes themselves stay in the salts
// bucket; Entry is what List exposes.
type Entry struct {
	Name    string    `json:"name"`
	Length  int       `json:"length"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Store provides bbolt-backed storage for named salts.
type Store struct {
	db *bolt.DB
}

// Open opens or creates a keystore database at path and ensures the bucket
// structure exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{saltsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("keystore: initialize %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// validName rejects names the command line protocol cannot carry: empty
// names, whitespace, and the "@" prefix reserved for keystore references.
func validName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if strings.HasPrefix(name, "@") || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Put stores salt under name, overwriting any previous value. The creation
// timestamp of an existing entry is preserved.
func (s *Store) Put(name string, salt []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(salt) == 0 {
		return ErrEmptySalt
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		now := time.Now().UTC()
		entry := Entry{Name: name, Length: len(salt), Created: now, Updated: now}

		meta := tx.Bucket(metaBucket)
		if prev := meta.Get([]byte(name)); prev != nil {
			var existing Entry
			if err := json.Unmarshal(prev, &existing); err == nil {
				entry.Created = existing.Created
			}
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(name), data); err != nil {
			return err
		}
		return tx.Bucket(saltsBucket).Put([]byte(name), salt)
	})
}

// Get retrieves the salt stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	var salt []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(saltsBucket).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		// Copy: the slice is only valid during the transaction.
		salt = append([]byte(nil), data...)
		return nil
	})
	return salt, err
}

// Delete removes the salt stored under name.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(saltsBucket).Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if err := tx.Bucket(saltsBucket).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Delete([]byte(name))
	})
}

// List returns the entries for every stored salt, in key order.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}
