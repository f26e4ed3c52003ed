// Package params is the persistent configuration store (bbolt backed).
package params

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketKey = "params"

// Keys understood by the vehicle module.
const (
	KeyMinSOC   = "min_soc"   // integer percent, 0 disables low-charge notifications
	KeyUnits    = "units"     // "M" or "K"
	KeyCANWrite = "can_write" // "1" would allow transmission; the module stays listen-only
)

// Defaults seeded into a new store.
var Defaults = map[string]string{
	KeyMinSOC:   "0",
	KeyUnits:    "M",
	KeyCANWrite: "0",
}

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("params: not found")
	// ErrUnknownKey is returned by Validate for a key outside Defaults.
	ErrUnknownKey = errors.New("params: unknown key")
	// ErrInvalidValue is returned by Validate for a value the key cannot hold.
	ErrInvalidValue = errors.New("params: invalid value")
)

// Validate checks that key is a known parameter and value is acceptable for it.
func Validate(key, value string) error {
	switch key {
	case KeyMinSOC:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 100 {
			return fmt.Errorf("%s=%q must be an integer within 0..100: %w", key, value, ErrInvalidValue)
		}
	case KeyUnits:
		if value != "M" && value != "K" {
			return fmt.Errorf("%s=%q must be M or K: %w", key, value, ErrInvalidValue)
		}
	case KeyCANWrite:
		if value != "0" && value != "1" {
			return fmt.Errorf("%s=%q must be 0 or 1: %w", key, value, ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%q: %w", key, ErrUnknownKey)
	}
	return nil
}

// Store wraps a bbolt database holding one bucket of string parameters.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database and seeds missing defaults.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("params open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketKey))
		if err != nil {
			return err
		}
		for k, v := range Defaults {
			if b.Get([]byte(k)) == nil {
				if err := b.Put([]byte(k), []byte(v)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("params init: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the value for key or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var v string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketKey)).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		v = string(raw)
		return nil
	})
	return v, err
}

// Set stores a value.
func (s *Store) Set(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketKey)).Put([]byte(key), []byte(value))
	})
}

// Int returns key parsed as an integer, or def when missing or malformed.
func (s *Store) Int(key string, def int) int {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// All returns a copy of every stored parameter.
func (s *Store) All() (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketKey)).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}
