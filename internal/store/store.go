// Package store persists master state (registered frameworks, the current
// leader epoch) across restarts via an embedded BoltDB file (spec.md
// section 6, "persisted state"). It follows the teacher's
// snapshot-content-blob convention (master/internal/db's
// ExperimentSnapshot/SaveSnapshot: an opaque versioned byte blob keyed by
// id) but backed by go.etcd.io/bbolt instead of Postgres, since spec.md's
// Non-goals exclude running an external database for a single-binary
// master.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketFrameworks = []byte("frameworks")
var bucketMeta = []byte("meta")

var keyEpoch = []byte("epoch")

// Store wraps a BoltDB file for framework-snapshot and epoch persistence.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the database file at path, creating the buckets
// this package uses if they don't already exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFrameworks); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// FrameworkSnapshot is the persisted state for one registered framework,
// enough to reconstruct it across a master restart (spec.md section 4.2,
// framework re-registration).
type FrameworkSnapshot struct {
	ID       string
	Name     string
	User     string
	Checkpoint []byte // opaque, framework-supplied re-registration data
}

// SaveFramework persists or overwrites a framework's snapshot.
func (s *Store) SaveFramework(snap FrameworkSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encoding framework snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFrameworks).Put([]byte(snap.ID), body)
	})
}

// DeleteFramework removes a framework's snapshot, e.g. on clean shutdown.
func (s *Store) DeleteFramework(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFrameworks).Delete([]byte(id))
	})
}

// LoadFrameworks returns every persisted framework snapshot, used on master
// startup to reconcile frameworks that survived a restart.
func (s *Store) LoadFrameworks() ([]FrameworkSnapshot, error) {
	var out []FrameworkSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFrameworks).ForEach(func(_, body []byte) error {
			var snap FrameworkSnapshot
			if err := json.Unmarshal(body, &snap); err != nil {
				return fmt.Errorf("store: decoding framework snapshot: %w", err)
			}
			out = append(out, snap)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveEpoch persists the last-known leader epoch, so a restarted master
// can reject identifiers minted under a now-stale epoch (spec.md section
// 2's "epoch-qualified identifier" invariant) even after its own restart.
func (s *Store) SaveEpoch(epoch int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		body := make([]byte, 8)
		for i := 0; i < 8; i++ {
			body[i] = byte(epoch >> (8 * (7 - i)))
		}
		return tx.Bucket(bucketMeta).Put(keyEpoch, body)
	})
}

// LoadEpoch returns the last-persisted epoch, or 0 if none was ever saved.
func (s *Store) LoadEpoch() (int64, error) {
	var epoch int64
	err := s.db.View(func(tx *bolt.Tx) error {
		body := tx.Bucket(bucketMeta).Get(keyEpoch)
		if body == nil {
			return nil
		}
		for _, b := range body {
			epoch = epoch<<8 | int64(b)
		}
		return nil
	})
	return epoch, err
}
