// Package storage provides the embedded persistence backend for hemocheck.
// It uses BoltDB as the underlying storage engine to store user accounts and
// the append-only prediction ledger.
//
// BoltDB allows a single writer at a time, so every ledger append and account
// creation is serialized by the database itself.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"hemocheck/internal/records"
)

const (
	usersBucket       = "users"       // user id -> UserAccount JSON
	emailsBucket      = "emails"      // normalized email -> user id
	predictionsBucket = "predictions" // user id -> nested bucket of record id -> PredictionRecord JSON
)

// Store provides persistent storage for accounts and predictions using BoltDB.
// It implements records.Store.
type Store struct {
	db     *bbolt.DB // BoltDB database instance
	hasher records.Hasher
	now    func() time.Time
}

var _ records.Store = (*Store)(nil)

// New opens (or creates) the database file at path and creates the buckets.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(path string, hasher records.Hasher) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{usersBucket, emailsBucket, predictionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, hasher: hasher, now: time.Now}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func getAccount(tx *bbolt.Tx, userID int64) (records.UserAccount, error) {
	data := tx.Bucket([]byte(usersBucket)).Get(itob(userID))
	if data == nil {
		return records.UserAccount{}, records.ErrUserNotFound
	}
	var acct records.UserAccount
	if err := json.Unmarshal(data, &acct); err != nil {
		return records.UserAccount{}, fmt.Errorf("unmarshal user %d: %w", userID, err)
	}
	return acct, nil
}
