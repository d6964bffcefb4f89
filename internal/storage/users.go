package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"hemocheck/internal/records"
)

// Lookup returns the account for userID.
func (s *Store) Lookup(ctx context.Context, userID int64) (records.UserAccount, error) {
	if err := ctx.Err(); err != nil {
		return records.UserAccount{}, err
	}

	var acct records.UserAccount
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		acct, err = getAccount(tx, userID)
		return err
	})
	return acct, err
}

// Create registers a new account. The password is hashed before the write
// transaction opens so the single writer is not held during bcrypt.
func (s *Store) Create(ctx context.Context, email, password string) (int64, error) {
	email = records.NormalizeEmail(email)
	if email == "" || password == "" {
		return 0, records.ErrMissingCredentials
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, err
	}

	var userID int64
	err = s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket([]byte(emailsBucket))
		if emails.Get([]byte(email)) != nil {
			return records.ErrEmailTaken
		}

		users := tx.Bucket([]byte(usersBucket))
		seq, err := users.NextSequence()
		if err != nil {
			return fmt.Errorf("next user id: %w", err)
		}
		userID = int64(seq)

		data, err := json.Marshal(records.UserAccount{
			UserID:       userID,
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}

		if err := users.Put(itob(userID), data); err != nil {
			return err
		}
		return emails.Put([]byte(email), itob(userID))
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// Verify checks password against the stored hash for email.
func (s *Store) Verify(ctx context.Context, email, password string) (int64, error) {
	email = records.NormalizeEmail(email)
	if email == "" || password == "" {
		return 0, records.ErrMissingCredentials
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var acct records.UserAccount
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(emailsBucket)).Get([]byte(email))
		if id == nil {
			return records.ErrUserNotFound
		}
		var err error
		acct, err = getAccount(tx, btoi(id))
		return err
	})
	if err != nil {
		return 0, err
	}

	if err := s.hasher.Check(acct.PasswordHash, password); err != nil {
		return 0, err
	}
	return acct.UserID, nil
}
