package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hemocheck/internal/records"
)

// Lookup returns the account for userID.
func (db *DB) Lookup(ctx context.Context, userID int64) (records.UserAccount, error) {
	var acct records.UserAccount
	err := db.QueryRowContext(ctx, `
		SELECT user_id, email, password, created_at
		FROM users WHERE user_id = $1
	`, userID).Scan(&acct.UserID, &acct.Email, &acct.PasswordHash, &acct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.UserAccount{}, records.ErrUserNotFound
	}
	if err != nil {
		return records.UserAccount{}, fmt.Errorf("lookup user %d: %w", userID, err)
	}
	return acct, nil
}

// Create registers a new account and returns its id.
func (db *DB) Create(ctx context.Context, email, password string) (int64, error) {
	email = records.NormalizeEmail(email)
	if email == "" || password == "" {
		return 0, records.ErrMissingCredentials
	}

	hash, err := db.hasher.Hash(password)
	if err != nil {
		return 0, err
	}

	var userID int64
	err = db.QueryRowContext(ctx, `
		INSERT INTO users (email, password) VALUES ($1, $2)
		RETURNING user_id
	`, email, hash).Scan(&userID)
	if isUniqueViolation(err) {
		return 0, records.ErrEmailTaken
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return userID, nil
}

// Verify checks password against the stored hash for email.
func (db *DB) Verify(ctx context.Context, email, password string) (int64, error) {
	email = records.NormalizeEmail(email)
	if email == "" || password == "" {
		return 0, records.ErrMissingCredentials
	}

	var (
		userID int64
		hash   string
	)
	err := db.QueryRowContext(ctx, `
		SELECT user_id, password FROM users WHERE email = $1
	`, email).Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, records.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("verify user: %w", err)
	}

	if err := db.hasher.Check(hash, password); err != nil {
		return 0, err
	}
	return userID, nil
}
