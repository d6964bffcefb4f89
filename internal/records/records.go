// Package records defines user accounts and the prediction ledger shared by
// the embedded (bbolt) and SQL (Postgres) backends.
package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"hemocheck/internal/anemia"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// DateLayout is the wire format of PredictionRecord.TestDate.
const DateLayout = "2006-01-02"

// UserAccount is a registered user. PasswordHash is a bcrypt hash.
type UserAccount struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// PredictionRecord is one saved prediction. Records are append-only.
type PredictionRecord struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"user_id"`
	HemoglobinLevel float64      `json:"hemoglobin_level"`
	Result          anemia.Class `json:"result"`
	TestDate        time.Time    `json:"test_date"`
}

// CredentialStore manages user accounts.
type CredentialStore interface {
	Lookup(ctx context.Context, userID int64) (UserAccount, error)
	// Create registers email with a hash of password and returns the new id.
	Create(ctx context.Context, email, password string) (int64, error)
	// Verify returns the user id when password matches the stored hash.
	// Unknown emails yield ErrUserNotFound, wrong passwords ErrInvalidCredentials.
	Verify(ctx context.Context, email, password string) (int64, error)
}

// Ledger records predictions against existing users.
type Ledger interface {
	// Append fails with ErrUserNotFound when userID is not registered.
	Append(ctx context.Context, userID int64, hemoglobin float64, result anemia.Class) (int64, error)
	// List returns a user's records ordered by TestDate, then ID.
	List(ctx context.Context, userID int64) ([]PredictionRecord, error)
}

// Store is a backend providing both interfaces.
type Store interface {
	CredentialStore
	Ledger
	Close() error
}

// NormalizeEmail trims and lower-cases an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
