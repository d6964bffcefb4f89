package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hemocheck/internal/anemia"
	"hemocheck/internal/records"
)

// Append stores a prediction for userID. The user row is locked for the
// duration of the insert, serializing appends per user.
func (db *DB) Append(ctx context.Context, userID int64, hemoglobin float64, result anemia.Class) (int64, error) {
	if !result.Valid() {
		return 0, fmt.Errorf("invalid anemia class %d", int(result))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, records.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock user %d: %w", userID, err)
	}

	var recordID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO predictions (user_id, hemoglobin_level, result)
		VALUES ($1, $2, $3)
		RETURNING id
	`, userID, hemoglobin, result.String()).Scan(&recordID)
	if err != nil {
		return 0, fmt.Errorf("insert prediction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return recordID, nil
}

// List returns the user's records ordered by test date, then id.
func (db *DB) List(ctx context.Context, userID int64) ([]records.PredictionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, hemoglobin_level, result, test_date
		FROM predictions
		WHERE user_id = $1
		ORDER BY test_date, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var out []records.PredictionRecord
	for rows.Next() {
		var (
			rec   records.PredictionRecord
			label string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.HemoglobinLevel, &label, &rec.TestDate); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.Result, err = anemia.ParseClass(label)
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
