package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"hemocheck/internal/anemia"
	"hemocheck/internal/records"
)

// Append stores a prediction for userID. The user check and the insert share
// one write transaction, so a record can never reference a missing user.
func (s *Store) Append(ctx context.Context, userID int64, hemoglobin float64, result anemia.Class) (int64, error) {
	if !result.Valid() {
		return 0, fmt.Errorf("invalid anemia class %d", int(result))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var recordID int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(usersBucket)).Get(itob(userID)) == nil {
			return records.ErrUserNotFound
		}

		predictions := tx.Bucket([]byte(predictionsBucket))
		seq, err := predictions.NextSequence()
		if err != nil {
			return fmt.Errorf("next record id: %w", err)
		}
		recordID = int64(seq)

		userBucket, err := predictions.CreateBucketIfNotExists(itob(userID))
		if err != nil {
			return fmt.Errorf("create user ledger bucket: %w", err)
		}

		data, err := json.Marshal(records.PredictionRecord{
			ID:              recordID,
			UserID:          userID,
			HemoglobinLevel: hemoglobin,
			Result:          result,
			TestDate:        s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}
		return userBucket.Put(itob(recordID), data)
	})
	if err != nil {
		return 0, err
	}
	return recordID, nil
}

// List returns the user's records ordered by TestDate, then ID. An unknown
// user has an empty history.
func (s *Store) List(ctx context.Context, userID int64) ([]records.PredictionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []records.PredictionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket([]byte(predictionsBucket)).Bucket(itob(userID))
		if userBucket == nil {
			return nil
		}

		// Keys are big-endian record ids, so the cursor walks in id order.
		return userBucket.ForEach(func(k, v []byte) error {
			var rec records.PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %d: %w", btoi(k), err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TestDate.Before(out[j].TestDate)
	})
	return out, nil
}
