// Package recordstest holds the behavior every records.Store backend must
// share. Backend packages call Run from their own tests.
package recordstest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemocheck/internal/anemia"
	"hemocheck/internal/records"
)

// Factory returns an empty store. The store is closed by the suite.
type Factory func(t *testing.T) records.Store

// Run executes the shared suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateLookupVerify", func(t *testing.T) { testCreateLookupVerify(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("MissingCredentials", func(t *testing.T) { testMissingCredentials(t, newStore(t)) })
	t.Run("AppendUnknownUser", func(t *testing.T) { testAppendUnknownUser(t, newStore(t)) })
	t.Run("AppendAndList", func(t *testing.T) { testAppendAndList(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
}

func testCreateLookupVerify(t *testing.T, s records.Store) {
	defer s.Close()
	ctx := context.Background()

	id, err := s.Create(ctx, " Ana@Example.com ", "s3cret")
	require.NoError(t, err)
	assert.Positive(t, id)

	acct, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, acct.UserID)
	assert.Equal(t, "ana@example.com", acct.Email)
	assert.NotEqual(t, "s3cret", acct.PasswordHash, "password must be stored hashed")
	assert.False(t, acct.CreatedAt.IsZero())

	got, err := s.Verify(ctx, "ANA@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.Verify(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, records.ErrInvalidCredentials)

	_, err = s.Verify(ctx, "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, records.ErrUserNotFound)

	_, err = s.Lookup(ctx, id+1000)
	assert.ErrorIs(t, err, records.ErrUserNotFound)
}

func testDuplicateEmail(t *testing.T, s records.Store) {
	defer s.Close()
	ctx := context.Background()

	first, err := s.Create(ctx, "bo@example.com", "a")
	require.NoError(t, err)

	_, err = s.Create(ctx, "BO@example.com", "b")
	assert.ErrorIs(t, err, records.ErrEmailTaken)

	second, err := s.Create(ctx, "cy@example.com", "c")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func testMissingCredentials(t *testing.T, s records.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Create(ctx, "  ", "pw")
	assert.ErrorIs(t, err, records.ErrMissingCredentials)
	_, err = s.Create(ctx, "dee@example.com", "")
	assert.ErrorIs(t, err, records.ErrMissingCredentials)
	_, err = s.Verify(ctx, "", "pw")
	assert.ErrorIs(t, err, records.ErrMissingCredentials)
}

func testAppendUnknownUser(t *testing.T, s records.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Append(ctx, 424242, 10.5, anemia.Moderate)
	assert.ErrorIs(t, err, records.ErrUserNotFound)

	list, err := s.List(ctx, 424242)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testAppendAndList(t *testing.T, s records.Store) {
	defer s.Close()
	ctx := context.Background()

	user, err := s.Create(ctx, "eve@example.com", "pw")
	require.NoError(t, err)
	other, err := s.Create(ctx, "fay@example.com", "pw")
	require.NoError(t, err)

	entries := []struct {
		hb    float64
		class anemia.Class
	}{
		{10.5, anemia.Moderate},
		{12.4, anemia.Normal},
		{7.1, anemia.Severe},
	}
	var ids []int64
	for _, e := range entries {
		id, err := s.Append(ctx, user, e.hb, e.class)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err = s.Append(ctx, other, 14, anemia.Normal)
	require.NoError(t, err)

	_, err = s.Append(ctx, user, 11, anemia.Class(9))
	assert.Error(t, err, "unknown class must be rejected")

	list, err := s.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, len(entries))
	for i, rec := range list {
		assert.Equal(t, ids[i], rec.ID)
		assert.Equal(t, user, rec.UserID)
		assert.Equal(t, entries[i].hb, rec.HemoglobinLevel)
		assert.Equal(t, entries[i].class, rec.Result)
		assert.False(t, rec.TestDate.IsZero())
		if i > 0 {
			assert.False(t, rec.TestDate.Before(list[i-1].TestDate), "records must be ordered by test date")
			assert.Greater(t, rec.ID, list[i-1].ID)
		}
	}

	otherList, err := s.List(ctx, other)
	require.NoError(t, err)
	assert.Len(t, otherList, 1)
}

func testConcurrentAppends(t *testing.T, s records.Store) {
	defer s.Close()
	ctx := context.Background()

	user, err := s.Create(ctx, "gus@example.com", "pw")
	require.NoError(t, err)

	const n = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int64]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Append(ctx, user, 9+float64(i)/10, anemia.Moderate)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, n, "record ids must be unique")
	list, err := s.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, n)
}
