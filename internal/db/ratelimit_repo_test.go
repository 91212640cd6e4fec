package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

func newRateLimitFixture(now time.Time) (*RateLimitRepository, *mockDBTX, *mockTx) {
	db := new(mockDBTX)
	tx := &mockTx{db: db}
	repo := NewRateLimitRepository(&mockBeginner{tx: tx}, db, fixedClock{now})
	return repo, db, tx
}

func countRow(count int, oldest *time.Time) *mockRow {
	return &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = count
		*dest[1].(**time.Time) = oldest
		return nil
	}}
}

func TestRateLimitRepository_Admit_Allowed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-20 * time.Second)
	repo, db, tx := newRateLimitFixture(now)

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return containsAll(sql, "pg_advisory_xact_lock")
	}), []any{"acme"}).Return(pgconn.NewCommandTag("SELECT 1"), nil)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"acme", now.Add(-time.Minute)}).
		Return(countRow(3, &oldest))
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return containsAll(sql, "INSERT INTO rate_limit_hits")
	}), []any{"acme", now}).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	d, err := repo.Admit(context.Background(), "acme", 10, time.Minute)
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 6, d.Remaining)
	assert.Equal(t, oldest.Add(time.Minute), d.ResetTime)
	assert.True(t, tx.committed)
	db.AssertExpectations(t)
}

func TestRateLimitRepository_Admit_Rejected(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-45 * time.Second)
	repo, db, tx := newRateLimitFixture(now)

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return containsAll(sql, "pg_advisory_xact_lock")
	}), mock.Anything).Return(pgconn.NewCommandTag("SELECT 1"), nil)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(countRow(10, &oldest))

	d, err := repo.Admit(context.Background(), "acme", 10, time.Minute)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, 10, d.Count)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, now.Add(15*time.Second), d.ResetTime)
	assert.True(t, tx.committed)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return containsAll(sql, "INSERT")
	}), mock.Anything)
}

func TestRateLimitRepository_Admit_BeginError(t *testing.T) {
	repo := NewRateLimitRepository(&mockBeginner{err: errors.New("pool exhausted")}, new(mockDBTX), nil)

	_, err := repo.Admit(context.Background(), "acme", 10, time.Minute)
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestRateLimitRepository_Admit_QueryErrorRollsBack(t *testing.T) {
	repo, db, tx := newRateLimitFixture(time.Now().UTC())

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("SELECT 1"), nil)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("timeout")})

	_, err := repo.Admit(context.Background(), "acme", 10, time.Minute)
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestRateLimitRepository_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	db := new(mockDBTX)
	repo := NewRateLimitRepository(&mockBeginner{}, db, fixedClock{now})

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{now.Add(-time.Hour)}).
		Return(pgconn.NewCommandTag("DELETE 42"), nil)

	n, err := repo.Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
