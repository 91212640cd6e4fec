package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

func TestOrgConfigRepository_Get(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrgConfigRepository(db)

	raw := []byte(`{
		"channels": [
			{"id": "slack", "type": "webhook", "enabled": true, "destination": "https://hooks.slack.com/services/T/B/X"}
		],
		"deduplication": {"enabled": true, "windowMs": 300000}
	}`)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"acme"}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*[]byte) = raw
			*dest[1].(*string) = "7"
			return nil
		}})

	cfg, err := repo.Get(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.OrganizationID)
	assert.Equal(t, "7", cfg.Version)
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, types.ChannelWebhook, cfg.Channels[0].Kind)
	assert.True(t, cfg.Deduplication.Enabled)
	assert.Equal(t, 300000, cfg.Deduplication.WindowMs)
}

func TestOrgConfigRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrgConfigRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(context.Background(), "ghost")
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundOrgConfig))
}

func TestOrgConfigRepository_Get_CorruptJSON(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrgConfigRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*[]byte) = []byte(`{"channels": 5}`)
			*dest[1].(*string) = "1"
			return nil
		}})

	_, err := repo.Get(context.Background(), "acme")
	assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidConfig))
}

func TestOrgConfigRepository_Get_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrgConfigRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("conn closed")})

	_, err := repo.Get(context.Background(), "acme")
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestOrgConfigRepository_Put(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrgConfigRepository(db)

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return containsAll(sql, "INSERT INTO organization_configs", "ON CONFLICT")
	}), mock.MatchedBy(func(args []any) bool {
		return len(args) == 3 && args[0] == "acme" && args[2] == "1"
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Put(context.Background(), "acme", &types.OrganizationConfig{})
	require.NoError(t, err)
	db.AssertExpectations(t)
}
