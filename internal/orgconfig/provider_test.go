package orgconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Get(ctx context.Context, orgID string) (*types.OrganizationConfig, error) {
	args := m.Called(ctx, orgID)
	cfg, _ := args.Get(0).(*types.OrganizationConfig)
	return cfg, args.Error(1)
}

func TestRepositoryProvider_Direct(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "acme").Return(&types.OrganizationConfig{OrganizationID: "acme"}, nil)

	cfg, err := NewRepositoryProvider(repo).GetOrganizationConfig(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.OrganizationID)
	repo.AssertNotCalled(t, "Get", mock.Anything, DefaultOrganization)
}

func TestRepositoryProvider_FallsBackToDefault(t *testing.T) {
	repo := new(mockRepository)
	notFound := types.NewAppError(types.ErrCodeNotFoundOrgConfig, "missing", nil)
	repo.On("Get", mock.Anything, "acme").Return(nil, notFound)
	repo.On("Get", mock.Anything, DefaultOrganization).Return(&types.OrganizationConfig{OrganizationID: DefaultOrganization}, nil)

	cfg, err := NewRepositoryProvider(repo).GetOrganizationConfig(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, DefaultOrganization, cfg.OrganizationID)
}

func TestRepositoryProvider_OtherErrorsPropagate(t *testing.T) {
	repo := new(mockRepository)
	dbErr := types.NewAppError(types.ErrCodeInternalDB, "down", errors.New("conn refused"))
	repo.On("Get", mock.Anything, "acme").Return(nil, dbErr)

	_, err := NewRepositoryProvider(repo).GetOrganizationConfig(context.Background(), "acme")
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))
	assert.NoError(t, Validate(&types.OrganizationConfig{}))
	assert.NoError(t, Validate(&types.OrganizationConfig{
		Channels: []types.ChannelConfig{
			{ChannelID: "a", Kind: types.ChannelWebhook, Destination: "https://example.com"},
			{ChannelID: "b", Kind: types.ChannelEmail, Destination: "ops@example.com"},
		},
	}))
}

func TestValidate_DedupWindowBound(t *testing.T) {
	maxMs := int(types.MaxDedupWindow / time.Millisecond)

	assert.NoError(t, Validate(&types.OrganizationConfig{
		Deduplication: types.DeduplicationConfig{Enabled: true, WindowMs: maxMs},
	}))
	assert.Error(t, Validate(&types.OrganizationConfig{
		Deduplication: types.DeduplicationConfig{Enabled: true, WindowMs: maxMs + 1},
	}))
}
