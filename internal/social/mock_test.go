package social

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/store"
	"github.com/docpulse/docpulse/pkg/anthropic"
	"github.com/docpulse/docpulse/pkg/socialapi"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ResolveHandle(ctx context.Context, handle string) (*socialapi.Account, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*socialapi.Account), args.Error(1)
}

func (m *mockAPI) RecentPosts(ctx context.Context, accountID string, limit int) ([]socialapi.Post, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]socialapi.Post), args.Error(1)
}

type mockAI struct {
	mock.Mock
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "social_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func testSocialConfig() config.SocialConfig {
	return config.SocialConfig{
		FetchIntervalMins: 30,
		PostsPerAccount:   10,
		MinStoredPosts:    25,
	}
}
