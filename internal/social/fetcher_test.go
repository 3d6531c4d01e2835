package social

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docpulse/docpulse/pkg/socialapi"
)

func apiPosts(ids ...string) []socialapi.Post {
	posts := make([]socialapi.Post, len(ids))
	for i, id := range ids {
		posts[i] = socialapi.Post{
			ID:        id,
			Text:      "post " + id,
			CreatedAt: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		}
	}
	return posts
}

func trackAccount(t *testing.T, f *Fetcher, api *mockAPI, handle string) {
	t.Helper()
	api.On("ResolveHandle", mock.Anything, handle).
		Return(&socialapi.Account{ID: "id-" + handle, Handle: handle, DisplayName: handle}, nil).Once()
	_, err := f.Track(context.Background(), handle)
	require.NoError(t, err)
}

func TestRunCycle_TrackedAccounts(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	f := NewFetcher(st, api, nil, testSocialConfig())

	trackAccount(t, f, api, "marketmaven")
	trackAccount(t, f, api, "ratesdesk")

	api.On("ResolveHandle", mock.Anything, "marketmaven").
		Return(&socialapi.Account{ID: "id-marketmaven", Handle: "marketmaven", DisplayName: "Market Maven"}, nil)
	api.On("ResolveHandle", mock.Anything, "ratesdesk").
		Return(&socialapi.Account{ID: "id-ratesdesk", Handle: "ratesdesk", DisplayName: "Rates Desk"}, nil)
	api.On("RecentPosts", mock.Anything, "id-marketmaven", 10).Return(apiPosts("m1", "m2"), nil)
	api.On("RecentPosts", mock.Anything, "id-ratesdesk", 10).Return(apiPosts("r1"), nil)

	status, err := f.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CycleCompleted, status.State)
	assert.Equal(t, 2, status.Accounts)
	assert.Equal(t, 2, status.Succeeded)
	assert.Equal(t, 0, status.Failed)
	assert.Equal(t, 3, status.PostsStored)
	assert.False(t, status.Synthetic)

	count, err := st.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	acct, err := st.GetAccount(context.Background(), "marketmaven")
	require.NoError(t, err)
	assert.NotNil(t, acct.LastFetchedAt)
}

func TestRunCycle_RefetchIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	f := NewFetcher(st, api, nil, testSocialConfig())

	trackAccount(t, f, api, "chipcycle")
	api.On("ResolveHandle", mock.Anything, "chipcycle").
		Return(&socialapi.Account{ID: "id-chipcycle", Handle: "chipcycle", DisplayName: "Chip Cycle"}, nil)
	api.On("RecentPosts", mock.Anything, "id-chipcycle", 10).Return(apiPosts("c1", "c2"), nil)

	_, err := f.RunCycle(context.Background())
	require.NoError(t, err)
	_, err = f.RunCycle(context.Background())
	require.NoError(t, err)

	count, err := st.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunCycle_FallbackSubsetWhenNothingTracked(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	f := NewFetcher(st, api, nil, testSocialConfig())

	api.On("ResolveHandle", mock.Anything, mock.Anything).
		Return(&socialapi.Account{ID: "id-x", Handle: "x", DisplayName: "X"}, nil)
	api.On("RecentPosts", mock.Anything, "id-x", 10).Return(apiPosts(), nil)

	status, err := f.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fallbackSubsetSize, status.Accounts)
	assert.Equal(t, CycleCompleted, status.State)
}

func TestRunCycle_PartialFailureIsolated(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	f := NewFetcher(st, api, nil, testSocialConfig())

	trackAccount(t, f, api, "valuehunter")
	trackAccount(t, f, api, "macrowatch")

	api.On("ResolveHandle", mock.Anything, "valuehunter").
		Return(&socialapi.Account{ID: "id-valuehunter", Handle: "valuehunter", DisplayName: "Value Hunter"}, nil)
	api.On("RecentPosts", mock.Anything, "id-valuehunter", 10).Return(apiPosts("v1"), nil)
	api.On("ResolveHandle", mock.Anything, "macrowatch").
		Return(nil, socialapi.ErrRateLimited)

	status, err := f.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CyclePartiallyFailed, status.State)
	assert.Equal(t, 1, status.Succeeded)
	assert.Equal(t, 1, status.Failed)

	count, err := st.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCycle_WholeCycleFailureSeedsSamples(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	f := NewFetcher(st, api, EmbeddedSamples(), testSocialConfig())

	api.On("ResolveHandle", mock.Anything, mock.Anything).Return(nil, socialapi.ErrRateLimited)

	status, err := f.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CyclePartiallyFailed, status.State)
	assert.True(t, status.Synthetic)

	count, err := st.CountPosts(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 25)

	// A second failed cycle must not duplicate the samples.
	status, err = f.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Synthetic)

	again, err := st.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, count, again)
}

func TestRunCycle_SamplesDisabled(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	cfg := testSocialConfig()
	cfg.DisableSamples = true
	f := NewFetcher(st, api, EmbeddedSamples(), cfg)

	api.On("ResolveHandle", mock.Anything, mock.Anything).Return(nil, socialapi.ErrRateLimited)

	status, err := f.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Synthetic)

	count, err := st.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTrack_UnknownHandle(t *testing.T) {
	st := newTestStore(t)
	api := &mockAPI{}
	f := NewFetcher(st, api, nil, testSocialConfig())

	api.On("ResolveHandle", mock.Anything, "nobody").Return(nil, socialapi.ErrAccountNotFound)

	_, err := f.Track(context.Background(), "nobody")
	assert.ErrorIs(t, err, socialapi.ErrAccountNotFound)
}

func TestStatus_StartsIdle(t *testing.T) {
	f := NewFetcher(newTestStore(t), &mockAPI{}, nil, testSocialConfig())
	assert.Equal(t, CycleIdle, f.Status().State)
}
