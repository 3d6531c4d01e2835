package social

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/pipeline"
	"github.com/docpulse/docpulse/internal/store"
	"github.com/docpulse/docpulse/pkg/anthropic"
)

func newAccountAnalyzer(t *testing.T, st store.Store, ai *mockAI) *AccountAnalyzer {
	t.Helper()
	p := pipeline.NewAnalyzer(st, ai,
		config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 4096},
		config.AnalysisConfig{MaxPerDocument: 20000, MaxTotal: 40000},
	)
	return NewAccountAnalyzer(st, p, testSocialConfig())
}

func TestAccountAnalyze_Untracked(t *testing.T) {
	st := newTestStore(t)
	a := newAccountAnalyzer(t, st, &mockAI{})

	_, err := a.Analyze(context.Background(), "stranger")
	assert.ErrorIs(t, err, ErrUntrackedAccount)
}

func TestAccountAnalyze_TrackedNoPostsStoresPlaceholder(t *testing.T) {
	st := newTestStore(t)
	ai := &mockAI{}
	a := newAccountAnalyzer(t, st, ai)

	require.NoError(t, st.UpsertAccount(context.Background(), &model.SocialAccount{
		Handle: "marketmaven", DisplayName: "Market Maven",
	}))

	got, err := a.Analyze(context.Background(), "marketmaven")
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Equal(t, model.NeutralSentiment(), got.Sentiment)
	assert.Contains(t, got.Summary, "rate limiting")
	ai.AssertNumberOfCalls(t, "CreateMessage", 0)

	// The placeholder is persisted, not just returned.
	cached, err := st.GetPostAnalysis(context.Background(), "marketmaven")
	require.NoError(t, err)
	assert.True(t, cached.Degraded)
}

func TestAccountAnalyze_WithPosts(t *testing.T) {
	st := newTestStore(t)
	ai := &mockAI{}
	a := newAccountAnalyzer(t, st, ai)

	require.NoError(t, st.InsertPost(context.Background(), &model.SocialPost{
		ExternalPostID: "p1",
		Text:           "NVDA backlog still growing",
		Author:         "Chip Cycle",
		AuthorHandle:   "chipcycle",
		PostedAt:       time.Now().UTC(),
	}))

	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"summary":"Bullish semis","themes":["semis"],` +
			`"tickers":["NVDA"],"sentiment":{"score":4,"label":"bullish","confidence":0.7},"key_points":[]}`}},
	}, nil)

	got, err := a.Analyze(context.Background(), "chipcycle")
	require.NoError(t, err)

	assert.False(t, got.Degraded)
	assert.Equal(t, "chipcycle", got.Username)
	assert.Equal(t, []string{"NVDA"}, got.Tickers)
}
