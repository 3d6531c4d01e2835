package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/store"
)

func newTestAnalyzer(t *testing.T, st store.Store, m *mockClient) *Analyzer {
	t.Helper()
	return NewAnalyzer(st, m,
		config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 4096},
		config.AnalysisConfig{MaxPerDocument: 20000, MaxTotal: 40000, MaxMultimodalBytes: 4 * 1024 * 1024},
	)
}

func seedBatch(t *testing.T, st store.Store) *model.DocumentBatch {
	t.Helper()
	b := &model.DocumentBatch{Name: "q3 research"}
	require.NoError(t, st.CreateBatch(context.Background(), b))
	return b
}

func seedExtractedDoc(t *testing.T, st store.Store, batchID, filename, text string) *model.Document {
	t.Helper()
	d := &model.Document{
		BatchID:       batchID,
		Filename:      filename,
		FileType:      "txt",
		FilePath:      "/dev/null",
		ExtractedText: text,
		Extraction:    model.ExtractionStatusExtracted,
		Kind:          model.ContentKindPlainText,
	}
	require.NoError(t, st.CreateDocument(context.Background(), d))
	return d
}

func TestAnalyzeBatch_EmptyBatchSkipsService(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)
	b := seedBatch(t, st)

	got, err := a.AnalyzeBatch(context.Background(), b.ID)
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Equal(t, noDocumentsSummary, got.Summary)
	assert.Equal(t, model.NeutralSentiment(), got.Sentiment)
	m.AssertNumberOfCalls(t, "CreateMessage", 0)

	cached, err := st.GetAnalysis(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, cached.Degraded)
}

func TestAnalyzeBatch_NoAnalyzableContentSkipsService(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)
	b := seedBatch(t, st)

	d := &model.Document{
		BatchID:    b.ID,
		Filename:   "scan.pdf",
		FileType:   "pdf",
		FilePath:   "/dev/null",
		Extraction: model.ExtractionStatusExtracted,
		Kind:       model.ContentKindBinary,
	}
	require.NoError(t, st.CreateDocument(context.Background(), d))

	got, err := a.AnalyzeBatch(context.Background(), b.ID)
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Equal(t, noAnalyzableSummary, got.Summary)
	m.AssertNumberOfCalls(t, "CreateMessage", 0)
}

func TestAnalyzeBatch_Success(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)
	b := seedBatch(t, st)
	seedExtractedDoc(t, st, b.ID, "earnings.txt", "Revenue grew 40 percent year over year driven by cloud demand.")

	m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("```json\n"+
		`{"summary":"Strong quarter","themes":["cloud"],"tickers":["MSFT"],`+
		`"sentiment":{"score":9,"label":"bullish","confidence":0.9},`+
		`"market_outlook":"Positive"}`+"\n```"), nil)

	got, err := a.AnalyzeBatch(context.Background(), b.ID)
	require.NoError(t, err)

	assert.False(t, got.Degraded)
	assert.Equal(t, "Strong quarter", got.Summary)
	assert.Equal(t, []string{"cloud"}, got.Themes)
	// Out-of-range scores are always clamped.
	assert.Equal(t, 5.0, got.Sentiment.Score)
	assert.NotNil(t, got.Recommendations)

	cached, err := st.GetAnalysis(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Strong quarter", cached.Summary)
	m.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestAnalyzeBatch_ServiceFailureStoresDegraded(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)
	b := seedBatch(t, st)
	seedExtractedDoc(t, st, b.ID, "note.txt", "Margins compressed on input costs across the sector this quarter.")

	m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	got, err := a.AnalyzeBatch(context.Background(), b.ID)
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Equal(t, serviceFailureSummary, got.Summary)
	assert.Equal(t, model.NeutralSentiment(), got.Sentiment)

	cached, err := st.GetAnalysis(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, cached.Degraded)
}

func TestAnalyzeBatch_UnparseableResponseStoresDegraded(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)
	b := seedBatch(t, st)
	seedExtractedDoc(t, st, b.ID, "note.txt", "Fed commentary points to a longer hold on current policy rates.")

	m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I cannot produce JSON today"), nil)

	got, err := a.AnalyzeBatch(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
}

func TestAnalyzeBatch_UnknownBatch(t *testing.T) {
	st := newTestStore(t)
	a := newTestAnalyzer(t, st, &mockClient{})

	_, err := a.AnalyzeBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzePosts_Success(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)

	m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"summary":"Bullish on semis","themes":["semiconductors"],"tickers":["NVDA"],`+
			`"sentiment":{"score":4,"label":"bullish","confidence":0.8},"key_points":["capex cycle"]}`), nil)

	posts := []model.SocialPost{
		{AuthorHandle: "marketmaven", Text: "NVDA capex cycle still early", PostedAt: time.Now()},
	}
	got, err := a.AnalyzePosts(context.Background(), "marketmaven", posts)
	require.NoError(t, err)

	assert.False(t, got.Degraded)
	assert.Equal(t, "marketmaven", got.Username)
	assert.Equal(t, []string{"NVDA"}, got.Tickers)

	cached, err := st.GetPostAnalysis(context.Background(), "marketmaven")
	require.NoError(t, err)
	assert.Equal(t, "Bullish on semis", cached.Summary)
}

func TestAnalyzePosts_ServiceFailureStoresDegraded(t *testing.T) {
	st := newTestStore(t)
	m := &mockClient{}
	a := newTestAnalyzer(t, st, m)

	m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	got, err := a.AnalyzePosts(context.Background(), "marketmaven", []model.SocialPost{
		{AuthorHandle: "marketmaven", Text: "rates higher for longer", PostedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, model.NeutralSentiment(), got.Sentiment)
}

func TestFormatPosts(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	out := FormatPosts([]model.SocialPost{
		{AuthorHandle: "alpha", Text: "first take", PostedAt: ts},
		{AuthorHandle: "alpha", Text: "second take", PostedAt: ts.Add(time.Hour)},
	})

	assert.Contains(t, out, "--- @alpha at 2026-03-14 09:30 ---\nfirst take")
	assert.Contains(t, out, "second take")
}
