package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/store"
	"github.com/docpulse/docpulse/pkg/anthropic"
)

// Degraded-result summaries. The Degraded flag on the stored record is the
// marker that separates these placeholders from genuine analyses.
const (
	noDocumentsSummary    = "No documents available for analysis."
	noAnalyzableSummary   = "None of the documents in this batch contained analyzable text."
	serviceFailureSummary = "The analysis service was unavailable; a neutral placeholder result was stored."
)

const analysisSystemText = `You are a financial research analyst. You receive one or more investment research documents and respond with a single JSON object with exactly these fields:
{
  "summary": string,
  "themes": [string],
  "tickers": [string],
  "recommendations": [string],
  "sentiment": {"score": number from 1 to 5, "label": string, "confidence": number from 0 to 1},
  "shared_ideas": [string],
  "diverging_ideas": [string],
  "key_points": [string],
  "market_sectors": [string],
  "market_outlook": string,
  "key_metrics": [string],
  "investment_risks": [string],
  "price_trends": [string]
}
Return only valid JSON, no prose.`

const postsSystemText = `You are a financial research analyst. You receive recent social media posts from one account and respond with a single JSON object with exactly these fields:
{
  "summary": string,
  "themes": [string],
  "tickers": [string],
  "sentiment": {"score": number from 1 to 5, "label": string, "confidence": number from 0 to 1},
  "key_points": [string]
}
Return only valid JSON, no prose.`

// Analyzer orchestrates calls to the external analysis service and caches
// the normalized results. Service failures never propagate: every path
// resolves to a stored result, degraded if necessary.
type Analyzer struct {
	store store.Store
	ai    anthropic.Client
	aiCfg config.AnthropicConfig
	cfg   config.AnalysisConfig
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(st store.Store, ai anthropic.Client, aiCfg config.AnthropicConfig, cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{store: st, ai: ai, aiCfg: aiCfg, cfg: cfg}
}

// AnalyzeBatch prepares a batch's extracted documents, sends them to the
// analysis service and upserts the normalized result keyed by batch ID. An
// empty batch or a batch with no analyzable content stores a degraded
// default without ever calling the service.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, batchID string) (*model.DocumentAnalysis, error) {
	if _, err := a.store.GetBatch(ctx, batchID); err != nil {
		return nil, eris.Wrapf(err, "analyze batch %s", batchID)
	}

	docs, err := a.store.ListDocuments(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "analyze batch %s: list documents", batchID)
	}

	var batchDocs []BatchDocument
	for _, d := range docs {
		if d.Extraction != model.ExtractionStatusExtracted {
			continue
		}
		batchDocs = append(batchDocs, BatchDocument{
			Filename: d.Filename,
			Kind:     d.Kind,
			Text:     d.ExtractedText,
		})
	}

	if len(docs) == 0 {
		return a.storeDegraded(ctx, batchID, noDocumentsSummary)
	}

	prep := PrepareBatch(batchDocs, a.cfg.MaxPerDocument, a.cfg.MaxTotal)
	if !prep.Analyzable {
		return a.storeDegraded(ctx, batchID, noAnalyzableSummary)
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.aiCfg.Model,
		MaxTokens: a.aiCfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(analysisSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: "Analyze the following documents as one research batch.\n\n" + prep.Text},
		},
	})
	if err != nil {
		zap.L().Warn("analyze batch: service call failed",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		return a.storeDegraded(ctx, batchID, serviceFailureSummary)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		zap.L().Warn("analyze batch: empty response", zap.String("batch_id", batchID))
		return a.storeDegraded(ctx, batchID, serviceFailureSummary)
	}

	var analysis model.DocumentAnalysis
	if err := json.Unmarshal([]byte(cleanJSON(text)), &analysis); err != nil {
		zap.L().Warn("analyze batch: unparseable response",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		return a.storeDegraded(ctx, batchID, serviceFailureSummary)
	}

	analysis.BatchID = batchID
	analysis.Degraded = false
	NormalizeAnalysis(&analysis)

	if err := a.store.UpsertAnalysis(ctx, &analysis); err != nil {
		return nil, eris.Wrapf(err, "analyze batch %s: store result", batchID)
	}

	resp.Usage.LogCost(a.aiCfg.Model, "batch_analysis")
	return &analysis, nil
}

// AnalyzePosts formats an account's posts, sends them to the analysis
// service and upserts the normalized result keyed by username. Service
// failures store a degraded placeholder instead of erroring.
func (a *Analyzer) AnalyzePosts(ctx context.Context, username string, posts []model.SocialPost) (*model.PostAnalysis, error) {
	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.aiCfg.Model,
		MaxTokens: a.aiCfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(postsSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Analyze the recent posts from @%s.\n\n%s", username, FormatPosts(posts))},
		},
	})
	if err != nil {
		zap.L().Warn("analyze posts: service call failed",
			zap.String("username", username),
			zap.Error(err),
		)
		return a.storeDegradedPosts(ctx, username, serviceFailureSummary)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return a.storeDegradedPosts(ctx, username, serviceFailureSummary)
	}

	var analysis model.PostAnalysis
	if err := json.Unmarshal([]byte(cleanJSON(text)), &analysis); err != nil {
		zap.L().Warn("analyze posts: unparseable response",
			zap.String("username", username),
			zap.Error(err),
		)
		return a.storeDegradedPosts(ctx, username, serviceFailureSummary)
	}

	analysis.Username = username
	analysis.Degraded = false
	NormalizePostAnalysis(&analysis)

	if err := a.store.UpsertPostAnalysis(ctx, &analysis); err != nil {
		return nil, eris.Wrapf(err, "analyze posts %s: store result", username)
	}

	resp.Usage.LogCost(a.aiCfg.Model, "post_analysis")
	return &analysis, nil
}

// FormatPosts renders posts into a prompt block, newest first as stored.
func FormatPosts(posts []model.SocialPost) string {
	var b strings.Builder
	for i, p := range posts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- @%s at %s ---\n%s", p.AuthorHandle, p.PostedAt.Format("2006-01-02 15:04"), p.Text)
	}
	return b.String()
}

func (a *Analyzer) storeDegraded(ctx context.Context, batchID, reason string) (*model.DocumentAnalysis, error) {
	analysis := DefaultAnalysis(batchID, reason)
	if err := a.store.UpsertAnalysis(ctx, analysis); err != nil {
		return nil, eris.Wrapf(err, "store degraded analysis for batch %s", batchID)
	}
	return analysis, nil
}

func (a *Analyzer) storeDegradedPosts(ctx context.Context, username, reason string) (*model.PostAnalysis, error) {
	analysis := DefaultPostAnalysis(username, reason)
	if err := a.store.UpsertPostAnalysis(ctx, analysis); err != nil {
		return nil, eris.Wrapf(err, "store degraded post analysis for %s", username)
	}
	return analysis, nil
}
