package pipeline

import (
	"strings"

	"github.com/docpulse/docpulse/internal/model"
)

// Default narrative used when the service omits a scalar field. Arrays
// default to empty collections, never null.
const insufficientOutlook = "Insufficient information to determine a market outlook."

// NormalizeAnalysis clamps and defaults a parsed analysis in place. Applied
// unconditionally to every service response: scores outside [1,5] and
// confidences outside [0,1] are clamped regardless of what came back.
func NormalizeAnalysis(a *model.DocumentAnalysis) {
	a.Sentiment = normalizeSentiment(a.Sentiment)
	a.Themes = ensureSlice(a.Themes)
	a.Tickers = ensureSlice(a.Tickers)
	a.Recommendations = ensureSlice(a.Recommendations)
	a.SharedIdeas = ensureSlice(a.SharedIdeas)
	a.DivergingIdeas = ensureSlice(a.DivergingIdeas)
	a.KeyPoints = ensureSlice(a.KeyPoints)
	a.MarketSectors = ensureSlice(a.MarketSectors)
	a.KeyMetrics = ensureSlice(a.KeyMetrics)
	a.InvestmentRisks = ensureSlice(a.InvestmentRisks)
	a.PriceTrends = ensureSlice(a.PriceTrends)
	if strings.TrimSpace(a.MarketOutlook) == "" {
		a.MarketOutlook = insufficientOutlook
	}
}

// NormalizePostAnalysis clamps and defaults a parsed post analysis in place.
func NormalizePostAnalysis(a *model.PostAnalysis) {
	a.Sentiment = normalizeSentiment(a.Sentiment)
	a.Themes = ensureSlice(a.Themes)
	a.Tickers = ensureSlice(a.Tickers)
	a.KeyPoints = ensureSlice(a.KeyPoints)
}

// DefaultAnalysis builds the neutral fallback stored when the batch has no
// analyzable content or the analysis service failed. Degraded marks it as a
// placeholder distinguishable from a genuine analysis.
func DefaultAnalysis(batchID, reason string) *model.DocumentAnalysis {
	a := &model.DocumentAnalysis{
		BatchID:   batchID,
		Summary:   reason,
		Sentiment: model.NeutralSentiment(),
		Degraded:  true,
	}
	NormalizeAnalysis(a)
	return a
}

// DefaultPostAnalysis builds the neutral placeholder for an account whose
// posts could not be analyzed.
func DefaultPostAnalysis(username, reason string) *model.PostAnalysis {
	a := &model.PostAnalysis{
		Username:  username,
		Summary:   reason,
		Sentiment: model.NeutralSentiment(),
		Degraded:  true,
	}
	NormalizePostAnalysis(a)
	return a
}

func normalizeSentiment(s model.Sentiment) model.Sentiment {
	// A zero score means the field was absent entirely; treat as neutral
	// rather than clamping to the floor.
	if s.Score == 0 {
		s.Score = 3
	}
	if s.Score < model.SentimentScoreMin {
		s.Score = model.SentimentScoreMin
	}
	if s.Score > model.SentimentScoreMax {
		s.Score = model.SentimentScoreMax
	}
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	if s.Label == "" {
		s.Label = "neutral"
	}
	return s
}

func ensureSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// cleanJSON strips markdown code fences and surrounding prose from a model
// response, leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
