package model

import "time"

// Sentiment scoring bounds enforced by normalization.
const (
	SentimentScoreMin = 1.0
	SentimentScoreMax = 5.0
)

// Sentiment holds a 1-5 sentiment score with a label and confidence.
type Sentiment struct {
	Score      float64 `json:"score"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NeutralSentiment is the default used whenever the analysis service fails
// or there is nothing to analyze.
func NeutralSentiment() Sentiment {
	return Sentiment{Score: 3, Label: "neutral", Confidence: 0}
}

// DocumentAnalysis is the structured insight for a batch, upserted by
// BatchID with no history. Degraded marks results synthesized locally
// (service failure, empty batch) so they are distinguishable from genuine
// analyses.
type DocumentAnalysis struct {
	BatchID         string    `json:"batch_id"`
	Summary         string    `json:"summary"`
	Themes          []string  `json:"themes"`
	Tickers         []string  `json:"tickers"`
	Recommendations []string  `json:"recommendations"`
	Sentiment       Sentiment `json:"sentiment"`
	SharedIdeas     []string  `json:"shared_ideas"`
	DivergingIdeas  []string  `json:"diverging_ideas"`
	KeyPoints       []string  `json:"key_points"`
	MarketSectors   []string  `json:"market_sectors"`
	MarketOutlook   string    `json:"market_outlook"`
	KeyMetrics      []string  `json:"key_metrics"`
	InvestmentRisks []string  `json:"investment_risks"`
	PriceTrends     []string  `json:"price_trends"`
	Degraded        bool      `json:"degraded,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// DocumentSummary is a cached per-document summary, independent of the
// batch-level analysis. One per document, upserted by DocumentID.
type DocumentSummary struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Summary    string    `json:"summary"`
	Degraded   bool      `json:"degraded,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PostAnalysis is the structured insight for one account's recent posts,
// upserted by Username. Degraded marks placeholder results synthesized when
// no posts were available.
type PostAnalysis struct {
	Username  string    `json:"username"`
	Summary   string    `json:"summary"`
	Themes    []string  `json:"themes"`
	Tickers   []string  `json:"tickers"`
	Sentiment Sentiment `json:"sentiment"`
	KeyPoints []string  `json:"key_points"`
	Degraded  bool      `json:"degraded,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
