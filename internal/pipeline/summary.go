package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/store"
	"github.com/docpulse/docpulse/pkg/anthropic"
)

// ErrTooLarge is returned when a binary document exceeds the multimodal
// size ceiling and cannot be summarized by sending its raw bytes.
var ErrTooLarge = eris.New("pipeline: document too large for multimodal analysis")

// ErrExtractionPending is returned when a document's text extraction has
// not finished yet. Callers can retry once extraction completes.
var ErrExtractionPending = eris.New("pipeline: document extraction still pending")

const summarySystemText = `You are a financial research analyst. Summarize the given investment research document in two or three paragraphs, covering its key theses, tickers and any explicit recommendations. Respond with plain prose only.`

// DocumentSummary returns the cached per-document summary, generating and
// storing one on a miss. Binary documents are summarized by sending the raw
// file bytes to the analysis service; documents over the multimodal ceiling
// fail fast with ErrTooLarge before any service call is made.
func (a *Analyzer) DocumentSummary(ctx context.Context, documentID string) (*model.DocumentSummary, error) {
	cached, err := a.store.GetSummary(ctx, documentID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(err, "summary for document %s", documentID)
	}

	doc, err := a.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "summary for document %s", documentID)
	}

	if doc.Extraction == model.ExtractionStatusPending || doc.Extraction == model.ExtractionStatusExtracting {
		return nil, eris.Wrapf(ErrExtractionPending, "summary for document %s", documentID)
	}

	var summary *model.DocumentSummary
	switch doc.Kind {
	case model.ContentKindBinary:
		summary, err = a.summarizeBinary(ctx, doc)
		if err != nil {
			return nil, err
		}
	case model.ContentKindPlainText:
		summary = a.summarizePlainText(ctx, doc)
	case model.ContentKindMinimalText:
		summary = degradedSummary(doc, fmt.Sprintf(
			"Document %q contained too little readable text to summarize. %s",
			doc.Filename, heuristicTopic(doc.Filename)))
	default:
		summary = degradedSummary(doc, fmt.Sprintf(
			"Document %q is in an unsupported format and could not be summarized. %s",
			doc.Filename, heuristicTopic(doc.Filename)))
	}

	if err := a.store.UpsertSummary(ctx, summary); err != nil {
		return nil, eris.Wrapf(err, "store summary for document %s", documentID)
	}
	return summary, nil
}

func (a *Analyzer) summarizePlainText(ctx context.Context, doc *model.Document) *model.DocumentSummary {
	text := doc.ExtractedText
	if len(text) > a.cfg.MaxPerDocument {
		text = text[:a.cfg.MaxPerDocument] + truncationMarker
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.aiCfg.Model,
		MaxTokens: a.aiCfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(summarySystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Summarize this document (%s):\n\n%s", doc.Filename, text)},
		},
	})
	if err != nil || strings.TrimSpace(resp.Text()) == "" {
		zap.L().Warn("summarize document: service call failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return degradedSummary(doc, fmt.Sprintf(
			"The analysis service was unavailable. %s", heuristicTopic(doc.Filename)))
	}

	resp.Usage.LogCost(a.aiCfg.Model, "document_summary")
	return &model.DocumentSummary{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Summary:    strings.TrimSpace(resp.Text()),
	}
}

// summarizeBinary sends the raw file bytes as a document attachment so the
// service can read content that byte-level extraction could not.
func (a *Analyzer) summarizeBinary(ctx context.Context, doc *model.Document) (*model.DocumentSummary, error) {
	raw, err := os.ReadFile(doc.FilePath)
	if err != nil {
		zap.L().Warn("summarize document: read file failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return degradedSummary(doc, fmt.Sprintf(
			"The stored file could not be read back. %s", heuristicTopic(doc.Filename))), nil
	}

	if int64(len(raw)) > a.cfg.MaxMultimodalBytes {
		return nil, eris.Wrapf(ErrTooLarge, "document %s is %d bytes, ceiling %d",
			doc.ID, len(raw), a.cfg.MaxMultimodalBytes)
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.aiCfg.Model,
		MaxTokens: a.aiCfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(summarySystemText),
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf("Summarize the attached document (%s).", doc.Filename),
				Document: &anthropic.DocumentAttachment{
					MediaType: "application/pdf",
					Data:      raw,
				},
			},
		},
	})
	if err != nil || strings.TrimSpace(resp.Text()) == "" {
		zap.L().Warn("summarize document: multimodal call failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return degradedSummary(doc, fmt.Sprintf(
			"The analysis service was unavailable. %s", heuristicTopic(doc.Filename))), nil
	}

	resp.Usage.LogCost(a.aiCfg.Model, "document_summary_multimodal")
	return &model.DocumentSummary{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Summary:    strings.TrimSpace(resp.Text()),
	}, nil
}

func degradedSummary(doc *model.Document, text string) *model.DocumentSummary {
	return &model.DocumentSummary{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Summary:    text,
		Degraded:   true,
	}
}

// heuristicTopic guesses the document's subject from its filename so a
// degraded summary still carries some signal.
func heuristicTopic(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	if len(words) == 0 {
		return "No subject could be inferred from the filename."
	}
	return fmt.Sprintf("Based on the filename, it likely concerns: %s.", strings.Join(words, " "))
}
