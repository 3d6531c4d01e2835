package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/docpulse/docpulse/internal/model"
)

// ErrNotFound is returned by reads when no row matches the key. Callers use
// errors.Is to distinguish it from transport/query failures.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the insight pipeline. Analyses,
// summaries, accounts and post analyses are upserts with no history; post
// insertion is idempotent on the external post ID. Cached analyses and
// summaries never expire — delete is the only invalidation.
type Store interface {
	// Batches and documents
	CreateBatch(ctx context.Context, b *model.DocumentBatch) error
	GetBatch(ctx context.Context, id string) (*model.DocumentBatch, error)
	CreateDocument(ctx context.Context, d *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, batchID string) ([]model.Document, error)
	SetDocumentExtraction(ctx context.Context, id string, status model.ExtractionStatus, kind model.ContentKind, text string) error

	// Result caches
	UpsertAnalysis(ctx context.Context, a *model.DocumentAnalysis) error
	GetAnalysis(ctx context.Context, batchID string) (*model.DocumentAnalysis, error)
	DeleteAnalysis(ctx context.Context, batchID string) error
	UpsertSummary(ctx context.Context, s *model.DocumentSummary) error
	GetSummary(ctx context.Context, documentID string) (*model.DocumentSummary, error)
	DeleteSummary(ctx context.Context, documentID string) error

	// Social content
	InsertPost(ctx context.Context, p *model.SocialPost) error
	CountPosts(ctx context.Context) (int, error)
	ListPostsByHandle(ctx context.Context, handle string, limit int) ([]model.SocialPost, error)
	UpsertAccount(ctx context.Context, a *model.SocialAccount) error
	GetAccount(ctx context.Context, handle string) (*model.SocialAccount, error)
	ListAccounts(ctx context.Context) ([]model.SocialAccount, error)
	TouchAccountFetched(ctx context.Context, handle string, at time.Time) error
	UpsertPostAnalysis(ctx context.Context, a *model.PostAnalysis) error
	GetPostAnalysis(ctx context.Context, username string) (*model.PostAnalysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
