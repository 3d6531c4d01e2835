package social

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/pipeline"
	"github.com/docpulse/docpulse/internal/store"
)

// ErrUntrackedAccount is returned when analysis is requested for a handle
// with no stored posts and no registration. Track the account first so fetch
// cycles start collecting its posts.
var ErrUntrackedAccount = eris.New("social: account not tracked")

// noPostsSummary is stored for tracked accounts whose posts have not been
// collected yet, typically because the platform is rate limiting fetches.
const noPostsSummary = "No posts have been collected for this account yet; the platform is likely rate limiting fetch cycles. A neutral placeholder was stored and will be replaced once posts arrive."

// AccountAnalyzer produces per-account post analyses from stored posts.
type AccountAnalyzer struct {
	store    store.Store
	analyzer *pipeline.Analyzer
	cfg      config.SocialConfig
}

// NewAccountAnalyzer creates an AccountAnalyzer.
func NewAccountAnalyzer(st store.Store, analyzer *pipeline.Analyzer, cfg config.SocialConfig) *AccountAnalyzer {
	return &AccountAnalyzer{store: st, analyzer: analyzer, cfg: cfg}
}

// Analyze runs the post analysis for one handle using whatever posts the
// fetch cycles have stored. A tracked account with no posts yet gets a
// persisted degraded placeholder; an untracked one is an error so the caller
// can suggest registering it.
func (a *AccountAnalyzer) Analyze(ctx context.Context, handle string) (*model.PostAnalysis, error) {
	posts, err := a.store.ListPostsByHandle(ctx, handle, a.cfg.PostsPerAccount)
	if err != nil {
		return nil, eris.Wrapf(err, "social: analyze %s", handle)
	}

	if len(posts) == 0 {
		if _, err := a.store.GetAccount(ctx, handle); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, eris.Wrapf(ErrUntrackedAccount, "%s", handle)
			}
			return nil, eris.Wrapf(err, "social: analyze %s", handle)
		}

		placeholder := pipeline.DefaultPostAnalysis(handle, noPostsSummary)
		if err := a.store.UpsertPostAnalysis(ctx, placeholder); err != nil {
			return nil, eris.Wrapf(err, "social: analyze %s", handle)
		}
		return placeholder, nil
	}

	return a.analyzer.AnalyzePosts(ctx, handle, posts)
}
