// Package social acquires posts from the social-content platform on a
// schedule, stores them idempotently, and synthesizes sample data when the
// platform is unreachable so downstream analysis always has material.
package social

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/resilience"
	"github.com/docpulse/docpulse/internal/store"
	"github.com/docpulse/docpulse/pkg/socialapi"
)

// CycleState is the lifecycle of one fetch cycle.
type CycleState string

const (
	CycleIdle            CycleState = "idle"
	CycleFetching        CycleState = "fetching"
	CycleCompleted       CycleState = "completed"
	CyclePartiallyFailed CycleState = "partially_failed"
)

// ErrCycleInProgress is returned when a fetch cycle is requested while one
// is already running.
var ErrCycleInProgress = eris.New("social: fetch cycle already in progress")

// fallbackHandles seeds fetch cycles before any account has been tracked.
// A random subset is fetched each cycle to spread rate-limit budget.
var fallbackHandles = []string{
	"marketmaven",
	"valuehunter",
	"macrowatch",
	"chipcycle",
	"dividendsleuth",
	"ratesdesk",
	"smallcapscout",
	"energyangle",
}

const fallbackSubsetSize = 4

// maxConcurrentFetches bounds per-account goroutines within one cycle.
const maxConcurrentFetches = 4

// CycleStatus is a snapshot of the most recent fetch cycle.
type CycleStatus struct {
	State       CycleState `json:"state"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	FinishedAt  time.Time  `json:"finished_at,omitempty"`
	Accounts    int        `json:"accounts"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	PostsStored int        `json:"posts_stored"`
	Synthetic   bool       `json:"synthetic"`
}

// Fetcher runs fetch cycles against the social platform. Cycles are
// restart-safe: stored posts are keyed by the platform's post ID, so
// refetching an overlapping window inserts nothing twice.
type Fetcher struct {
	store   store.Store
	api     socialapi.Client
	samples SampleSource
	cfg     config.SocialConfig

	mu     sync.Mutex
	status CycleStatus
}

// NewFetcher creates a Fetcher. samples may be nil to disable degraded-mode
// seeding regardless of configuration.
func NewFetcher(st store.Store, api socialapi.Client, samples SampleSource, cfg config.SocialConfig) *Fetcher {
	return &Fetcher{
		store:   st,
		api:     api,
		samples: samples,
		cfg:     cfg,
		status:  CycleStatus{State: CycleIdle},
	}
}

// Status returns a snapshot of the current or most recent cycle.
func (f *Fetcher) Status() CycleStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Track resolves a handle against the platform and registers it for fetch
// cycles. Resolution failures propagate, including socialapi.ErrAccountNotFound.
func (f *Fetcher) Track(ctx context.Context, handle string) (*model.SocialAccount, error) {
	acct, err := f.api.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, eris.Wrapf(err, "social: track %s", handle)
	}

	a := &model.SocialAccount{
		Handle:      acct.Handle,
		DisplayName: acct.DisplayName,
	}
	if err := f.store.UpsertAccount(ctx, a); err != nil {
		return nil, eris.Wrapf(err, "social: track %s", handle)
	}
	return a, nil
}

// RunCycle fetches recent posts for every tracked account, or for a random
// subset of the fallback handles when nothing is tracked yet. Per-account
// failures are isolated; the cycle continues. If every account fails and
// the store holds fewer than the configured minimum of posts, synthetic
// sample posts are seeded so analysis stays usable.
func (f *Fetcher) RunCycle(ctx context.Context) (CycleStatus, error) {
	f.mu.Lock()
	if f.status.State == CycleFetching {
		status := f.status
		f.mu.Unlock()
		return status, ErrCycleInProgress
	}
	f.status = CycleStatus{State: CycleFetching, StartedAt: time.Now().UTC()}
	f.mu.Unlock()

	log := zap.L().With(zap.String("component", "social.fetcher"))

	handles, tracked, err := f.cycleHandles(ctx)
	if err != nil {
		return f.finishCycle(CycleStatus{}, 0, err)
	}

	var (
		resMu     sync.Mutex
		succeeded int
		failed    int
		stored    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, handle := range handles {
		g.Go(func() error {
			n, err := f.fetchAccount(gctx, handle, tracked)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				failed++
				log.Warn("account fetch failed",
					zap.String("handle", handle),
					zap.Error(err),
				)
				return nil // failures never abort sibling fetches
			}
			succeeded++
			stored += n
			return nil
		})
	}
	_ = g.Wait()

	status := CycleStatus{
		Accounts:    len(handles),
		Succeeded:   succeeded,
		Failed:      failed,
		PostsStored: stored,
	}

	if succeeded == 0 && len(handles) > 0 {
		seeded, err := f.maybeSeedSamples(ctx)
		if err != nil {
			log.Warn("sample seeding failed", zap.Error(err))
		}
		status.Synthetic = seeded
	}

	return f.finishCycle(status, stored, nil)
}

func (f *Fetcher) finishCycle(status CycleStatus, stored int, err error) (CycleStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status.StartedAt = f.status.StartedAt
	status.FinishedAt = time.Now().UTC()
	if err != nil || status.Failed > 0 {
		status.State = CyclePartiallyFailed
	} else {
		status.State = CycleCompleted
	}
	f.status = status

	zap.L().Info("fetch cycle finished",
		zap.String("state", string(status.State)),
		zap.Int("accounts", status.Accounts),
		zap.Int("failed", status.Failed),
		zap.Int("posts_stored", stored),
		zap.Bool("synthetic", status.Synthetic),
	)
	return status, err
}

// cycleHandles returns the handles to fetch this cycle and whether they are
// tracked accounts.
func (f *Fetcher) cycleHandles(ctx context.Context) ([]string, bool, error) {
	accounts, err := f.store.ListAccounts(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "social: list accounts")
	}

	if len(accounts) > 0 {
		handles := make([]string, len(accounts))
		for i, a := range accounts {
			handles[i] = a.Handle
		}
		return handles, true, nil
	}

	subset := make([]string, len(fallbackHandles))
	copy(subset, fallbackHandles)
	rand.Shuffle(len(subset), func(i, j int) {
		subset[i], subset[j] = subset[j], subset[i]
	})
	if len(subset) > fallbackSubsetSize {
		subset = subset[:fallbackSubsetSize]
	}
	return subset, false, nil
}

// fetchAccount pulls one account's recent posts and stores them. Returns the
// number of posts handed to the store; duplicates are silently skipped there.
// Transient network failures are retried; rate limiting is not, since the
// next cycle covers the same window anyway.
func (f *Fetcher) fetchAccount(ctx context.Context, handle string, tracked bool) (int, error) {
	retry := resilience.DefaultRetryConfig()

	acct, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*socialapi.Account, error) {
		return f.api.ResolveHandle(ctx, handle)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "resolve %s", handle)
	}

	posts, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]socialapi.Post, error) {
		return f.api.RecentPosts(ctx, acct.ID, f.cfg.PostsPerAccount)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "recent posts for %s", handle)
	}

	now := time.Now().UTC()
	for _, p := range posts {
		err := f.store.InsertPost(ctx, &model.SocialPost{
			ExternalPostID: p.ID,
			Text:           p.Text,
			Author:         acct.DisplayName,
			AuthorHandle:   acct.Handle,
			PostedAt:       p.CreatedAt,
			FetchedAt:      now,
		})
		if err != nil {
			return 0, eris.Wrapf(err, "store post %s", p.ID)
		}
	}

	if tracked {
		if err := f.store.TouchAccountFetched(ctx, handle, now); err != nil {
			return 0, eris.Wrapf(err, "touch account %s", handle)
		}
	}
	return len(posts), nil
}

// maybeSeedSamples inserts the embedded sample posts when the store is too
// thin to support analysis. Sample post IDs are stable, so repeated seeding
// is a no-op.
func (f *Fetcher) maybeSeedSamples(ctx context.Context) (bool, error) {
	if f.cfg.DisableSamples || f.samples == nil {
		return false, nil
	}

	count, err := f.store.CountPosts(ctx)
	if err != nil {
		return false, eris.Wrap(err, "social: count posts")
	}
	if count >= f.cfg.MinStoredPosts {
		return false, nil
	}

	posts, err := f.samples.SamplePosts()
	if err != nil {
		return false, eris.Wrap(err, "social: load samples")
	}
	for i := range posts {
		if err := f.store.InsertPost(ctx, &posts[i]); err != nil {
			return false, eris.Wrapf(err, "social: seed sample %s", posts[i].ExternalPostID)
		}
	}

	zap.L().Info("seeded synthetic sample posts",
		zap.Int("stored_posts", count),
		zap.Int("samples", len(posts)),
	)
	return true, nil
}
