// Package socialapi is a thin client for the social-content platform API:
// handle resolution and recent-post listing. All calls are synchronous round
// trips; the only timeout is the underlying HTTP client's.
package socialapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.social.example.com/v2"

// ErrRateLimited is returned when the platform rejects a call with HTTP 429.
var ErrRateLimited = eris.New("socialapi: rate limited")

// ErrAccountNotFound is returned when a handle cannot be resolved.
var ErrAccountNotFound = eris.New("socialapi: account not found")

// Client performs lookups against the social-content platform.
type Client interface {
	ResolveHandle(ctx context.Context, handle string) (*Account, error)
	RecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error)
}

// Account is a resolved platform account.
type Account struct {
	ID          string `json:"id"`
	Handle      string `json:"username"`
	DisplayName string `json:"name"`
}

// Post is a single post as returned by the platform.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	bearerToken string
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a social-platform API client.
func NewClient(bearerToken string, opts ...Option) Client {
	c := &httpClient{
		bearerToken: bearerToken,
		baseURL:     defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ResolveHandle(ctx context.Context, handle string) (*Account, error) {
	var wrapper struct {
		Data Account `json:"data"`
	}
	path := "/users/by/username/" + url.PathEscape(handle)
	if err := c.get(ctx, path, nil, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data.ID == "" {
		return nil, eris.Wrapf(ErrAccountNotFound, "handle %s", handle)
	}
	return &wrapper.Data, nil
}

func (c *httpClient) RecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error) {
	var wrapper struct {
		Data []Post `json:"data"`
	}
	query := url.Values{}
	if limit > 0 {
		query.Set("max_results", strconv.Itoa(limit))
	}
	query.Set("tweet.fields", "created_at")
	path := "/users/" + url.PathEscape(accountID) + "/tweets"
	if err := c.get(ctx, path, query, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "socialapi: rate limiter wait")
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "socialapi: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "socialapi: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "socialapi: read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return eris.Wrapf(ErrRateLimited, "status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return eris.Wrapf(ErrAccountNotFound, "status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return eris.Errorf("socialapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "socialapi: unmarshal response")
	}
	return nil
}
