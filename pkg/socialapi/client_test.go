package socialapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by/username/marketmaven", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "123", "username": "marketmaven", "name": "Market Maven"},
		})
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	acct, err := c.ResolveHandle(context.Background(), "marketmaven")
	require.NoError(t, err)
	assert.Equal(t, "123", acct.ID)
	assert.Equal(t, "marketmaven", acct.Handle)
	assert.Equal(t, "Market Maven", acct.DisplayName)
}

func TestResolveHandle_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.ResolveHandle(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRecentPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/123/tweets", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("max_results"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "p1", "text": "bullish on semis", "created_at": "2026-08-29T10:00:00Z"},
				{"id": "p2", "text": "rates are peaking", "created_at": "2026-08-29T09:00:00Z"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	posts, err := c.RecentPosts(context.Background(), "123", 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "bullish on semis", posts[0].Text)
	assert.False(t, posts[0].CreatedAt.IsZero())
}

func TestGet_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.RecentPosts(context.Background(), "123", 5)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGet_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.ResolveHandle(context.Background(), "whoever")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGet_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.RecentPosts(context.Background(), "123", 5)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}
