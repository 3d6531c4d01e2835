package model

import "time"

// SocialPost is a post fetched from the social-content API. Insertion is
// idempotent on ExternalPostID.
type SocialPost struct {
	ID             string    `json:"id"`
	ExternalPostID string    `json:"external_post_id"`
	Text           string    `json:"text"`
	Author         string    `json:"author"`
	AuthorHandle   string    `json:"author_handle"`
	PostedAt       time.Time `json:"posted_at"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// SocialAccount is an account tracked for periodic post fetching.
type SocialAccount struct {
	Handle        string     `json:"handle"`
	DisplayName   string     `json:"display_name,omitempty"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
