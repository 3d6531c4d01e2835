package social

import (
	_ "embed"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/docpulse/docpulse/internal/model"
)

//go:embed samples.yaml
var samplesYAML []byte

// SampleSource supplies synthetic posts for degraded-mode seeding.
type SampleSource interface {
	SamplePosts() ([]model.SocialPost, error)
}

type samplePost struct {
	ExternalID string `yaml:"external_id"`
	Author     string `yaml:"author"`
	Handle     string `yaml:"handle"`
	Text       string `yaml:"text"`
	AgeHours   int    `yaml:"age_hours"`
}

type embeddedSamples struct{}

// EmbeddedSamples returns the compiled-in sample post set. External IDs are
// stable across builds so reseeding never duplicates rows.
func EmbeddedSamples() SampleSource {
	return embeddedSamples{}
}

func (embeddedSamples) SamplePosts() ([]model.SocialPost, error) {
	var raw struct {
		Posts []samplePost `yaml:"posts"`
	}
	if err := yaml.Unmarshal(samplesYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "social: parse embedded samples")
	}

	now := time.Now().UTC()
	posts := make([]model.SocialPost, len(raw.Posts))
	for i, p := range raw.Posts {
		posts[i] = model.SocialPost{
			ExternalPostID: p.ExternalID,
			Text:           p.Text,
			Author:         p.Author,
			AuthorHandle:   p.Handle,
			PostedAt:       now.Add(-time.Duration(p.AgeHours) * time.Hour),
			FetchedAt:      now,
		}
	}
	return posts, nil
}
