package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost_KnownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 0.001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000}
	assert.Equal(t, 0.0, usage.EstimateCost("some-other-model"))
}

func TestEstimateCost_CacheTokens(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	// write = 3.00 * 1.25, read = 3.00 * 0.1
	assert.InDelta(t, 3.75+0.30, cost, 0.001)
}

func TestResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "hello "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "world"},
	}}
	assert.Equal(t, "hello world", resp.Text())
}

func TestToSDKMessages_WithDocument(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "summarize this", Document: &DocumentAttachment{
			MediaType: "application/pdf",
			Data:      []byte("%PDF-1.4 fake"),
		}},
	})
	assert.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("system text")
	assert.Len(t, blocks, 1)
	assert.Equal(t, "system text", blocks[0].Text)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
