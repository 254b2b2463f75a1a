//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_EmbedTexts_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	embeddings, err := client.EmbedTexts(ctx, []string{
		"This is a test document for generating embeddings.",
		"A second chunk to verify batch order is preserved.",
	})

	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Len(t, embeddings[0], DefaultEmbeddingDimensions)
	assert.Len(t, embeddings[1], DefaultEmbeddingDimensions)
}

func TestIntegration_StreamChat_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewChatClient(apiKey, "")
	ctx := context.Background()

	stream, err := client.StreamChat(ctx, []Message{
		{Role: RoleUser, Content: "Reply with the single word: pong"},
	})
	require.NoError(t, err)
	defer stream.Close()

	var answer string
	for {
		delta, done, err := stream.Recv()
		require.NoError(t, err)
		if done {
			break
		}
		answer += delta
	}
	assert.NotEmpty(t, answer)
}
