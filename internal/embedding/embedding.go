package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// batchSize bounds inputs per embeddings request; OpenAI-compatible endpoints
// accept well beyond this, smaller batches keep request sizes predictable.
const batchSize = 100

// Client wraps an OpenAI-compatible embeddings API.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new embeddings client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Embed returns one L2-normalized vector per input text, preserving order.
// Inputs are sent in batches of batchSize.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		slog.Debug("embedding batch", "start", start, "size", len(batch), "total", len(texts))

		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings API call: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(batch))
		}
		for _, d := range resp.Data {
			vectors = append(vectors, normalize(d.Embedding))
		}
	}
	return vectors, nil
}

// Ping verifies the embeddings endpoint is reachable and the model resolves.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.Embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("embeddings health check: %w", err)
	}
	return nil
}

// normalize scales v to unit length so dot product equals cosine similarity.
// Zero vectors are returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
