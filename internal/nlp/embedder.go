package nlp

import (
	"context"
	"fmt"
	"time"
)

type EmbedClient struct {
	svc service
}

func NewEmbedClient(baseURL, apiKey string, timeout time.Duration) *EmbedClient {
	return &EmbedClient{svc: newService("embed", baseURL, apiKey, timeout)}
}

func (c *EmbedClient) Enabled() bool {
	return c != nil && c.svc.enabled()
}

func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.svc.postJSON(ctx, "/v1/embed", map[string]any{"texts": texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}
