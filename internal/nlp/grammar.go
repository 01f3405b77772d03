package nlp

import (
	"context"
	"strings"
	"time"
)

// GrammarClient calls a hosted text-to-text correction model.
type GrammarClient struct {
	svc service
}

func NewGrammarClient(baseURL, apiKey string, timeout time.Duration) *GrammarClient {
	return &GrammarClient{svc: newService("grammar", baseURL, apiKey, timeout)}
}

func (c *GrammarClient) Enabled() bool {
	return c != nil && c.svc.enabled()
}

func (c *GrammarClient) Correct(ctx context.Context, text string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := c.svc.postJSON(ctx, "/v1/grammar/correct", map[string]string{"text": strings.TrimSpace(text)}, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}
