package nlp

import (
	"context"
	"time"

	"schedbot/internal/domain"
)

type ParseClient struct {
	svc service
}

func NewParseClient(baseURL, apiKey string, timeout time.Duration) *ParseClient {
	return &ParseClient{svc: newService("parse", baseURL, apiKey, timeout)}
}

func (c *ParseClient) Enabled() bool {
	return c != nil && c.svc.enabled()
}

func (c *ParseClient) Parse(ctx context.Context, text string) (domain.Parse, error) {
	var out domain.Parse
	if err := c.svc.postJSON(ctx, "/v1/parse", map[string]string{"text": text}, &out); err != nil {
		return domain.Parse{}, err
	}
	return out, nil
}
