package nlp

import (
	"context"
	"time"
)

type SpellClient struct {
	svc service
}

func NewSpellClient(baseURL, apiKey string, timeout time.Duration) *SpellClient {
	return &SpellClient{svc: newService("spell", baseURL, apiKey, timeout)}
}

func (c *SpellClient) Enabled() bool {
	return c != nil && c.svc.enabled()
}

// Check returns a correction for every word the checker does not know.
// Known words are absent from the result.
func (c *SpellClient) Check(ctx context.Context, words []string) (map[string]string, error) {
	if len(words) == 0 {
		return map[string]string{}, nil
	}
	var out struct {
		Unknown map[string]string `json:"unknown"`
	}
	if err := c.svc.postJSON(ctx, "/v1/spell/check", map[string]any{"words": words}, &out); err != nil {
		return nil, err
	}
	if out.Unknown == nil {
		out.Unknown = map[string]string{}
	}
	return out.Unknown, nil
}
