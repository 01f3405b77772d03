package nlp

import (
	"context"
	"fmt"
	"time"

	"schedbot/internal/domain"
)

// QAClient calls an extractive question answering model.
type QAClient struct {
	svc service
}

func NewQAClient(baseURL, apiKey string, timeout time.Duration) *QAClient {
	return &QAClient{svc: newService("qa", baseURL, apiKey, timeout)}
}

func (c *QAClient) Enabled() bool {
	return c != nil && c.svc.enabled()
}

func (c *QAClient) Answer(ctx context.Context, question, passage string) (domain.QAAnswer, error) {
	payload := map[string]string{"question": question, "context": passage}
	var out domain.QAAnswer
	if err := c.svc.postJSON(ctx, "/v1/qa", payload, &out); err != nil {
		return domain.QAAnswer{}, err
	}
	if out.Score < 0 || out.Score > 1 {
		return domain.QAAnswer{}, fmt.Errorf("qa score out of range: %v", out.Score)
	}
	return out, nil
}
