package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"schedbot/internal/domain"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *apiClient) message(ctx context.Context, userID, text string) (domain.DecideResult, error) {
	var res domain.DecideResult
	_, err := c.do(ctx, http.MethodPost, c.userPath(userID, "messages"), map[string]string{"text": text}, &res)
	return res, err
}

func (c *apiClient) start(ctx context.Context, userID string) (domain.ResponseDecision, error) {
	var out struct {
		Response domain.ResponseDecision `json:"response"`
	}
	_, err := c.do(ctx, http.MethodPost, c.userPath(userID, "start"), nil, &out)
	return out.Response, err
}

func (c *apiClient) conversation(ctx context.Context, userID string) (domain.Conversation, error) {
	var conv domain.Conversation
	_, err := c.do(ctx, http.MethodGet, c.userPath(userID, ""), nil, &conv)
	return conv, err
}

func (c *apiClient) event(ctx context.Context, userID string, input domain.Input) (domain.TransitionResult, *domain.ResponseDecision, error) {
	var out struct {
		Transition domain.TransitionResult `json:"transition"`
		Response   *domain.ResponseDecision `json:"response"`
	}
	_, err := c.do(ctx, http.MethodPost, c.userPath(userID, "events"), map[string]string{"input": string(input)}, &out)
	return out.Transition, out.Response, err
}

func (c *apiClient) userPath(userID, suffix string) string {
	return c.baseURL + "/v1/conversations/" + url.PathEscape(userID) + "/" + suffix
}

// do returns the status code alongside any error. A 502 from the decide
// endpoints is decoded from its "result" field.
func (c *apiClient) do(ctx context.Context, method, endpoint string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode < 300:
		if out == nil {
			return resp.StatusCode, nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusBadGateway:
		var failed struct {
			Error  string          `json:"error"`
			Result json.RawMessage `json:"result"`
		}
		if json.Unmarshal(raw, &failed) == nil && len(failed.Result) > 0 && out != nil {
			_ = json.Unmarshal(failed.Result, out)
		}
		return resp.StatusCode, fmt.Errorf("status=%d error=%s", resp.StatusCode, failed.Error)
	default:
		return resp.StatusCode, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}
