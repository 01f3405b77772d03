package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// service is the shared JSON-over-HTTP transport of every model client.
type service struct {
	name    string
	baseURL string
	apiKey  string
	http    *http.Client
}

func newService(name, baseURL, apiKey string, timeout time.Duration) service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return service{
		name:    name,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
	}
}

func (s service) enabled() bool {
	return s.baseURL != ""
}

func (s service) postJSON(ctx context.Context, path string, payload any, out any) error {
	if !s.enabled() {
		return fmt.Errorf("%s service is not configured", s.name)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s status=%d body=%s", s.name, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s decode response: %w", s.name, err)
	}
	return nil
}
