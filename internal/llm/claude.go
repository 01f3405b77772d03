package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ClaudeCorrector struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewClaudeCorrector(client *http.Client, baseURL, apiKey, model string) *ClaudeCorrector {
	return &ClaudeCorrector{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	System    string          `json:"system,omitempty"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeResponse struct {
	Content []claudeBlock `json:"content"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *ClaudeCorrector) Correct(ctx context.Context, text string) (string, error) {
	payload := claudeRequest{
		Model:     p.model,
		System:    grammarSystem,
		MaxTokens: maxTokens,
		Messages: []claudeMessage{{
			Role:    "user",
			Content: []claudeBlock{{Type: "text", Text: grammarPrefix + strings.TrimSpace(text)}},
		}},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("claude status %d: %s", resp.StatusCode, string(body))
	}

	var parsed claudeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("claude error: %s", parsed.Error.Message)
	}

	var out []string
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			out = append(out, block.Text)
		}
	}
	if len(out) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return cleanCorrection(strings.Join(out, "\n"), text), nil
}
