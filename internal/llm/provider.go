package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Corrector rewrites informal text into grammatical text. The output is
// best effort; callers must not rely on it being correct.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

type Config struct {
	Provider         string
	Model            string
	EmbeddingModel   string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	Timeout          time.Duration
}

const (
	grammarPrefix = "Fix the grammar: "
	grammarSystem = "You correct grammar and spelling. Reply with the corrected sentence only, no quotes and no commentary."
	maxTokens     = 256
)

func NewCorrector(cfg Config) (Corrector, error) {
	client := &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}

	switch cfg.Provider {
	case "openai":
		return NewOpenAICorrector(newOpenAIClient(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), cfg.Model), nil
	case "claude":
		return NewClaudeCorrector(client, cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func NewEmbedder(cfg Config) *OpenAIEmbedder {
	client := &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}
	return NewOpenAIEmbedder(newOpenAIClient(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), cfg.EmbeddingModel)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// cleanCorrection strips the wrapping models like to add around a
// single-sentence answer.
func cleanCorrection(raw, original string) string {
	out := strings.TrimSpace(raw)
	out = strings.TrimPrefix(out, grammarPrefix)
	out = strings.Trim(out, "\"`")
	out = strings.TrimSpace(out)
	if out == "" {
		return strings.TrimSpace(original)
	}
	return out
}
