package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

func newOpenAIClient(httpClient *http.Client, baseURL, apiKey string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = httpClient
	return openai.NewClientWithConfig(clientConfig)
}

type OpenAICorrector struct {
	client *openai.Client
	model  string
}

func NewOpenAICorrector(client *openai.Client, model string) *OpenAICorrector {
	return &OpenAICorrector{client: client, model: model}
}

func (p *OpenAICorrector) Correct(ctx context.Context, text string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: grammarSystem},
			{Role: openai.ChatMessageRoleUser, Content: grammarPrefix + strings.TrimSpace(text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty openai response")
	}
	return cleanCorrection(resp.Choices[0].Message.Content, text), nil
}

// OpenAIEmbedder serves both the query embedding and catalog building.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	if strings.TrimSpace(model) == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: client, model: openai.EmbeddingModel(model)}
}

func (e *OpenAIEmbedder) Model() string {
	return string(e.model)
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
