package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Compile-time interface check.
var _ Provider = (*OpenAIProvider)(nil)

const openaiBaseURL = "https://api.openai.com"

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider whose HTTP client is bounded
// by cfg.Timeout.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	base := cfg.BaseURL
	if base == "" {
		base = openaiBaseURL
	}
	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// openaiRequest is the request body for the OpenAI Chat Completions API.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// openaiMessage is a single message in the OpenAI request.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the response body from the OpenAI Chat Completions API.
type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) Model() string { return p.model }

// SummarizeStory generates a cross-source summary using the OpenAI Chat
// Completions API.
func (p *OpenAIProvider) SummarizeStory(ctx context.Context, articles []StoryArticle) (string, error) {
	text, err := p.callAPI(ctx, summarySystemPrompt, SummaryPrompt(articles), summaryMaxTokens, summaryTemperature)
	if err != nil {
		return "", fmt.Errorf("openai summarize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RateImportance asks the model for a JSON importance rating.
func (p *OpenAIProvider) RateImportance(ctx context.Context, bundle string) (map[string]float64, error) {
	text, err := p.callAPI(ctx, ratingSystemPrompt, RatingPrompt(bundle), ratingMaxTokens, 0)
	if err != nil {
		return nil, fmt.Errorf("openai rate importance: %w", err)
	}
	rating, err := ParseRating(text)
	if err != nil {
		return nil, fmt.Errorf("openai rate importance: %w", err)
	}
	return rating, nil
}

// callAPI makes an HTTP request to the OpenAI Chat Completions API and
// returns the text content from the first choice.
func (p *OpenAIProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	reqBody := openaiRequest{
		Model: p.model,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("calling OpenAI API", "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	var apiResp openaiResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: "openai", StatusCode: resp.StatusCode}
		if decodeErr == nil && apiResp.Error != nil {
			apiErr.Message = apiResp.Error.Message
		}
		return "", apiErr
	}

	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}

	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return apiResp.Choices[0].Message.Content, nil
}
