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
var _ Provider = (*AnthropicProvider)(nil)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicProvider creates an AnthropicProvider whose HTTP client is
// bounded by cfg.Timeout.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	base := cfg.BaseURL
	if base == "" {
		base = anthropicBaseURL
	}
	return &AnthropicProvider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// anthropicRequest is the request body for the Anthropic Messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

// anthropicMessage is a single message in the Anthropic request.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Anthropic Messages API.
type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) Model() string { return p.model }

// SummarizeStory generates a cross-source summary using the Anthropic
// Messages API.
func (p *AnthropicProvider) SummarizeStory(ctx context.Context, articles []StoryArticle) (string, error) {
	text, err := p.callAPI(ctx, summarySystemPrompt, SummaryPrompt(articles), summaryMaxTokens, summaryTemperature)
	if err != nil {
		return "", fmt.Errorf("anthropic summarize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RateImportance asks the model for a JSON importance rating.
func (p *AnthropicProvider) RateImportance(ctx context.Context, bundle string) (map[string]float64, error) {
	text, err := p.callAPI(ctx, ratingSystemPrompt, RatingPrompt(bundle), ratingMaxTokens, 0)
	if err != nil {
		return nil, fmt.Errorf("anthropic rate importance: %w", err)
	}
	rating, err := ParseRating(text)
	if err != nil {
		return nil, fmt.Errorf("anthropic rate importance: %w", err)
	}
	return rating, nil
}

// callAPI makes an HTTP request to the Anthropic Messages API and returns
// the text content from the first content block.
func (p *AnthropicProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	reqBody := anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	slog.Debug("calling Anthropic API", "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	var apiResp anthropicResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: "anthropic", StatusCode: resp.StatusCode}
		if decodeErr == nil && apiResp.Error != nil {
			apiErr.Message = apiResp.Error.Message
		}
		return "", apiErr
	}

	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}

	if len(apiResp.Content) == 0 || strings.TrimSpace(apiResp.Content[0].Text) == "" {
		return "", fmt.Errorf("%w: no content blocks returned", ErrMalformedResponse)
	}

	return apiResp.Content[0].Text, nil
}
