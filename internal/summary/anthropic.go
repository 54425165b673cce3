package summary

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

const (
	DefaultAnthropicURL = "https://api.anthropic.com/v1"
	DefaultModel        = "claude-haiku-4-5"
	DefaultMaxTokens    = 4096
	anthropicVersion    = "2023-06-01"
)

// AnthropicGenerator calls the Anthropic Messages API
type AnthropicGenerator struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
	client    *http.Client
}

// NewAnthropicGenerator creates a generator; empty model and zero tokens pick the defaults
func NewAnthropicGenerator(apiKey, model string, maxTokens int) *AnthropicGenerator {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicGenerator{
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: maxTokens,
		BaseURL:   DefaultAnthropicURL,
		client:    &http.Client{Timeout: 3 * time.Minute},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if a.APIKey == "" {
		return "", fmt.Errorf("anthropic API key not set: set ANTHROPIC_API_KEY or add anthropic_api_key to config")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Anthropic API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Anthropic API")
	}
	return text.String(), nil
}
