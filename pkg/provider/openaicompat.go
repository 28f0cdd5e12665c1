package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/draftsmith/genpipe/pkg/config"
)

// OpenAICompat generates text through an OpenAI-compatible chat completions
// endpoint. DeepSeek and most self-hosted gateways speak this wire format.
type OpenAICompat struct {
	name   string
	url    string
	apiKey string
	model  string
	client *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAICompat creates a client for an OpenAI-compatible provider.
func NewOpenAICompat(p config.ProviderConfig) (*OpenAICompat, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	if strings.TrimSpace(p.URL) == "" {
		return nil, errors.New("url is required")
	}
	return &OpenAICompat{
		name:   p.Name,
		url:    strings.TrimRight(p.URL, "/"),
		apiKey: p.APIKey,
		model:  p.Model,
		client: http.DefaultClient,
	}, nil
}

// Name implements Generator.
func (o *OpenAICompat) Name() string { return o.name }

// Generate implements Generator.
func (o *OpenAICompat) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant. Avoid fabrications. Use only provided facts."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("upstream error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
