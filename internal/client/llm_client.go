package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/toolforge/api/internal/config"
	"github.com/toolforge/api/internal/pipeline"
)

// LLMClient is the structured-generation provider client. It speaks the
// OpenAI-compatible chat-completions dialect with json_schema response
// format and implements pipeline.Generator.
type LLMClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	credentialName string
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewLLMClient creates a new provider client
func NewLLMClient(cfg *config.ProviderConfig) *LLMClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		credentialName: cfg.CredentialName,
	}
}

// MissingCredential reports the name of the required secret when the
// client is unconfigured, so callers can surface an actionable pause.
func (c *LLMClient) MissingCredential() string {
	if c.apiKey == "" {
		return c.credentialName
	}
	return ""
}

// GenerateStructured sends a schema-constrained chat completion request and
// returns the raw structured content. Transient provider failures are
// returned as *pipeline.ProviderOverloadError so callers can retry with
// backoff.
func (c *LLMClient) GenerateStructured(ctx context.Context, genReq pipeline.GenerationRequest) (json.RawMessage, error) {
	reqBody := ChatCompletionRequest{
		Model: genReq.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: genReq.System},
			{Role: "user", Content: genReq.User},
		},
		Temperature: 0.4,
		MaxTokens:   4096,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   string(genReq.Stage),
				Strict: true,
				Schema: genReq.Schema,
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTransient(err) {
			return nil, &pipeline.ProviderOverloadError{Err: err}
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return nil, &pipeline.ProviderOverloadError{
			Err: fmt.Errorf("provider status %d: %s", resp.StatusCode, string(respBody)),
		}
	default:
		return nil, fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return json.RawMessage(chatResp.Choices[0].Message.Content), nil
}

// isTransient reports whether a transport error is worth retrying
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
