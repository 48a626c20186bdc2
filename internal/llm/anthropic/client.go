package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"clara-backend/internal/llm"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	maxTokens  = 4096
)

// Client implements llm.Client using the Anthropic Messages API. There is
// no structured-output hint here; JSON discipline rests entirely on the
// system prompt.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	maxContentChars int
}

// NewClient constructs a new Anthropic client.
func NewClient(apiKey string, maxContentChars int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if maxContentChars <= 0 {
		maxContentChars = llm.DefaultMaxContentChars
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("ANTHROPIC_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxContentChars: maxContentChars,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a system prompt plus user content and returns the raw
// text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, content, model string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: errors.New("model is required")}
	}

	userContent := llm.TruncateContent(llm.ProviderAnthropic, content, c.maxContentChars)
	reqBody := messagesRequest{
		Model:     model,
		System:    systemPrompt,
		MaxTokens: maxTokens,
		Messages: []message{
			{Role: "user", Content: userContent},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: err}
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: fmt.Errorf("request timeout: %w", err)}
		}
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: err}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: fmt.Errorf("response parse: %w", err)}
	}
	if parsed.Error != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}

	var reply string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			reply = strings.TrimSpace(block.Text)
			break
		}
	}
	if reply == "" {
		return "", &llm.ProviderError{Provider: llm.ProviderAnthropic, Err: errors.New("response empty content")}
	}
	return reply, nil
}

var _ llm.Client = (*Client)(nil)
