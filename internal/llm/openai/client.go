package openai

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
	apiURL = "https://api.openai.com/v1/chat/completions"
)

// Client implements llm.Client using OpenAI Chat Completions. The request
// carries a native JSON response-format hint; the reply is still treated
// as raw text because the hint is not a guarantee.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	maxContentChars int
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey string, maxContentChars int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if maxContentChars <= 0 {
		maxContentChars = llm.DefaultMaxContentChars
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
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

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a system prompt plus user content and returns the raw
// text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, content, model string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: errors.New("model is required")}
	}

	userContent := llm.TruncateContent(llm.ProviderOpenAI, content, c.maxContentChars)
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: fmt.Errorf("request timeout: %w", err)}
		}
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: fmt.Errorf("response parse: %w", err)}
	}
	if parsed.Error != nil {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}
	if len(parsed.Choices) == 0 {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: errors.New("response missing choices")}
	}

	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if reply == "" {
		return "", &llm.ProviderError{Provider: llm.ProviderOpenAI, Err: errors.New("response empty content")}
	}
	return reply, nil
}

var _ llm.Client = (*Client)(nil)
