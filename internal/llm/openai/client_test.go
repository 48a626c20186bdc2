package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clara-backend/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient("test-key", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.baseURL = srv.URL
	return client, srv
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	var auth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"Title": "T"}`}},
			},
		})
	})

	reply, err := client.Complete(context.Background(), "system prompt", "abstract text", "gpt-4o")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != `{"Title": "T"}` {
		t.Fatalf("reply = %q", reply)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.Model != "gpt-4o" {
		t.Fatalf("model = %q", got.Model)
	}
	if got.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %q", got.ResponseFormat.Type)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[1].Content != "abstract text" {
		t.Fatalf("user content = %q", got.Messages[1].Content)
	}
}

func TestCompleteTruncatesLongContent(t *testing.T) {
	var got chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "{}"}},
			},
		})
	})
	client.maxContentChars = 50

	if _, err := client.Complete(context.Background(), "sys", strings.Repeat("a", 200), "gpt-4o"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.HasSuffix(got.Messages[1].Content, llm.TruncationMarker) {
		t.Fatal("long content was not truncated")
	}
}

func TestCompleteAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Rate limit reached", "type": "rate_limit_error"},
		})
	})

	_, err := client.Complete(context.Background(), "sys", "content", "gpt-4o")
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %T, want *llm.ProviderError", err)
	}
	if provErr.Provider != llm.ProviderOpenAI {
		t.Fatalf("provider = %q", provErr.Provider)
	}
	if !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	if _, err := client.Complete(context.Background(), "sys", "content", "gpt-4o"); err == nil {
		t.Fatal("empty choices must be an error")
	}
}

func TestCompleteMissingModel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent without a model")
	})

	if _, err := client.Complete(context.Background(), "sys", "content", ""); err == nil {
		t.Fatal("missing model must be an error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  ", 0); err == nil {
		t.Fatal("blank key must be rejected")
	}
}
