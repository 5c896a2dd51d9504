package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient("test-key", url, "test-model", 0.2, 256, 5*time.Second)
}

func TestCompleteChatInterface(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model-0125",
			"choices": []map[string]any{
				{"message": map[string]string{"content": "digest text"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != "digest text" {
		t.Fatalf("Text = %q", got.Text)
	}
	if got.Model != "test-model-0125" {
		t.Fatalf("Model = %q", got.Model)
	}
	if got.Usage.TotalTokens != 30 {
		t.Fatalf("TotalTokens = %d", got.Usage.TotalTokens)
	}
}

func TestCompleteFallsBackToLegacyInterface(t *testing.T) {
	t.Parallel()
	var legacyCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"unknown url"}}`))
		case "/v1/completions":
			legacyCalled = true
			var req legacyRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding legacy request: %v", err)
			}
			if !strings.Contains(req.Prompt, "system") || !strings.Contains(req.Prompt, "user") {
				t.Errorf("legacy prompt missing parts: %q", req.Prompt)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]string{{"text": "legacy digest"}},
				"usage":   map[string]int{"total_tokens": 5},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !legacyCalled {
		t.Fatal("legacy interface was never tried")
	}
	if got.Text != "legacy digest" {
		t.Fatalf("Text = %q", got.Text)
	}
	if got.Model != "test-model" {
		t.Fatalf("Model fallback = %q", got.Model)
	}
}

func TestCompleteFallsBackOnNonChatModelError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/chat/completions" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"This is not a chat model and thus not supported in the v1/chat/completions endpoint.","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]string{{"text": "ok"}},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != "ok" {
		t.Fatalf("Text = %q", got.Text)
	}
}

func TestCompleteDoesNotRetryAuthErrors(t *testing.T) {
	t.Parallel()
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for auth failure")
	}
	if calls != 1 {
		t.Fatalf("auth failure should not be retried, got %d calls", calls)
	}
}

func TestCompleteRateLimitPropagates(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
