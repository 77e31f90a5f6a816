// internal/llm/providers/ollama/ollama_test.go
package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/llm"
)

func newTestProvider(t *testing.T, baseURL string, extra map[string]string) *Provider {
	t.Helper()
	config := map[string]string{"base_url": baseURL, "model": "granite4:micro"}
	for k, v := range extra {
		config[k] = v
	}
	provider := &Provider{}
	if err := provider.Initialize(config); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return provider
}

func TestCompleteText_Success(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response":   "INT. CAFE - DAY\r\n\r\nAction.",
			"eval_count": 42,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)
	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:      "write a scene",
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// newlines normalized, output trimmed
	if resp.Text != "INT. CAFE - DAY\n\nAction." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 42 || resp.ProviderName != "ollama" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if captured["stream"] != false {
		t.Fatalf("stream must be disabled, payload: %v", captured)
	}
	options, _ := captured["options"].(map[string]interface{})
	if options["temperature"] != 0.7 {
		t.Fatalf("unexpected options: %v", options)
	}
}

func TestCompleteText_ModelNotFoundHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'granite4:micro' not found"})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)
	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Type != apperrors.ErrorTypeProviderHTTP {
		t.Fatalf("expected provider_http_error, got %v", err)
	}
	if want := "ollama pull granite4:micro"; !strings.Contains(appErr.Message, want) {
		t.Fatalf("message %q missing pull hint", appErr.Message)
	}
}

func TestCompleteText_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)
	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})

	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Type != apperrors.ErrorTypeProviderHTTP {
		t.Fatalf("expected provider_http_error, got %v", err)
	}
}

func TestCompleteText_ConnectionRefused(t *testing.T) {
	// grab an address nothing listens on
	listener := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := listener.URL
	listener.Close()

	provider := newTestProvider(t, deadURL, nil)
	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	if !apperrors.IsProviderUnreachable(err) {
		t.Fatalf("expected provider_unreachable, got %v", err)
	}
}

func TestCompleteText_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"response": "late"})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)
	provider.client.Timeout = 50 * time.Millisecond

	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	if !apperrors.IsProviderTimeout(err) {
		t.Fatalf("expected provider_timeout, got %v", err)
	}
}

func TestCompleteText_BadEnvelope(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "plain text"},
		{"no text field", `{"status": "done"}`},
		{"empty response", `{"response": ""}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			provider := newTestProvider(t, server.URL, nil)
			_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})

			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Type != apperrors.ErrorTypeProviderProtocol {
				t.Fatalf("expected provider_protocol_error, got %v", err)
			}
		})
	}
}

func TestCompleteText_KeyRotation(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, map[string]string{"api_keys": "key-a, key-b"})
	for i := 0; i < 4; i++ {
		if _, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	want := []string{"Bearer key-a", "Bearer key-b", "Bearer key-a", "Bearer key-b"}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("call %d used %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestCompleteText_NoKeysNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)
	if _, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
