package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jxucoder/gitpilot/internal/config"
)

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["system"] != "sys" {
			t.Errorf("system prompt not forwarded: %v", body["system"])
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"hello"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key", "")
	c.baseURL = srv.URL

	got, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key", "")
	c.baseURL = srv.URL

	if _, err := c.Complete(context.Background(), "sys", "user"); err == nil {
		t.Fatal("expected error on non-200")
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"world"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", "gpt-4o-mini")
	c.baseURL = srv.URL

	got, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "world" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestNewClientFromConfig(t *testing.T) {
	if _, err := NewClientFromConfig(&config.Config{}); err == nil {
		t.Fatal("expected error with no keys")
	}
	c, err := NewClientFromConfig(&config.Config{AnthropicAPIKey: "a", OpenAIAPIKey: "o"})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, ok := c.(*AnthropicClient); !ok {
		t.Fatalf("anthropic should be preferred, got %T", c)
	}
}
