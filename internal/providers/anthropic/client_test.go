package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
)

func TestBuildPayloadHoistsSystemTurns(t *testing.T) {
	c := New(Config{APIKey: "k"})

	body, err := c.buildPayload(providers.Request{
		Turns: []providers.ChatTurn{
			{Role: providers.RoleSystem, Content: "be terse"},
			{Role: providers.RoleUser, Content: "hello"},
			{Role: providers.RoleAssistant, Content: "hi"},
			{Role: providers.RoleSystem, Content: "answer in portuguese"},
			{Role: providers.RoleUser, Content: "again"},
		},
		MaxTokens: 1000,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload struct {
		System   string `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.System != "be terse\n\nanswer in portuguese" {
		t.Fatalf("unexpected system field %q", payload.System)
	}
	if len(payload.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(payload.Messages))
	}
	for _, m := range payload.Messages {
		if m.Role == providers.RoleSystem {
			t.Fatalf("system turn leaked into messages array: %#v", m)
		}
	}
}

func TestCompleteMissingKey(t *testing.T) {
	c := New(Config{})
	_, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "hi"}},
	})
	var configErr *providers.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCompleteParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "k" {
			t.Errorf("unexpected x-api-key %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != apiVersion {
			t.Errorf("unexpected anthropic-version %q", got)
		}
		_, _ = w.Write([]byte(`{"content":[{"text":"olá"}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	resp, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "oi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "olá" {
		t.Fatalf("expected olá, got %q", resp.Text)
	}
}

func TestCompleteVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "oi"}},
	})

	var vendorErr *providers.VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.Provider != "anthropic" || vendorErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected vendor error %#v", vendorErr)
	}
}
