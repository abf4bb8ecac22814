package openai_compat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
)

func TestBuildPayloadKeepsEveryTurn(t *testing.T) {
	c := New(Config{Name: "openai", BaseURL: "https://api.openai.com/v1"})

	body, endpoint, err := c.buildPayload(providers.Request{
		Model: "gpt-4o-mini",
		Turns: []providers.ChatTurn{
			{Role: providers.RoleUser, Content: "hello"},
			{Role: providers.RoleAssistant, Content: "hi there"},
			{Role: providers.RoleUser, Content: "how are you"},
		},
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if endpoint != "https://api.openai.com/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}

	var payload struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Model != "gpt-4o-mini" {
		t.Fatalf("expected model gpt-4o-mini, got %q", payload.Model)
	}
	if len(payload.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(payload.Messages))
	}
	for i, want := range []struct{ role, content string }{
		{"user", "hello"},
		{"assistant", "hi there"},
		{"user", "how are you"},
	} {
		if payload.Messages[i].Role != want.role || payload.Messages[i].Content != want.content {
			t.Fatalf("message %d: got %q/%q, want %q/%q",
				i, payload.Messages[i].Role, payload.Messages[i].Content, want.role, want.content)
		}
	}
	if payload.MaxTokens != 1000 {
		t.Fatalf("expected max_tokens 1000, got %d", payload.MaxTokens)
	}
}

func TestBuildPayloadMultimodalExpansion(t *testing.T) {
	c := New(Config{Name: "openai", BaseURL: "https://api.openai.com/v1", Multimodal: true})

	body, _, err := c.buildPayload(providers.Request{
		Model: "gpt-4o-mini",
		Turns: []providers.ChatTurn{
			{Role: providers.RoleUser, Content: "what is this", ImageURL: "https://host/files/a.png"},
		},
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL    string `json:"url"`
					Detail string `json:"detail"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(payload.Messages))
	}
	parts := payload.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "what is this" {
		t.Fatalf("unexpected text part %#v", parts[0])
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL.URL != "https://host/files/a.png" || parts[1].ImageURL.Detail != "high" {
		t.Fatalf("unexpected image part %#v", parts[1])
	}
}

func TestBuildPayloadDefaultImagePrompt(t *testing.T) {
	c := New(Config{Name: "openai", BaseURL: "https://api.openai.com/v1", Multimodal: true})

	body, _, err := c.buildPayload(providers.Request{
		Turns: []providers.ChatTurn{
			{Role: providers.RoleUser, Content: "  ", ImageURL: "https://host/files/a.png"},
		},
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var payload struct {
		Messages []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got := payload.Messages[0].Content[0].Text; got != providers.DefaultImagePrompt {
		t.Fatalf("expected default image prompt, got %q", got)
	}
}

func TestCompleteMissingKeyFailsBeforeHTTP(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(Config{Name: "openai", BaseURL: srv.URL, RequireAPIKey: true, HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "hi"}},
	})

	var configErr *providers.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if called {
		t.Fatal("upstream must not be called without an api key")
	}
}

func TestCompleteVendorErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "groq", BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "hi"}},
	})

	var vendorErr *providers.VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", vendorErr.Status)
	}
	if vendorErr.Body != `{"error":"rate limited"}` {
		t.Fatalf("expected raw vendor body, got %q", vendorErr.Body)
	}
}

func TestCompleteParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "openai", BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	resp, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "pong" {
		t.Fatalf("expected pong, got %q", resp.Text)
	}
}
