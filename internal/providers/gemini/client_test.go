package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
)

func TestTransformTurnsRenamesAssistant(t *testing.T) {
	contents := transformTurns([]providers.ChatTurn{
		{Role: providers.RoleUser, Content: "hello"},
		{Role: providers.RoleAssistant, Content: "hi"},
		{Role: providers.RoleUser, Content: "bye"},
	})

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, want := range wantRoles {
		if contents[i].Role != want {
			t.Fatalf("content %d: expected role %q, got %q", i, want, contents[i].Role)
		}
		if len(contents[i].Parts) != 1 {
			t.Fatalf("content %d: expected single part, got %d", i, len(contents[i].Parts))
		}
	}
	if contents[1].Parts[0].Text != "hi" {
		t.Fatalf("unexpected model part %q", contents[1].Parts[0].Text)
	}
}

func TestTransformTurnsFoldsSystemIntoNextUserTurn(t *testing.T) {
	contents := transformTurns([]providers.ChatTurn{
		{Role: providers.RoleSystem, Content: "be terse"},
		{Role: providers.RoleUser, Content: "hello"},
	})

	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	if got := contents[0].Parts[0].Text; got != "be terse\n\nhello" {
		t.Fatalf("unexpected folded text %q", got)
	}
}

func TestTransformTurnsTrailingSystemBecomesUserTurn(t *testing.T) {
	contents := transformTurns([]providers.ChatTurn{
		{Role: providers.RoleUser, Content: "hello"},
		{Role: providers.RoleAssistant, Content: "hi"},
		{Role: providers.RoleSystem, Content: "now answer in portuguese"},
	})

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	last := contents[2]
	if last.Role != "user" || last.Parts[0].Text != "now answer in portuguese" {
		t.Fatalf("trailing system text was lost: %#v", last)
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
		if !strings.HasPrefix(r.URL.Path, "/v1beta/models/gemini-1.5-flash") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "k" {
			t.Errorf("unexpected key param %q", got)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
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

func TestCompleteVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), providers.Request{
		Turns: []providers.ChatTurn{{Role: providers.RoleUser, Content: "hi"}},
	})

	var vendorErr *providers.VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.Provider != "gemini" || vendorErr.Status != http.StatusForbidden {
		t.Fatalf("unexpected vendor error %#v", vendorErr)
	}
}
