package registry

import (
	"errors"
	"testing"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
)

func TestBuildKnownKinds(t *testing.T) {
	for _, kind := range Kinds() {
		p, err := Build(BuildOptions{Kind: kind, APIKey: "k"})
		if err != nil {
			t.Fatalf("build %s: %v", kind, err)
		}
		if p == nil {
			t.Fatalf("build %s returned nil provider", kind)
		}
	}
}

func TestBuildUnsupportedKind(t *testing.T) {
	p, err := Build(BuildOptions{Kind: "mistral"})
	if p != nil {
		t.Fatal("expected no provider for unsupported kind")
	}
	var configErr *providers.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
