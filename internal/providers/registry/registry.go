// Package registry maps the admin-configured provider tag to a concrete
// adapter. Adding a vendor means adding one table entry, not editing a
// dispatch switch.
package registry

import (
	"fmt"
	"net/http"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers/anthropic"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers/gemini"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers/openai_compat"
)

const (
	KindOpenAI    = "openai"
	KindGroq      = "groq"
	KindLMStudio  = "lmstudio"
	KindAnthropic = "anthropic"
	KindTogether  = "together"
	KindGemini    = "gemini"

	// DefaultKind is used when the ai_provider setting is absent.
	DefaultKind = KindOpenAI
)

type BuildOptions struct {
	Kind       string
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

type builder func(BuildOptions) providers.Provider

var builders = map[string]builder{
	KindOpenAI: func(opts BuildOptions) providers.Provider {
		return openai_compat.New(openai_compat.Config{
			Name:          KindOpenAI,
			BaseURL:       orDefault(opts.BaseURL, "https://api.openai.com/v1"),
			APIKey:        opts.APIKey,
			DefaultModel:  "gpt-4o-mini",
			RequireAPIKey: true,
			Multimodal:    true,
			HTTPClient:    opts.HTTPClient,
		})
	},
	KindGroq: func(opts BuildOptions) providers.Provider {
		return openai_compat.New(openai_compat.Config{
			Name:          KindGroq,
			BaseURL:       orDefault(opts.BaseURL, "https://api.groq.com/openai/v1"),
			APIKey:        opts.APIKey,
			DefaultModel:  "llama-3.3-70b-versatile",
			RequireAPIKey: true,
			HTTPClient:    opts.HTTPClient,
		})
	},
	KindLMStudio: func(opts BuildOptions) providers.Provider {
		// Local server, no credential required.
		return openai_compat.New(openai_compat.Config{
			Name:         KindLMStudio,
			BaseURL:      orDefault(opts.BaseURL, "http://localhost:1234/v1"),
			APIKey:       opts.APIKey,
			DefaultModel: "local-model",
			HTTPClient:   opts.HTTPClient,
		})
	},
	KindTogether: func(opts BuildOptions) providers.Provider {
		return openai_compat.New(openai_compat.Config{
			Name:          KindTogether,
			BaseURL:       orDefault(opts.BaseURL, "https://api.together.xyz/v1"),
			APIKey:        opts.APIKey,
			DefaultModel:  "meta-llama/Llama-3.3-70B-Instruct-Turbo",
			RequireAPIKey: true,
			HTTPClient:    opts.HTTPClient,
		})
	},
	KindAnthropic: func(opts BuildOptions) providers.Provider {
		return anthropic.New(anthropic.Config{
			BaseURL:    opts.BaseURL,
			APIKey:     opts.APIKey,
			HTTPClient: opts.HTTPClient,
		})
	},
	KindGemini: func(opts BuildOptions) providers.Provider {
		return gemini.New(gemini.Config{
			BaseURL:    opts.BaseURL,
			APIKey:     opts.APIKey,
			HTTPClient: opts.HTTPClient,
		})
	},
}

// Build resolves the adapter for a provider tag. An unrecognized tag is a
// configuration error; no adapter is constructed and no HTTP call happens.
func Build(opts BuildOptions) (providers.Provider, error) {
	b, ok := builders[opts.Kind]
	if !ok {
		return nil, &providers.ConfigError{Reason: fmt.Sprintf("unsupported provider %q", opts.Kind)}
	}
	return b(opts), nil
}

// Kinds lists the supported provider tags.
func Kinds() []string {
	return []string{KindOpenAI, KindGroq, KindLMStudio, KindAnthropic, KindTogether, KindGemini}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
