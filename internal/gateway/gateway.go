// Package gateway is the single dispatch point that turns a
// provider-agnostic turn history into one vendor-specific completion call.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/crypto"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/metrics"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers/registry"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/settings"
)

// Completion parameters are fixed product-wide, not per request.
const (
	maxTokens   = 1000
	temperature = 0.7
)

type Gateway struct {
	settings   *settings.Service
	crypto     *crypto.Manager
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

type Config struct {
	Settings   *settings.Service
	Crypto     *crypto.Manager
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

func New(cfg Config) *Gateway {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Gateway{
		settings:   cfg.Settings,
		crypto:     cfg.Crypto,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		metrics:    m,
	}
}

// Complete produces exactly one assistant reply for the turn history, or
// fails. Settings are fetched fresh for each invocation; nothing is cached
// across calls and nothing is retried.
func (g *Gateway) Complete(ctx context.Context, turns []providers.ChatTurn) (string, error) {
	snap, err := g.settings.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return g.CompleteWith(ctx, snap, turns)
}

// CompleteWith runs the dispatch against an explicit settings snapshot.
func (g *Gateway) CompleteWith(ctx context.Context, snap settings.Snapshot, turns []providers.ChatTurn) (string, error) {
	kind := snap.Provider()

	apiKey, err := g.resolveAPIKey(snap, kind)
	if err != nil {
		return "", err
	}

	p, err := registry.Build(registry.BuildOptions{
		Kind:       kind,
		BaseURL:    snap.ProviderBaseURL(kind),
		APIKey:     apiKey,
		HTTPClient: g.httpClient,
	})
	if err != nil {
		g.metrics.GatewayErrors.Inc()
		return "", err
	}

	g.metrics.GatewayRequests.Inc()
	started := time.Now()
	resp, err := p.Complete(ctx, providers.Request{
		Model:       snap.ProviderModel(kind),
		Turns:       turns,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		g.metrics.GatewayErrors.Inc()
		g.logger.Error().Err(err).Str("provider", kind).Msg("completion failed")
		return "", err
	}

	g.logger.Debug().
		Str("provider", kind).
		Dur("elapsed", time.Since(started)).
		Int("turns", len(turns)).
		Msg("completion ok")
	return resp.Text, nil
}

// resolveAPIKey decrypts the stored credential for the active provider.
// Plaintext values written before encryption was introduced pass through
// unchanged.
func (g *Gateway) resolveAPIKey(snap settings.Snapshot, kind string) (string, error) {
	raw := strings.TrimSpace(snap.ProviderAPIKey(kind))
	if raw == "" || g.crypto == nil {
		return raw, nil
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	plain, err := g.crypto.UnmarshalEncryptedString(raw)
	if err != nil {
		return "", &providers.ConfigError{Reason: "stored api key for " + kind + " cannot be decrypted"}
	}
	return plain, nil
}
