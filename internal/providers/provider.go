package providers

import (
	"context"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultImagePrompt is substituted when a turn carries an image but no
// text. The wording is the product's original pt-BR prompt.
const DefaultImagePrompt = "O que você vê nesta imagem?"

// ChatTurn is one message of the conversation history replayed to the
// vendor on every completion call.
type ChatTurn struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

type Request struct {
	Model       string
	Turns       []ChatTurn
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Text string
}

// Provider produces exactly one assistant reply for an ordered turn
// history. Implementations issue a single synchronous HTTP call with no
// retry and no caching.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ConfigError is fatal for the request before any network call is made:
// an unsupported provider tag or a missing credential.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "provider configuration error: " + e.Reason
}

// VendorError wraps a non-2xx vendor response. The raw body is surfaced
// verbatim as the error detail.
type VendorError struct {
	Provider string
	Status   int
	Body     string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.Status, e.Body)
}
