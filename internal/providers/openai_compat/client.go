// Package openai_compat implements the chat-completions wire format shared
// by OpenAI, Groq, Together and LM Studio. One client serves all four; the
// registry parameterizes base URL, default model and credential policy.
package openai_compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
)

type Config struct {
	Name          string
	BaseURL       string
	APIKey        string
	DefaultModel  string
	RequireAPIKey bool

	// Multimodal turns an image-carrying user turn into the two-part
	// content array; when false image references are silently dropped.
	Multimodal bool

	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	if c.cfg.RequireAPIKey && strings.TrimSpace(c.cfg.APIKey) == "" {
		return providers.Response{}, &providers.ConfigError{Reason: c.cfg.Name + " api key is not configured"}
	}

	body, endpointURL, err := c.buildPayload(req)
	if err != nil {
		return providers.Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return providers.Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.Response{}, fmt.Errorf("%s request failed: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Response{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Response{}, &providers.VendorError{
			Provider: c.cfg.Name,
			Status:   resp.StatusCode,
			Body:     string(respBody),
		}
	}

	text, err := parseChatCompletions(respBody)
	if err != nil {
		return providers.Response{}, fmt.Errorf("%s: %w", c.cfg.Name, err)
	}
	return providers.Response{Text: text}, nil
}

func (c *Client) buildPayload(req providers.Request) ([]byte, string, error) {
	endpointURL, err := c.buildEndpointURL()
	if err != nil {
		return nil, "", err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.DefaultModel
	}

	messages := make([]any, 0, len(req.Turns))
	for _, turn := range req.Turns {
		if c.cfg.Multimodal && turn.Role == providers.RoleUser && turn.ImageURL != "" {
			text := turn.Content
			if strings.TrimSpace(text) == "" {
				text = providers.DefaultImagePrompt
			}
			messages = append(messages, map[string]any{
				"role": turn.Role,
				"content": []map[string]any{
					{"type": "text", "text": text},
					{"type": "image_url", "image_url": map[string]any{
						"url":    turn.ImageURL,
						"detail": "high",
					}},
				},
			})
			continue
		}
		messages = append(messages, map[string]string{
			"role":    turn.Role,
			"content": turn.Content,
		})
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal chat completion payload: %w", err)
	}
	return b, endpointURL, nil
}

func (c *Client) buildEndpointURL() (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" {
		return "", &providers.ConfigError{Reason: c.cfg.Name + " base url is empty"}
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base, nil
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/chat/completions"
	return u.String(), nil
}

func parseChatCompletions(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat completion response")
	}
	if strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("missing message content in chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
