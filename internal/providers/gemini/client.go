// Package gemini implements the Google generateContent API. The wire format
// names the assistant role "model" and has no system slot in the contents
// array; system turns are folded into the first user turn instead of being
// dropped.
package gemini

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
	BaseURL      string
	APIKey       string
	DefaultModel string
	HTTPClient   *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-1.5-flash"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

func (c *Client) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return providers.Response{}, &providers.ConfigError{Reason: "gemini api key is not configured"}
	}

	body, err := c.buildPayload(req)
	if err != nil {
		return providers.Response{}, err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.DefaultModel
	}
	endpointURL, err := url.JoinPath(c.cfg.BaseURL, "/v1beta/models/"+model+":generateContent")
	if err != nil {
		return providers.Response{}, fmt.Errorf("build endpoint url: %w", err)
	}
	endpointURL += "?key=" + url.QueryEscape(c.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return providers.Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.Response{}, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Response{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Response{}, &providers.VendorError{
			Provider: "gemini",
			Status:   resp.StatusCode,
			Body:     string(respBody),
		}
	}

	text, err := parseGenerateContent(respBody)
	if err != nil {
		return providers.Response{}, err
	}
	return providers.Response{Text: text}, nil
}

func (c *Client) buildPayload(req providers.Request) ([]byte, error) {
	contents := transformTurns(req.Turns)

	generationConfig := map[string]any{}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		generationConfig["temperature"] = req.Temperature
	}

	payload := map[string]any{
		"contents": contents,
	}
	if len(generationConfig) > 0 {
		payload["generationConfig"] = generationConfig
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate content payload: %w", err)
	}
	return b, nil
}

// transformTurns relabels assistant turns as "model" and folds each system
// turn into the following user turn as a prefix. A history that ends in
// system turns gets them appended as a synthetic user turn so the text is
// never lost.
func transformTurns(turns []providers.ChatTurn) []content {
	var pending []string
	contents := make([]content, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case providers.RoleSystem:
			pending = append(pending, turn.Content)
		case providers.RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: []part{{Text: turn.Content}}})
		default:
			text := turn.Content
			if len(pending) > 0 {
				text = strings.Join(pending, "\n\n") + "\n\n" + text
				pending = nil
			}
			contents = append(contents, content{Role: "user", Parts: []part{{Text: text}}})
		}
	}
	if len(pending) > 0 {
		contents = append(contents, content{Role: "user", Parts: []part{{Text: strings.Join(pending, "\n\n")}}})
	}
	return contents
}

func parseGenerateContent(body []byte) (string, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generate content response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("missing candidates in generate content response")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text in generate content response")
	}
	return text, nil
}
