// Package openai talks to OpenAI-compatible chat/completions endpoints such as
// OpenRouter.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm"
)

// Config for the chat/completions client.
type Config struct {
	APIKey   string // falls back to OPENROUTER_API_KEY, then OPENAI_API_KEY
	BaseURL  string // default https://openrouter.ai/api/v1
	Model    string
	Timeout  time.Duration
	Referer  string // sent as HTTP-Referer
	Title    string // sent as X-Title
	JSONMode bool   // request response_format json_object
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

var _ llm.Invoker = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.0-flash-lite-preview-02-05:free"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Invoke sends one chat completion. Transport errors, non-2xx answers and
// bodies without choices are errors; an empty message content is returned
// with Succeeded=false.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	temp := llm.ClampTemperature(req.Temperature)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": temp,
		"messages": []map[string]any{
			{"role": "system", "content": req.Instruction},
			{"role": "user", "content": userContent(req)},
		},
	}
	if c.cfg.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := llm.PostJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	resp := llm.Response{HTTPStatus: status, Model: c.cfg.Model, Elapsed: time.Since(start)}
	if err != nil {
		return resp, fmt.Errorf("chat completion: %w", err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return resp, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(cc.Choices) == 0 {
		return resp, fmt.Errorf("no choices in chat completion")
	}
	if cc.Model != "" {
		resp.Model = cc.Model
	}
	resp.RawText = cc.Choices[0].Message.Content
	resp.Succeeded = strings.TrimSpace(resp.RawText) != ""

	c.log.Info("llm.invoke.ok",
		"provider", "openai",
		"model", resp.Model,
		"temp", temp,
		"has_image", req.ImageURL != "",
		"content_len", len(resp.RawText),
		"elapsed_ms", resp.Elapsed.Milliseconds(),
	)
	return resp, nil
}

// userContent is plain text for documents and a text+image_url part list for
// images.
func userContent(req llm.Request) any {
	if req.ImageURL == "" {
		return req.UserText()
	}
	return []map[string]any{
		{"type": "text", "text": req.UserText()},
		{"type": "image_url", "image_url": map[string]any{"url": req.ImageURL}},
	}
}
