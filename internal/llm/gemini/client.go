// Package gemini invokes Google Gemini models through the genai SDK.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm"
)

type Config struct {
	APIKey  string // falls back to GEMINI_API_KEY, then GOOGLE_API_KEY
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg Config
	log *slog.Logger
}

var _ llm.Invoker = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, log: logger}
}

// Invoke sends one GenerateContent call. The SDK client is created per call
// so nothing is shared between extractions.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	temp := llm.ClampTemperature(req.Temperature)
	resp := llm.Response{Model: c.cfg.Model}

	cc := &genai.ClientConfig{
		APIKey:     c.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: c.cfg.Timeout},
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return resp, fmt.Errorf("gemini client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.UserText())}
	if req.ImageURL != "" {
		part, err := imagePart(req.ImageURL)
		if err != nil {
			return resp, err
		}
		parts = append(parts, part)
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if req.Instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instruction, genai.RoleUser)
	}

	out, err := client.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
	resp.Elapsed = time.Since(start)
	if err != nil {
		c.log.Warn("llm.invoke.error", "provider", "gemini", "error", err, "elapsed_ms", resp.Elapsed.Milliseconds())
		return resp, fmt.Errorf("gemini generate: %w", err)
	}
	resp.HTTPStatus = http.StatusOK

	var text strings.Builder
	if out != nil {
		for _, cand := range out.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, p := range cand.Content.Parts {
				if p != nil && p.Text != "" {
					text.WriteString(p.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	resp.RawText = text.String()
	resp.Succeeded = strings.TrimSpace(resp.RawText) != ""

	c.log.Info("llm.invoke.ok",
		"provider", "gemini",
		"model", c.cfg.Model,
		"temp", temp,
		"has_image", req.ImageURL != "",
		"content_len", len(resp.RawText),
		"elapsed_ms", resp.Elapsed.Milliseconds(),
	)
	return resp, nil
}

func imagePart(u string) (*genai.Part, error) {
	if llm.IsDataURL(u) {
		mt, data, err := llm.ParseDataURL(u)
		if err != nil {
			return nil, fmt.Errorf("image attachment: %w", err)
		}
		return genai.NewPartFromBytes(data, mt), nil
	}
	return genai.NewPartFromURI(u, llm.ImageMimeFromURL(u)), nil
}
