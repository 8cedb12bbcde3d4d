// Package anthropic invokes Claude models through the Messages API.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm"
)

type Config struct {
	APIKey    string // falls back to ANTHROPIC_API_KEY
	BaseURL   string // optional override
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	cfg Config
	log *slog.Logger
}

var _ llm.Invoker = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, log: logger}
}

func (c *Client) options() []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(c.cfg.APIKey),
		option.WithRequestTimeout(c.cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	return opts
}

// Invoke sends one Messages request and concatenates the text blocks of the
// answer.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	temp := llm.ClampTemperature(req.Temperature)

	blocks := []sdk.ContentBlockParamUnion{sdk.NewTextBlock(req.UserText())}
	if req.ImageURL != "" {
		img, err := imageBlock(req.ImageURL)
		if err != nil {
			return llm.Response{Model: c.cfg.Model}, err
		}
		blocks = append(blocks, img)
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
		Temperature: sdk.Float(float64(temp)),
	}
	if req.Instruction != "" {
		params.System = []sdk.TextBlockParam{{Text: req.Instruction}}
	}

	client := sdk.NewClient(c.options()...)
	msg, err := client.Messages.New(ctx, params)
	resp := llm.Response{Model: c.cfg.Model, Elapsed: time.Since(start)}
	if err != nil {
		c.log.Warn("llm.invoke.error", "provider", "anthropic", "error", err, "elapsed_ms", resp.Elapsed.Milliseconds())
		return resp, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	resp.RawText = text.String()
	resp.Succeeded = strings.TrimSpace(resp.RawText) != ""
	resp.HTTPStatus = 200

	c.log.Info("llm.invoke.ok",
		"provider", "anthropic",
		"model", c.cfg.Model,
		"temp", temp,
		"has_image", req.ImageURL != "",
		"content_len", len(resp.RawText),
		"elapsed_ms", resp.Elapsed.Milliseconds(),
	)
	return resp, nil
}

func imageBlock(u string) (sdk.ContentBlockParamUnion, error) {
	if llm.IsDataURL(u) {
		mt, _, err := llm.ParseDataURL(u)
		if err != nil {
			return sdk.ContentBlockParamUnion{}, fmt.Errorf("image attachment: %w", err)
		}
		_, payload, _ := strings.Cut(u, ",")
		return sdk.NewImageBlockBase64(mt, payload), nil
	}
	return sdk.NewImageBlock(sdk.URLImageSourceParam{URL: u}), nil
}
