// Package provider builds the configured llm.Invoker.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/anthropic"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/gemini"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/openai"
)

// New returns the invoker for cfg.Provider.
func New(cfg common.LLMConfig, logger *slog.Logger) (llm.Invoker, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.NewClient(openai.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout.Duration,
			Referer:  cfg.Referer,
			Title:    cfg.Title,
			JSONMode: cfg.JSONMode,
		}, logger), nil
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout.Duration,
		}, logger), nil
	case "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm provider %q", cfg.Provider), nil)
	}
}
