package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/anthropic"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/gemini"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/openai"
)

func TestNew(t *testing.T) {
	cfg := common.NewDefaultConfig().LLM

	inv, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, inv)

	cfg.Provider = "anthropic"
	inv, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Client{}, inv)

	cfg.Provider = "gemini"
	inv, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &gemini.Client{}, inv)

	cfg.Provider = "ollama"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
