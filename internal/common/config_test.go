package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeTOML(t, `
[llm]
provider = "anthropic"
model = "claude-test"
timeout = "45s"

[ingest]
max_chars = 1000
`)
	t.Setenv("LLM_MODEL", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout.Duration)
	assert.Equal(t, 1000, cfg.Ingest.MaxChars)
	assert.Equal(t, "pdfcpu", cfg.Ingest.PDFExtractor, "untouched defaults survive")
	assert.False(t, cfg.Ingest.AllowLocal)
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	for name, body := range map[string]string{
		"retired temperature": "[llm]\ntemperature = 0.9\n",
		"allow_local":         "[ingest]\nallow_local = true\n",
		"typo":                "[server]\nhttp_adr = \":8080\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeTOML(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.APIKey = "k"
	require.NoError(t, cfg.Validate())

	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)

	cfg = NewDefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.Ingest.PDFExtractor = "ocr"
	assert.Error(t, cfg.Validate())
}
