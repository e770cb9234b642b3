// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, .env files, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9090"
  public_url: "https://vox.example.com/"

database:
  path: "./test.db"

auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: "24h"
  allow_signup: true

workflow:
  webhook_url: "http://n8n:5678/webhook/chat-agent"
  api_key: "n8n-key"
  timeout: "45s"

speech:
  enabled: true
  api_key: "xi-key"
  voice_id: "voice-1"
  timeout: "5s"

media:
  dir: "/var/lib/vox/media"

chat:
  title_length: 40
  idempotency_ttl: "1m"

integrations:
  google:
    client_id: "cid"
    client_secret: "csecret"

cors:
  allowed_origins:
    - "http://localhost:5173"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://vox.example.com", cfg.Server.PublicURL, "trailing slash trimmed")
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.AllowSignup)
	assert.Equal(t, 45*time.Second, cfg.Workflow.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, "voice-1", cfg.Speech.VoiceID)
	assert.Equal(t, DefaultTTSModel, cfg.Speech.ModelID)
	assert.Equal(t, DefaultSpeechBaseURL, cfg.Speech.BaseURL)
	assert.Equal(t, "/media", cfg.Media.URLPrefix)
	assert.Equal(t, 40, cfg.Chat.TitleLength)
	assert.Equal(t, time.Minute, cfg.Chat.IdempotencyTTL)
	assert.Equal(t, DefaultIdempotencyMax, cfg.Chat.IdempotencyMax)
	assert.True(t, cfg.Integrations.Google.Enabled())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "./test.db"
auth:
  jwt_secret: "`+testSecret+`"
workflow:
  webhook_url: "http://localhost:5678/webhook/chat-agent"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, DefaultWorkflowTimeout, cfg.Workflow.Timeout)
	assert.Equal(t, DefaultSpeechTimeout, cfg.Speech.Timeout)
	assert.Equal(t, DefaultVoiceID, cfg.Speech.VoiceID)
	assert.Equal(t, DefaultTitleLength, cfg.Chat.TitleLength)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.Speech.Enabled)
	assert.False(t, cfg.Integrations.Google.Enabled())
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("VOX_TEST_SECRET", testSecret)
	t.Setenv("VOX_TEST_WEBHOOK", "http://n8n/webhook/chat-agent")

	path := writeConfig(t, `
database:
  path: "./test.db"
auth:
  jwt_secret: "${VOX_TEST_SECRET}"
workflow:
  webhook_url: "${VOX_TEST_WEBHOOK}"
  api_key: "${VOX_TEST_UNSET_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "http://n8n/webhook/chat-agent", cfg.Workflow.WebhookURL)
	assert.Empty(t, cfg.Workflow.APIKey, "unset variables expand to empty")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("VOX_DOTENV_SECRET="+testSecret+"\n"), 0600))
	t.Setenv("VOX_DOTENV_SECRET", "")
	os.Unsetenv("VOX_DOTENV_SECRET")

	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "missing.env")))
	assert.Equal(t, testSecret, os.Getenv("VOX_DOTENV_SECRET"))

	cfg, err := Parse([]byte(`
database: {path: "./x.db"}
auth: {jwt_secret: "${VOX_DOTENV_SECRET}"}
workflow: {webhook_url: "http://n8n"}
`))
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
}

func TestLoad_Validation(t *testing.T) {
	base := map[string]string{
		"database": `database: {path: "./x.db"}`,
		"auth":     `auth: {jwt_secret: "` + testSecret + `"}`,
		"workflow": `workflow: {webhook_url: "http://n8n"}`,
	}

	tests := []struct {
		name    string
		mutate  func(map[string]string)
		extra   string
		wantErr string
	}{
		{
			name:    "missing database path",
			mutate:  func(m map[string]string) { delete(m, "database") },
			wantErr: "database.path is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(m map[string]string) { m["auth"] = `auth: {jwt_secret: "short"}` },
			wantErr: "jwt_secret must be at least 32 bytes",
		},
		{
			name:    "missing webhook",
			mutate:  func(m map[string]string) { delete(m, "workflow") },
			wantErr: "workflow.webhook_url is required",
		},
		{
			name:    "speech without key",
			extra:   `speech: {enabled: true}`,
			wantErr: "speech.api_key is required",
		},
		{
			name:    "speech without media dir",
			extra:   `speech: {enabled: true, api_key: "k"}`,
			wantErr: "media.dir is required",
		},
		{
			name:    "bad log format",
			extra:   `logging: {format: "xml"}`,
			wantErr: "logging.format must be text or json",
		},
		{
			name:    "half google config",
			extra:   `integrations: {google: {client_id: "x"}}`,
			wantErr: "needs both client_id and client_secret",
		},
		{
			name:    "bad duration",
			extra:   `chat: {idempotency_ttl: "soon"}`,
			wantErr: "chat.idempotency_ttl",
		},
		{
			name:    "negative duration",
			mutate:  func(m map[string]string) { m["workflow"] = `workflow: {webhook_url: "http://n8n", timeout: "-1s"}` },
			wantErr: "workflow.timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := make(map[string]string, len(base))
			for k, v := range base {
				sections[k] = v
			}
			if tt.mutate != nil {
				tt.mutate(sections)
			}
			var lines []string
			for _, v := range sections {
				lines = append(lines, v)
			}
			if tt.extra != "" {
				lines = append(lines, tt.extra)
			}

			_, err := Parse([]byte(strings.Join(lines, "\n")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
