// ABOUTME: Tests for vox-chat configuration loading
// ABOUTME: Covers defaults, env expansion and validation failures

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("VOX_TEST_PASSWORD", "s3cret-pass")
	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[gateway]
url = "https://vox.example.com/"
email = "ada@example.com"
password = "${VOX_TEST_PASSWORD}"
agent = "Nova"

[voice]
replies = true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://vox.example.com", cfg.Gateway.URL)
	assert.Equal(t, "s3cret-pass", cfg.Gateway.Password)
	assert.Equal(t, "Nova", cfg.Gateway.Agent)
	assert.True(t, cfg.Voice.Replies)
	assert.Equal(t, defaultPlayer, cfg.Voice.Player)
	assert.Equal(t, defaultRecorder, cfg.Voice.Recorder)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"no url", `[gateway]
token = "t"`, "gateway.url is required"},
		{"bad scheme", `[gateway]
url = "ftp://vox"
token = "t"`, "http or https"},
		{"no credentials", `[gateway]
url = "http://vox"
email = "ada@example.com"`, "gateway.email and gateway.password"},
		{"bad toml", `[gateway`, "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.toml)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParse_TokenOnly(t *testing.T) {
	cfg, err := parse(`[gateway]
url = "http://localhost:8080"
token = "tok"

[voice]
player = ["mpv", "--no-video"]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"mpv", "--no-video"}, cfg.Voice.Player)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("VOX_CHAT_CONFIG", "/tmp/c.toml")
	assert.Equal(t, "/tmp/c.toml", getConfigPath())
	t.Setenv("VOX_CHAT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "vox", "chat.toml"), getConfigPath())
}
