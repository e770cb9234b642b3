// ABOUTME: Interactive config creation for vox-gateway
// ABOUTME: Prompts for addresses and paths, generates a signing secret, writes YAML

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// initAnswers is what runInit collects before writing the file.
type initAnswers struct {
	HTTPAddr   string
	PublicURL  string
	DBPath     string
	MediaDir   string
	WebhookURL string
	Speech     bool
	Secret     string
}

func runInit(in io.Reader) error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	r := bufio.NewReader(in)
	dataDir := getDataPath()
	a := initAnswers{Secret: secret}
	a.HTTPAddr = prompt(r, "HTTP listen address", "127.0.0.1:8080")
	a.PublicURL = prompt(r, "Public URL", "http://"+a.HTTPAddr)
	a.DBPath = prompt(r, "Database path", filepath.Join(dataDir, "vox.db"))
	a.MediaDir = prompt(r, "Voice media directory", filepath.Join(dataDir, "media"))
	a.WebhookURL = prompt(r, "Reply webhook URL", "http://localhost:5678/webhook/vox")
	a.Speech = strings.HasPrefix(strings.ToLower(prompt(r, "Enable speech (y/n)", "n")), "y")

	data, err := renderConfig(a)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("Wrote %s", configPath)
	if a.Speech {
		fmt.Println("Set SPEECH_API_KEY in your environment or a .env file next to the config.")
	}
	fmt.Println("Create your first account with: vox-gateway useradd --email you@example.com --name You")
	return nil
}

// renderConfig builds the YAML document. Credentials stay as ${VAR}
// references so the file can be shared without secrets in it.
func renderConfig(a initAnswers) ([]byte, error) {
	doc := map[string]any{
		"server": map[string]any{
			"http_addr":  a.HTTPAddr,
			"public_url": strings.TrimRight(a.PublicURL, "/"),
		},
		"database": map[string]any{"path": a.DBPath},
		"auth": map[string]any{
			"jwt_secret":   a.Secret,
			"allow_signup": false,
			"token_ttl":    "720h",
		},
		"workflow": map[string]any{
			"webhook_url": a.WebhookURL,
			"timeout":     "60s",
		},
		"speech": map[string]any{
			"enabled": a.Speech,
			"api_key": "${SPEECH_API_KEY}",
		},
		"media": map[string]any{"dir": a.MediaDir},
		"integrations": map[string]any{
			"google": map[string]any{
				"client_id":     "${GOOGLE_CLIENT_ID}",
				"client_secret": "${GOOGLE_CLIENT_SECRET}",
			},
		},
		"logging": map[string]any{"level": "info", "format": "text"},
		"metrics": map[string]any{"enabled": true},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// prompt asks a question and returns the answer, or def on empty input or EOF.
func prompt(r *bufio.Reader, question, def string) string {
	fmt.Printf("%s [%s]: ", question, def)
	line, err := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		fmt.Println()
		return def
	}
	if line == "" {
		return def
	}
	return line
}
