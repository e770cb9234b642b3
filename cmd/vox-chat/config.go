// ABOUTME: Configuration loading for vox-chat
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Voice   VoiceConfig   `toml:"voice"`
	Logging LoggingConfig `toml:"logging"`
}

type GatewayConfig struct {
	URL      string `toml:"url"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
	// Token skips the login when set.
	Token string `toml:"token"`
	Agent string `toml:"agent"`
}

type VoiceConfig struct {
	Replies  bool     `toml:"replies"`
	Player   []string `toml:"player"`
	Recorder []string `toml:"recorder"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

var (
	defaultPlayer   = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}
	defaultRecorder = []string{"arecord", "-q", "-f", "cd", "-t", "wav"}
)

// getConfigPath returns VOX_CHAT_CONFIG or XDG_CONFIG_HOME/vox/chat.toml.
func getConfigPath() string {
	if envPath := os.Getenv("VOX_CHAT_CONFIG"); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chat.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "vox", "chat.toml")
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(string(data))
}

func parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(expandEnvVars(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Voice.Player) == 0 {
		cfg.Voice.Player = defaultPlayer
	}
	if len(cfg.Voice.Recorder) == 0 {
		cfg.Voice.Recorder = defaultRecorder
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	cfg.Gateway.URL = strings.TrimRight(cfg.Gateway.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}
	if c.Gateway.Token == "" && (c.Gateway.Email == "" || c.Gateway.Password == "") {
		return fmt.Errorf("gateway.email and gateway.password are required without gateway.token")
	}
	return nil
}
