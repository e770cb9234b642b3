// ABOUTME: Configuration loading and parsing for vox-gateway
// ABOUTME: Supports YAML files with .env loading, environment variable expansion, and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is omitted
const (
	DefaultHTTPAddr        = ":8080"
	DefaultTokenTTL        = 30 * 24 * time.Hour
	DefaultWorkflowTimeout = 30 * time.Second
	DefaultSpeechTimeout   = 20 * time.Second
	DefaultSpeechBaseURL   = "https://api.elevenlabs.io"
	DefaultVoiceID         = "21m00Tcm4TlvDq8ikWAM"
	DefaultTTSModel        = "eleven_monolingual_v1"
	DefaultSTTModel        = "scribe_v1"
	DefaultMediaURLPrefix  = "/media"
	DefaultTitleLength     = 50
	DefaultIdempotencyTTL  = 10 * time.Minute
	DefaultIdempotencyMax  = 10000
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete vox-gateway configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Speech       SpeechConfig       `yaml:"speech"`
	Media        MediaConfig        `yaml:"media"`
	Chat         ChatConfig         `yaml:"chat"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	CORS         CORSConfig         `yaml:"cors"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// PublicURL is the externally reachable base URL, used for media links
	// and OAuth redirect URIs.
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	AllowSignup bool          `yaml:"allow_signup"`
	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// WorkflowConfig points at the reply-generation webhook
type WorkflowConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// SpeechConfig holds text-to-speech and speech-to-text settings
type SpeechConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	VoiceID    string        `yaml:"voice_id"`
	ModelID    string        `yaml:"model_id"`
	STTModelID string        `yaml:"stt_model_id"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// MediaConfig holds where synthesized audio is written and served from
type MediaConfig struct {
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix"`
}

// ChatConfig holds message pipeline tuning
type ChatConfig struct {
	TitleLength       int           `yaml:"title_length"`
	IdempotencyMax    int           `yaml:"idempotency_max"`
	IdempotencyTTL    time.Duration `yaml:"-"`
	IdempotencyTTLRaw string        `yaml:"idempotency_ttl"`
}

// IntegrationsConfig holds third-party provider credentials
type IntegrationsConfig struct {
	Google GoogleConfig `yaml:"google"`
}

// GoogleConfig holds the OAuth client used for Gmail and Calendar
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Enabled reports whether Google OAuth is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// CORSConfig holds browser origin policy
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.PublicURL == "" {
		host := c.Server.HTTPAddr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		c.Server.PublicURL = "http://" + host
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Workflow.Timeout == 0 {
		c.Workflow.Timeout = DefaultWorkflowTimeout
	}

	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = DefaultSpeechBaseURL
	}
	if c.Speech.VoiceID == "" {
		c.Speech.VoiceID = DefaultVoiceID
	}
	if c.Speech.ModelID == "" {
		c.Speech.ModelID = DefaultTTSModel
	}
	if c.Speech.STTModelID == "" {
		c.Speech.STTModelID = DefaultSTTModel
	}
	if c.Speech.Timeout == 0 {
		c.Speech.Timeout = DefaultSpeechTimeout
	}

	if c.Media.URLPrefix == "" {
		c.Media.URLPrefix = DefaultMediaURLPrefix
	}
	if c.Chat.TitleLength <= 0 {
		c.Chat.TitleLength = DefaultTitleLength
	}
	if c.Chat.IdempotencyTTL == 0 {
		c.Chat.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if c.Chat.IdempotencyMax <= 0 {
		c.Chat.IdempotencyMax = DefaultIdempotencyMax
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.Workflow.WebhookURL == "" {
		return fmt.Errorf("workflow.webhook_url is required")
	}

	if c.Speech.Enabled {
		if c.Speech.APIKey == "" {
			return fmt.Errorf("speech.api_key is required when speech is enabled")
		}
		if c.Media.Dir == "" {
			return fmt.Errorf("media.dir is required when speech is enabled")
		}
	}

	if !strings.HasPrefix(c.Media.URLPrefix, "/") {
		return fmt.Errorf("media.url_prefix must start with /")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	g := c.Integrations.Google
	if (g.ClientID == "") != (g.ClientSecret == "") {
		return fmt.Errorf("integrations.google needs both client_id and client_secret")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"workflow.timeout", cfg.Workflow.TimeoutRaw, &cfg.Workflow.Timeout},
		{"speech.timeout", cfg.Speech.TimeoutRaw, &cfg.Speech.Timeout},
		{"chat.idempotency_ttl", cfg.Chat.IdempotencyTTLRaw, &cfg.Chat.IdempotencyTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
