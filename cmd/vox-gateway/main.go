// ABOUTME: Entry point for vox-gateway, the voice assistant dashboard backend
// ABOUTME: Subcommands: serve, init, useradd and health

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/vox-gateway/internal/config"
	"github.com/2389/vox-gateway/internal/gateway"
)

// version is set at build time via -ldflags.
var version = "dev"

const banner = `
 __   _______  __
 \ \ / / _ \ \/ /
  \ V / (_) >  <   gateway
   \_/ \___/_/\_\
`

// getConfigPath returns the path to the gateway config file.
// Priority: VOX_CONFIG env var > XDG_CONFIG_HOME/vox/gateway.yaml > ~/.config/vox/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("VOX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "vox", "gateway.yaml")
}

// getDataPath returns the path to the vox data directory.
// Priority: XDG_DATA_HOME/vox > ~/.local/share/vox
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "vox")
}

// loadConfig reads .env files next to the config and in the working
// directory, then the config itself.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func usage() {
	fmt.Println("Usage: vox-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the gateway server")
	fmt.Println("  init                                Create a new config file interactively")
	fmt.Println("  useradd --email EMAIL --name NAME   Create a user account and print a token")
	fmt.Println("  health                              Check gateway health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "useradd":
		err = runUserAdd(ctx, os.Args[2:], os.Stdin)
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Public:    %s\n", cfg.Server.PublicURL)
	green.Print("    ▶ ")
	fmt.Printf("Speech:    ")
	if cfg.Speech.Enabled {
		cyan.Println(cfg.Speech.VoiceID)
	} else {
		yellow.Println("disabled")
	}
	green.Print("    ▶ ")
	fmt.Printf("Google:    ")
	if cfg.Integrations.Google.Enabled() {
		cyan.Println("configured")
	} else {
		gray.Println("not configured")
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting vox-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	url := cfg.Server.PublicURL + "/health/ready"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	color.Green("healthy")
	return nil
}
