// ABOUTME: vox-chat is a terminal client for vox-gateway with voice replies
// ABOUTME: Logs in, picks an agent and runs an interactive chat loop

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/vox-gateway/internal/apiclient"
	"github.com/2389/vox-gateway/internal/chatview"
)

func main() {
	configPath := flag.String("config", getConfigPath(), "path to chat.toml")
	conversationID := flag.String("conversation", "", "conversation to resume")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath, conversationID string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)}))

	client := apiclient.NewClient(cfg.Gateway.URL, logger)
	if cfg.Gateway.Token != "" {
		client.SetToken(cfg.Gateway.Token)
	} else if _, err := client.Login(ctx, cfg.Gateway.Email, cfg.Gateway.Password); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching account: %w", err)
	}

	color.Cyan("vox-chat connected to %s as %s", cfg.Gateway.URL, me.Name)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	view := chatview.NewView(chatview.Remote(client), execAudioFactory(cfg.Voice.Player), execMic{command: cfg.Voice.Recorder}, logger)
	defer view.Close()
	view.SetVoiceReplies(cfg.Voice.Replies)

	s := newSession(client, view, os.Stdout)
	if err := s.start(ctx, cfg.Gateway.Agent, conversationID); err != nil {
		s.printError(err)
	}
	return s.loop(ctx, os.Stdin)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}
