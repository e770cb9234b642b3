// ABOUTME: useradd subcommand: creates an account directly in the database
// ABOUTME: Prints a session token so the first user can call the API immediately

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/vox-gateway/internal/accounts"
	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/config"
	"github.com/2389/vox-gateway/internal/store"
)

func runUserAdd(ctx context.Context, args []string, in io.Reader) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return errors.New("usage: vox-gateway useradd --email EMAIL --name NAME")
	}

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	password := os.Getenv("VOX_PASSWORD")
	if password == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	token, err := createUser(ctx, cfg, *email, *name, password)
	if err != nil {
		return err
	}

	color.Green("Created %s (%s)", token.User.Email, token.User.ID)
	fmt.Printf("Token (expires %s):\n%s\n", token.ExpiresAt.Format("2006-01-02"), token.Token)
	return nil
}

// createUser registers the account regardless of allow_signup and logs it in.
func createUser(ctx context.Context, cfg *config.Config, email, name, password string) (*accounts.Token, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, err
	}

	svc := accounts.NewService(st, verifier, cfg.Auth.TokenTTL, false, nil)
	if _, err := svc.Register(ctx, email, name, password); err != nil {
		return nil, err
	}
	return svc.Login(ctx, email, password)
}
