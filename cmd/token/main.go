// Package main mints access tokens accepted by the Tubely API. Accounts and
// login live outside this service; operators and the login service use this
// to hand a user a bearer token signed with the shared JWT_SECRET.
//
// Usage:
//
//	JWT_SECRET=... tubely-token <user-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/tubely-api/internal/auth"
)

var errUsage = errors.New("usage: tubely-token <user-id>")

type tokenConfig struct {
	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=1h"`
}

func main() {
	if err := run(context.Background(), os.Args[1:], envconfig.OsLookuper(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, lookuper envconfig.Lookuper, out io.Writer) error {
	if len(args) != 1 || args[0] == "" {
		return errUsage
	}

	var cfg tokenConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	issuer, err := auth.NewJWT(cfg.JWTSecret, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}

	token, err := issuer.Issue(args[0])
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
