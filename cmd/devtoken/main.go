// Command devtoken mints a bearer token for local testing of the intervention API.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/fieldops/intervention-service/internal/auth"
	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var subject, name, role string

	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVar(&subject, "subject", "", "user id carried in the token (required)")
	flagSet.StringVar(&name, "name", "", "display name")
	flagSet.StringVar(&role, "role", string(domain.RoleDispatcher), "DISPATCHER, TECHNICIAN, MANAGER or SYSTEM")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if subject == "" {
		return fmt.Errorf("--subject is required")
	}

	r := domain.Role(strings.ToUpper(role))
	switch r {
	case domain.RoleDispatcher, domain.RoleTechnician, domain.RoleManager, domain.RoleSystem:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(subject, name, r)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
