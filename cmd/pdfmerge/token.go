// ABOUTME: token subcommand: mints an admin API JWT
// ABOUTME: Signed with auth.jwt_secret from the config

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lelobhai2456/Pdf-merger/internal/auth"
)

func newTokenCmd(load configLoader) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runToken(cfg.Auth.JWTSecret, subject, ttl, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "operator name stored in the sub claim (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func runToken(secret, subject string, ttl time.Duration, out io.Writer) error {
	if secret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return errors.New("--subject cannot be empty")
	}

	verifier, err := auth.NewJWTVerifier([]byte(secret))
	if err != nil {
		return err
	}
	token, err := verifier.Generate(subject, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
