package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/germanattanasio/answer-retrieval/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		name    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the rerank API",
		Long: `Sign a JWT that rerankd accepts when it runs with the same JWT_SECRET.

Example usage:
  JWT_SECRET=... scorerctl token --subject client-1 --name "search ui" --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("a signing secret is required (--secret or JWT_SECRET)")
			}
			token, err := auth.NewJWTManager(secret, 24*time.Hour).Issue(subject, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	flags.StringVar(&subject, "subject", "", "client identifier stored as the token subject")
	flags.StringVar(&name, "name", "", "human readable client name")
	flags.DurationVar(&ttl, "ttl", 0, "token lifetime (default 24h)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
