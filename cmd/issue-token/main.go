// Command issue-token mints a user token for the provider API, signed with JWT_SECRET.
// Its generate-key subcommand prints a fresh ENCRYPTION_KEY.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"model_settings/internal/auth"
	"model_settings/internal/config"
	"model_settings/internal/storage"
)

func main() {
	var (
		roles []string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:          "issue-token <user-id>",
		Short:        "Mint a provider API token for a user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var parsed []auth.Role
			for _, r := range roles {
				role := auth.Role(strings.TrimSpace(r))
				if !role.IsValid() {
					return fmt.Errorf("unknown role %q", role)
				}
				parsed = append(parsed, role)
			}

			if os.Getenv("JWT_SECRET") == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: JWT_SECRET not set, signing with the development default")
			}

			cfg := &config.Config{JWTSecret: config.LoadJWTSecret()}
			token, exp, err := auth.GenerateUserToken(args[0], parsed, ttl, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Token for %s expires %s\n", args[0], time.Unix(exp, 0).Format(time.RFC3339))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "roles", []string{string(auth.RoleOwner)}, "roles: owner, viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	cmd.AddCommand(generateKeyCommand())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateKeyCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:          "generate-key",
		Short:        "Print a random base64 key for ENCRYPTION_KEY",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := storage.GenerateKey(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 32, "key size in bytes: 16, 24 or 32")
	return cmd
}
