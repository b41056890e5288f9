package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"warish/internal/jwt_token"
	"warish/internal/platform/config"
)

// newTokenCmd mints a staff bearer token signed with SECRET_KEY. Intended for
// local development and operator scripts.
func newTokenCmd() *cobra.Command {
	var (
		staffID string
		name    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Use()
			if err != nil {
				return err
			}
			token, err := jwttoken.NewJWTService(cfg.SecretKey, jwtIssuer, jwtAudience).
				GenerateStaffToken(staffID, name, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&staffID, "staff-id", "", "staff identifier placed in the subject claim")
	cmd.Flags().StringVar(&name, "name", "", "display name of the staff member")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
