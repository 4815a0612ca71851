package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ai-receptionist/user-portal/user-portal-backend/internal/auth"
)

var (
	tokenUser string
	tokenRole string
)

// tokenCmd mints a bearer token for local testing
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with the configured JWT secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Security.JWTSecret == "" {
			return errors.New("JWT_SECRET is not configured")
		}
		switch tokenRole {
		case auth.RoleUser, auth.RoleAdmin:
		default:
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		tm := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.TokenTTL)
		raw, err := tm.Issue(tokenUser, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	},
}
