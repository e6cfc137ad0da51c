package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token in the credentials file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token is required")
			}
			// Stored JSON-encoded, the way the dashboard writes it
			encoded, err := json.Marshal(token)
			if err != nil {
				return err
			}
			if err := a.creds.Delete(gateway.LegacyAuthTokenKey, gateway.LegacySecureAuthTokenKey); err != nil {
				return err
			}
			if err := a.creds.Set(gateway.TokenKey, string(encoded)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", a.creds.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "bearer token")
	cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove every stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.creds.Delete(gateway.AllTokenKeys...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
