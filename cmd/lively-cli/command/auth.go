package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"livelyclient/cmd/lively-cli/authentication"
	"livelyclient/internal/auth"
)

// authCmd groups the keyring token commands.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored realm token",
	Long:  `Store, show or remove the realm token kept in the OS keyring.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the --token value in the keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("token") {
			return fmt.Errorf("--token is required")
		}
		value := token
		if auth.IsPlaceholder(value) {
			return fmt.Errorf("refusing to store the placeholder token %q", value)
		}

		out := cmd.OutOrStdout()
		if warning := auth.Check(value, time.Now()); warning != "" {
			color.New(color.FgYellow).Fprintf(out, "! %s\n", warning)
		}

		creds := &authentication.StoredCredentials{Token: value, Realm: cfg.Realm, SavedAt: time.Now().UTC()}
		if err := authentication.StoreToken(creds); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		color.New(color.FgGreen).Fprintln(out, "✓ Token stored.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored realm token",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := authentication.DeleteToken()
		if errors.Is(err, authentication.ErrNoCredentials) {
			fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("remove token: %w", err)
		}
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✓ Token removed.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored realm token",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		creds, err := authentication.GetToken()
		if errors.Is(err, authentication.ErrNoCredentials) {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}

		fmt.Fprintf(out, "Token:    %s\n", maskToken(creds.Token))
		fmt.Fprintf(out, "Realm:    %s\n", creds.Realm)
		fmt.Fprintf(out, "Saved at: %s\n", creds.SavedAt.Format(time.RFC3339))
		if warning := auth.Check(creds.Token, time.Now()); warning != "" {
			color.New(color.FgYellow).Fprintf(out, "! %s\n", warning)
		}
		return nil
	},
}

// maskToken keeps the first and last four characters.
func maskToken(t string) string {
	if len(t) <= 8 {
		return "********"
	}
	return t[:4] + "…" + t[len(t)-4:]
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(authCmd)
}
