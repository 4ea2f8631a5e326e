package command

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"livelyclient/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Token utilities",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Decode a token's claims without verifying it",
	Long: `Decode the claims of a JWT realm token. The signature is not checked; only
the realm can do that. Without an argument the resolved token (--token,
$LIVELY_TOKEN or the keyring) is inspected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := cfg.Token
		if len(args) == 1 {
			value = args[0]
		}

		out := cmd.OutOrStdout()
		if warning := auth.Check(value, time.Now()); warning != "" {
			color.New(color.FgYellow).Fprintf(out, "! %s\n", warning)
		}

		info, err := auth.Inspect(value)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Algorithm: %s\n", info.Algorithm)
		fmt.Fprintf(out, "Subject:   %s\n", info.Subject)
		fmt.Fprintf(out, "Username:  %s\n", info.Username)
		fmt.Fprintf(out, "Issuer:    %s\n", info.Issuer)
		fmt.Fprintf(out, "Issued at: %s\n", formatTime(info.IssuedAt))
		fmt.Fprintf(out, "Expires:   %s\n", formatTime(info.ExpiresAt))
		return nil
	},
}

var tokenSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Issue an HS256 token for a local dev realm",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			secret = cfg.DevRealmSecret
		}
		if secret == "" {
			return fmt.Errorf("--secret or DEV_REALM_SECRET is required")
		}
		user, _ := cmd.Flags().GetString("user")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		signed, err := auth.SignDevToken(secret, user, ttl, time.Now())
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd)
	tokenCmd.AddCommand(tokenSignCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenSignCmd.Flags().String("secret", "", "HS256 secret (default $DEV_REALM_SECRET)")
	tokenSignCmd.Flags().StringP("user", "u", "dev", "subject and username claim")
	tokenSignCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}
