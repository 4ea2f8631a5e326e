package command

// root.go defines the root command for lively-cli and the global flags
// shared by every subcommand.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"livelyclient/cmd/lively-cli/authentication"
	"livelyclient/internal/config"
	"livelyclient/internal/logging"
)

var (
	cfg *config.Config // loaded in PersistentPreRunE, flags applied on top

	realmURL        string
	socketPath      string
	namespace       string
	token           string
	debug           bool
	disconnectOnAck bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lively-cli",
	Short: "lively-cli - broadcast messages into a Lively realm",
	Long: `lively-cli connects to a Lively realm over Socket.IO and broadcasts
messages into its rooms. It can:
- Send one payload, or one per stdin line, to a room
- Keep the realm token in the OS keyring
- Inspect the claims of a token
- Show the archive of sent messages and the mirrored event log

Settings come from LIVELY_* environment variables (and an optional .env file);
the flags below override them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&realmURL, "realm", "", "realm URL (default $LIVELY_REALM or wss://matt.engagelively.com/)")
	flags.StringVar(&socketPath, "path", "", "Socket.IO sub-path (default $LIVELY_PATH or /lively-socket.io)")
	flags.StringVar(&namespace, "namespace", "", "Socket.IO namespace (default $LIVELY_NAMESPACE or /l2l)")
	flags.StringVar(&token, "token", "", "realm token (default $LIVELY_TOKEN, then the keyring)")
	flags.BoolVar(&debug, "debug", false, "trace connection events and serialized messages")
	flags.BoolVar(&disconnectOnAck, "disconnect-on-ack", false, "disconnect as soon as the realm acknowledges a message")
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	loaded, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("realm") {
		loaded.Realm = realmURL
	}
	if flags.Changed("path") {
		loaded.Path = socketPath
	}
	if flags.Changed("namespace") {
		loaded.Namespace = namespace
	}
	if flags.Changed("debug") {
		loaded.Debug = debug
	}
	if flags.Changed("disconnect-on-ack") {
		loaded.DisconnectOnAck = disconnectOnAck
	}
	loaded.Token = resolveToken(flags.Changed("token"), loaded.Token)

	if loaded.Debug {
		loaded.LogLevel = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	logging.InitLogger(loaded.LogLevel, loaded.LogFormat)
	cfg = loaded
	return nil
}

// resolveToken picks the --token flag, then $LIVELY_TOKEN, then the keyring,
// falling back to the configured default.
func resolveToken(flagSet bool, configured string) string {
	if flagSet {
		return token
	}
	if os.Getenv("LIVELY_TOKEN") != "" {
		return configured
	}
	creds, err := authentication.GetToken()
	if err == nil && creds.Token != "" {
		return creds.Token
	}
	if err != nil && !errors.Is(err, authentication.ErrNoCredentials) {
		logging.Logger.Debug("Keyring unavailable", "error", err)
	}
	return configured
}
