package command

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"livelyclient/internal/lively"
	"livelyclient/internal/logging"
)

var sendCmd = &cobra.Command{
	Use:   "send [payload]",
	Short: "Broadcast a payload to a room",
	Long: `Broadcast a payload to a room of the realm. The payload is sent as a string
unless --json is given. With --stdin every non-empty input line is sent as its
own message, throttled by LIVELY_SEND_RATE / LIVELY_SEND_BURST.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, _ := cmd.Flags().GetString("room")
		asJSON, _ := cmd.Flags().GetBool("json")
		fromStdin, _ := cmd.Flags().GetBool("stdin")

		var raw []string
		switch {
		case fromStdin && len(args) > 0:
			return fmt.Errorf("give either a payload argument or --stdin, not both")
		case fromStdin:
			lines, err := readLines(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			raw = lines
		case len(args) == 1:
			raw = args
		default:
			return fmt.Errorf("a payload argument or --stdin is required")
		}
		if len(raw) == 0 {
			return fmt.Errorf("nothing to send")
		}

		payloads := make([]any, 0, len(raw))
		for i, r := range raw {
			p, err := parsePayload(r, asJSON)
			if err != nil {
				return fmt.Errorf("payload %d: %w", i+1, err)
			}
			payloads = append(payloads, p)
		}

		opts := sendOptions(cmd)
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		sess, err := openSession(ctx, out)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logging.Logger.Warn("Session close failed", "error", err)
			}
		}()

		limiter := lively.NewLimiter(cfg.SendRate, cfg.SendBurst)
		sent, sendErr := lively.Batch(ctx, sess.client, room, payloads, limiter, opts...)
		acked := sess.waitForAcks(ctx, sent, cfg.AckTimeout)

		logging.WithRoom(room).Info("Send finished", "sent", sent, "acked", acked)
		logging.Logger.Debug("Event trail", "events", sess.log.Values())
		if sendErr != nil {
			return fmt.Errorf("sent %d of %d messages: %w", sent, len(payloads), sendErr)
		}
		if acked < sent {
			color.New(color.FgYellow).Fprintf(out, "! %d of %d messages acknowledged before timeout\n", acked, sent)
			return nil
		}
		color.New(color.FgGreen).Fprintf(out, "✓ %d message(s) delivered to room %s\n", sent, room)
		return nil
	},
}

func sendOptions(cmd *cobra.Command) []lively.SendOption {
	flags := cmd.Flags()
	sender := cfg.Sender
	if flags.Changed("sender") {
		sender, _ = flags.GetString("sender")
	}
	opts := []lively.SendOption{lively.WithSender(sender)}
	if flags.Changed("action") {
		action, _ := flags.GetString("action")
		opts = append(opts, lively.WithAction(action))
	}
	if flags.Changed("n") {
		n, _ := flags.GetInt("n")
		opts = append(opts, lively.WithN(n))
	}
	return opts
}

// parsePayload returns s itself, or its decoded JSON value when asJSON is set.
// Numbers stay json.Number so large integers survive unchanged.
func parsePayload(s string, asJSON bool) (any, error) {
	if !asJSON {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON: trailing data")
	}
	return v, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("room", "r", "", "target room (required)")
	sendCmd.Flags().String("sender", "", "sender name (default $LIVELY_SENDER or \"lively_client client\")")
	sendCmd.Flags().String("action", "[broadcast] send", "outer message action")
	sendCmd.Flags().Int("n", 1, "message sequence number")
	sendCmd.Flags().Bool("json", false, "parse the payload as JSON")
	sendCmd.Flags().Bool("stdin", false, "send one message per stdin line")
	sendCmd.MarkFlagRequired("room")
}
