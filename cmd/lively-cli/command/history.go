package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"livelyclient/internal/eventlog"
	"livelyclient/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sent messages",
	Long:  `List messages archived in the DATABASE_URL store, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set; no history is kept")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		room, _ := cmd.Flags().GetString("room")

		db, err := history.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		rows, err := listHistory(cmd.Context(), history.NewRepository(db), room, limit)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), rows)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the event log mirrored to Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is not set; no event log is mirrored")
		}
		limit, _ := cmd.Flags().GetInt("limit")

		mirror, err := eventlog.NewRedisRecorder(cfg.RedisURL, cfg.RedisLogKey, nil)
		if err != nil {
			return fmt.Errorf("open redis event log: %w", err)
		}
		defer mirror.Close()

		events, err := mirror.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load event log: %w", err)
		}
		if limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}
		printEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

func listHistory(ctx context.Context, repo history.Repository, room string, limit int) ([]history.SentMessage, error) {
	if room != "" {
		rows, err := repo.ByRoom(ctx, room, limit)
		if err != nil {
			return nil, fmt.Errorf("list history for room %s: %w", room, err)
		}
		return rows, nil
	}
	rows, err := repo.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return rows, nil
}

func printHistory(out io.Writer, rows []history.SentMessage) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No messages archived.")
		return
	}
	stamp := color.New(color.FgHiBlack)
	room := color.New(color.FgCyan)
	for _, row := range rows {
		payload := row.Data
		if p, err := row.Payload(); err == nil {
			if b, err := json.Marshal(p); err == nil {
				payload = string(b)
			}
		}
		stamp.Fprintf(out, "%s ", row.SentAt.Local().Format(time.DateTime))
		room.Fprintf(out, "[%s] ", row.Room)
		fmt.Fprintf(out, "%s: %s\n", row.Sender, payload)
	}
}

func printEvents(out io.Writer, events []eventlog.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "Event log is empty.")
		return
	}
	stamp := color.New(color.FgHiBlack)
	for _, ev := range events {
		stamp.Fprintf(out, "%s ", ev.At.Local().Format(time.DateTime))
		fmt.Fprintf(out, "%-15s %v\n", ev.Kind, ev.Value())
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)

	historyCmd.Flags().IntP("limit", "l", 20, "maximum rows to show")
	historyCmd.Flags().StringP("room", "r", "", "only show messages sent to this room")
	logCmd.Flags().IntP("limit", "l", 50, "show only the newest events")
}
