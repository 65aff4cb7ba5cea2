package cmd

import (
	"time"

	"github.com/marcus/lift/internal/output"
	"github.com/marcus/lift/internal/store"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the outbound sync queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		failedOnly, _ := cmd.Flags().GetBool("failed")

		s, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer s.Close()

		if failedOnly {
			items, err := s.QuarantinedItems()
			if err != nil {
				output.Error("list quarantined: %v", err)
				return err
			}
			if len(items) == 0 {
				output.Info("No quarantined items")
				return nil
			}
			output.Title("Quarantined items")
			for i := range items {
				output.Info("%s", output.FormatQueueItem(&items[i]))
			}
			output.Subtle("Run 'lift queue retry <id>' to re-attempt")
			return nil
		}

		// Large horizon so backoff delays do not hide items from listing.
		items, err := s.QueueBatch(time.Now().Add(24*time.Hour), 1000)
		if err != nil {
			output.Error("list queue: %v", err)
			return err
		}

		pending, quarantined, err := s.QueueCounts()
		if err != nil {
			output.Error("count queue: %v", err)
			return err
		}

		if pending == 0 && quarantined == 0 {
			output.Info("Queue is empty")
			return nil
		}

		output.Title("Pending items (%d)", pending)
		for i := range items {
			output.Info("%s", output.FormatQueueItem(&items[i]))
		}
		if quarantined > 0 {
			output.Warning("%d quarantined (run: lift queue --failed)", quarantined)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Release a quarantined item back into the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer s.Close()

		if err := s.ReleaseQuarantined(args[0]); err != nil {
			output.Error("release: %v", err)
			return err
		}
		output.Success("Released %s; it will retry on the next sync", args[0])
		return nil
	},
}

var queueHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer s.Close()

		entries, err := s.HistoryTail(limit)
		if err != nil {
			output.Error("load history: %v", err)
			return err
		}
		if len(entries) == 0 {
			output.Info("No sync activity yet")
			return nil
		}

		for _, e := range entries {
			output.Info("%s %-4s %-6s %s/%s",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Direction, e.Action, e.EntityType, e.EntityID)
		}
		return nil
	},
}

func init() {
	queueCmd.Flags().Bool("failed", false, "show only quarantined items")
	queueHistoryCmd.Flags().Int("limit", 20, "number of entries to show")
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueHistoryCmd)
	rootCmd.AddCommand(queueCmd)
}
