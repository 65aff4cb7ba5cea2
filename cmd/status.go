package cmd

import (
	"github.com/marcus/lift/internal/models"
	"github.com/marcus/lift/internal/output"
	"github.com/marcus/lift/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local entities and their sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer s.Close()

		total := 0
		for _, entityType := range models.EntityTypes() {
			entities, err := s.ListEntities(entityType)
			if err != nil {
				output.Error("list %s: %v", entityType, err)
				return err
			}
			if len(entities) == 0 {
				continue
			}
			output.Title("%s (%d)", entityType, len(entities))
			for _, e := range entities {
				output.Info("  %s %s", e.EntityID(), output.StatusLabel(e.Status()))
			}
			total += len(entities)
		}

		if total == 0 {
			output.Info("No entities yet")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
