package cmd

import (
	"github.com/marcus/lift/internal/output"
	"github.com/marcus/lift/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and check for updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		output.Info("lift %s", versionString())

		check, _ := cmd.Flags().GetBool("check")
		if !check {
			return nil
		}
		if version.IsDevelopmentVersion(versionString()) {
			output.Subtle("development build, skipping update check")
			return nil
		}

		result := version.Check(versionString())
		if result.Error != nil {
			output.Warning("update check failed: %v", result.Error)
			return nil
		}
		if result.HasUpdate {
			output.Info("Update available: %s", result.LatestVersion)
			if cmdline := version.UpdateCommand(result.LatestVersion); cmdline != "" {
				output.Subtle("  %s", cmdline)
			}
		} else {
			output.Success("Up to date")
		}
		return nil
	},
}

func versionString() string {
	if v := rootCmd.Version; v != "" {
		return v
	}
	return "dev"
}

func init() {
	versionCmd.Flags().Bool("check", false, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
