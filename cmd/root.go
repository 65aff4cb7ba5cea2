package cmd

import (
	"fmt"
	"os"

	"github.com/marcus/lift/internal/workdir"
	"github.com/spf13/cobra"
)

var baseDir string

// SetVersion sets the version string
func SetVersion(v string) {
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "lift",
	Short: "Local-first workout tracking with multi-device sync",
	Long: `lift - A local-first workout data layer.

All edits land in a local SQLite store first and sync to other devices in the
background through the lift-sync server. Conflicting edits from different
devices are merged field by field, newest write wins, and no logged set is
ever lost to a concurrent edit.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)
}

func initBaseDir() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
	baseDir = workdir.ResolveBaseDir(cwd)
}

// getBaseDir returns the base directory for the data dir
func getBaseDir() string {
	return baseDir
}
