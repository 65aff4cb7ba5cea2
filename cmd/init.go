package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcus/lift/internal/output"
	"github.com/marcus/lift/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local lift store",
	Long:  `Creates the local .lift directory and SQLite database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		// Check if already initialized
		if _, err := os.Stat(filepath.Join(baseDir, ".lift")); err == nil {
			output.Warning(".lift/ already exists")
			return nil
		}

		s, err := store.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize store: %v", err)
			return err
		}
		defer s.Close()

		fmt.Println("INITIALIZED .lift/")

		if _, err := os.Stat(filepath.Join(baseDir, ".git")); err == nil {
			addToGitignore(filepath.Join(baseDir, ".gitignore"))
		}

		return nil
	},
}

func addToGitignore(path string) {
	content, _ := os.ReadFile(path)
	contentStr := string(content)

	if strings.Contains(contentStr, ".lift/") {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(contentStr) > 0 && !strings.HasSuffix(contentStr, "\n") {
		f.WriteString("\n")
	}

	f.WriteString(".lift/\n")
	fmt.Println("Added .lift/ to .gitignore")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
