package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/papergraph/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new papergraph library",
	Long: `Initialize a new papergraph library in the current directory.

Creates:
  .papergraph/
  ├── papers.jsonl    # Empty file
  ├── notes.jsonl     # Empty file
  ├── config.json     # Default config
  └── cache/          # Empty directory (gitignored)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	if config.IsRepository(root) {
		exitWithError(ExitError, "directory already contains a papergraph library")
	}

	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating .papergraph directory: %v", err)
	}

	for _, path := range []string{config.PapersPath(root), config.NotesPath(root)} {
		f, err := os.Create(path)
		if err != nil {
			exitWithError(ExitError, "creating %s: %v", path, err)
		}
		f.Close()
	}

	gitignore := filepath.Join(config.PapergraphPath(root), ".gitignore")
	if err := os.WriteFile(gitignore, []byte(config.CacheDir+"/\n"), 0644); err != nil {
		exitWithError(ExitError, "creating .gitignore: %v", err)
	}

	cfg := &config.Config{DefaultGraph: "reduced"}
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "creating config.json: %v", err)
	}

	if humanOutput {
		fmt.Printf("Initialized papergraph library in %s\n", root)
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: root})
	}
	return nil
}
