package main

import (
	"fmt"
	"strings"

	"github.com/matsen/papergraph/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set library configuration values",
	Long: `Get or set library configuration values.

Usage:
  pg config                        # Show all config
  pg config default-graph          # Get specific value
  pg config default-graph mentions # Set value

Keys:
  name           Display name for the library
  default-graph  Graph printed by 'pg graph' with no argument (references, reduced, mentions)`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	// No args: show all config
	if len(args) == 0 {
		if humanOutput {
			fmt.Printf("name:          %s\n", cfg.Name)
			fmt.Printf("default-graph: %s\n", cfg.DefaultGraph)
		} else {
			outputJSON(cfg)
		}
		return nil
	}

	key := normalizeKey(args[0])

	// One arg: get specific value
	if len(args) == 1 {
		var value, jsonKey string
		switch key {
		case "name":
			value, jsonKey = cfg.Name, "name"
		case "default-graph":
			value, jsonKey = cfg.DefaultGraph, "default_graph"
		default:
			exitWithError(ExitError, "unknown configuration key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{jsonKey: value})
		}
		return nil
	}

	// Two args: set value
	value := args[1]
	switch key {
	case "name":
		cfg.Name = value
	case "default-graph":
		if err := config.ValidateDefaultGraph(value); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		cfg.DefaultGraph = value
	default:
		exitWithError(ExitError, "unknown configuration key: %s", args[0])
	}

	if err := cfg.Save(repoRoot); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Updated %s to %s\n", key, value)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}

// normalizeKey converts key formats (default-graph, default_graph, DEFAULT_GRAPH) to consistent format
func normalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "-")
	return key
}
