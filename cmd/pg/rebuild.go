package main

import (
	"fmt"

	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query layer and graphs from source data",
	Long: `Rebuild the SQLite query database from the JSONL source files, then
rebuild every graph from it.

Use this after pulling changes from git or if the database becomes corrupted.`,
	RunE: runRebuild,
}

// RebuildResult is the response for the rebuild command.
type RebuildResult struct {
	Status string             `json:"status"`
	Papers int                `json:"papers"`
	Notes  int                `json:"notes"`
	Graphs []graphcache.Stats `json:"graphs"`
}

func runRebuild(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	cache, counts := mustBuildGraphs(cmd.Context(), repoRoot, db)
	stats := cache.Stats()

	if humanOutput {
		fmt.Printf("Rebuilt query database with %d papers and %d notes\n", counts.Papers, counts.Notes)
		for _, s := range stats {
			fmt.Printf("  %-11s %5d nodes %6d edges\n", s.Graph, s.Nodes, s.Edges)
		}
	} else {
		outputJSON(RebuildResult{
			Status: "rebuilt",
			Papers: counts.Papers,
			Notes:  counts.Notes,
			Graphs: stats,
		})
	}
	return nil
}
