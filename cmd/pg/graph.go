package main

import (
	"fmt"
	"strings"

	"github.com/matsen/papergraph/internal/graph"
	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(graphCmd)
}

var graphCmd = &cobra.Command{
	Use:   "graph [references|reduced|mentions]",
	Short: "Print a derived graph",
	Long: `Rebuild and print one of the derived graphs as a JSON object mapping each
paper ID to its list of targets, in library order.

With no argument the library's default_graph is printed (reduced if unset).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	name := cfg.DefaultGraph
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" {
		name = graphcache.ReducedReferences.String()
	}
	kind, err := graphcache.ParseKind(name)
	if err != nil {
		exitWithError(ExitError, "%v (valid: references, reduced, mentions)", err)
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	cache, _ := mustBuildGraphs(cmd.Context(), repoRoot, db)
	g := cache.Get(kind)

	if humanOutput {
		printGraphHuman(g)
	} else {
		outputJSON(g)
	}
	return nil
}

// printGraphHuman prints one line per node: "id -> a, b".
func printGraphHuman(g *graph.Graph) {
	for _, id := range g.Nodes() {
		targets := g.Edges(id)
		if len(targets) == 0 {
			fmt.Println(id)
			continue
		}
		fmt.Printf("%s -> %s\n", id, strings.Join(targets, ", "))
	}
}
