package main

import (
	"fmt"
	"os"

	"github.com/matsen/papergraph/internal/graph"
	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/matsen/papergraph/internal/reference"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the derived graphs",
	Long: `Rebuild every graph and verify it:

  - the reference graph is acyclic
  - every edge target is also a node
  - the reduced graph has the same reachability as the reference graph
  - no reduced edge is implied by a longer path

Dropped references (unresolved IDs, citations of later papers) and mentions of
unknown papers are reported as counts; they are not failures.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status          string               `json:"status"`
	Papers          int                  `json:"papers"`
	Notes           int                  `json:"notes"`
	References      graph.ReferenceStats `json:"references"`
	UnknownMentions int                  `json:"unknown_mentions"`
	Violations      []graph.Violation    `json:"violations"`
}

// checkGraphs verifies the reference graphs and collects statistics.
func checkGraphs(papers []reference.Paper, refs, reduced, mentions *graph.Graph) CheckResult {
	violations := []graph.Violation{}
	if id, found := graph.FindCycle(refs); found {
		violations = append(violations, graph.Violation{Kind: "cycle", Source: id})
	}
	for _, g := range []*graph.Graph{refs, reduced} {
		for _, id := range graph.MissingKeys(g) {
			violations = append(violations, graph.Violation{Kind: "missing_key", Source: id})
		}
	}
	violations = append(violations, graph.VerifyReduction(refs, reduced, refs.Nodes())...)

	known := make(map[string]bool, len(papers))
	for _, p := range papers {
		known[p.ID] = true
	}
	unknown := 0
	for _, id := range mentions.Nodes() {
		for _, t := range mentions.Edges(id) {
			if !known[t] {
				unknown++
			}
		}
	}

	status := "ok"
	if len(violations) > 0 {
		status = "failed"
	}
	return CheckResult{
		Status:          status,
		Papers:          len(papers),
		Notes:           mentions.Len(),
		References:      graph.CountReferences(papers),
		UnknownMentions: unknown,
		Violations:      violations,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	cache, _ := mustBuildGraphs(cmd.Context(), repoRoot, db)
	papers, err := db.ListPapers(cmd.Context())
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	result := checkGraphs(papers,
		cache.Get(graphcache.References),
		cache.Get(graphcache.ReducedReferences),
		cache.Get(graphcache.Mentions),
	)

	if humanOutput {
		fmt.Printf("%d papers, %d notes\n", result.Papers, result.Notes)
		r := result.References
		fmt.Printf("references: %d raw, %d kept, %d unresolved, %d dropped by date\n",
			r.Raw, r.Kept, r.Unresolved, r.Ordering)
		fmt.Printf("mentions of unknown papers: %d\n", result.UnknownMentions)
		for _, v := range result.Violations {
			fmt.Printf("  %s\n", v)
		}
		fmt.Println(result.Status)
	} else {
		outputJSON(result)
	}

	if result.Status != "ok" {
		os.Exit(ExitCheckFailed)
	}
	return nil
}
