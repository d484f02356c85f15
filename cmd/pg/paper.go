package main

import (
	"fmt"
	"strings"

	"github.com/matsen/papergraph/internal/config"
	"github.com/matsen/papergraph/internal/reference"
	"github.com/matsen/papergraph/internal/storage"
	"github.com/spf13/cobra"
)

var (
	paperID        string
	paperPublished string
	paperS2ID      string
	paperDOI       string
	paperTitle     string
	paperLink      string
	paperAuthors   []string
	paperTags      []string
	paperRefs      []string
)

func init() {
	paperAddCmd.Flags().StringVar(&paperID, "id", "", "Local paper ID (required)")
	paperAddCmd.Flags().StringVar(&paperPublished, "published", "", "Publication date: YYYY, YYYY-MM, or YYYY-MM-DD (required)")
	paperAddCmd.Flags().StringVar(&paperS2ID, "s2-id", "", "Semantic Scholar paper ID")
	paperAddCmd.Flags().StringVar(&paperDOI, "doi", "", "DOI")
	paperAddCmd.Flags().StringVar(&paperTitle, "title", "", "Title")
	paperAddCmd.Flags().StringVar(&paperLink, "link", "", "URL")
	paperAddCmd.Flags().StringArrayVar(&paperAuthors, "author", nil, "Author display name (repeatable)")
	paperAddCmd.Flags().StringSliceVar(&paperTags, "tag", nil, "Tag (repeatable or comma-separated)")
	paperAddCmd.Flags().StringSliceVar(&paperRefs, "ref", nil, "Referenced Semantic Scholar ID (repeatable or comma-separated)")
	paperAddCmd.MarkFlagRequired("id")
	paperAddCmd.MarkFlagRequired("published")

	paperCmd.AddCommand(paperAddCmd)
	paperCmd.AddCommand(paperListCmd)
	rootCmd.AddCommand(paperCmd)
}

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Manage papers",
}

var paperAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a paper",
	Long: `Add a paper to papers.jsonl, replacing any paper with the same ID.

Example:
  pg paper add --id Vaswani2017 --published 2017-06-12 --s2-id 204e3073 \
    --title "Attention Is All You Need" --ref 43428880,0b544dfe`,
	Args: cobra.NoArgs,
	RunE: runPaperAdd,
}

var paperListCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers in library order",
	Args:  cobra.NoArgs,
	RunE:  runPaperList,
}

// buildPaper assembles and validates a paper from command-line values.
func buildPaper(id, published, s2id, doi, title, link string, authors, tags, refs []string) (reference.Paper, error) {
	date, err := reference.ParsePublicationDate(published)
	if err != nil {
		return reference.Paper{}, err
	}
	p := reference.Paper{
		ID:        strings.TrimSpace(id),
		S2ID:      strings.TrimSpace(s2id),
		DOI:       doi,
		Title:     title,
		Link:      link,
		Tags:      tags,
		Published: date,
	}
	for _, name := range authors {
		p.Authors = append(p.Authors, reference.ParseAuthor(name))
	}
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			p.References = append(p.References, r)
		}
	}
	if err := p.Validate(); err != nil {
		return reference.Paper{}, err
	}
	return p, nil
}

// savePaper appends p to the papers file, or rewrites the file when a paper
// with the same ID already exists. It returns the action taken ("new" or
// "update") and the ID of another paper already using p's S2 ID, if any.
func savePaper(path string, p reference.Paper) (string, string, error) {
	papers, err := storage.ReadAll(path)
	if err != nil {
		return "", "", fmt.Errorf("reading papers: %w", err)
	}

	var dupOf string
	if idx, found := storage.FindByS2ID(papers, p.S2ID); found && papers[idx].ID != p.ID {
		dupOf = papers[idx].ID
	}

	if _, found := storage.FindByID(papers, p.ID); !found {
		if err := storage.Append(path, p); err != nil {
			return "", "", fmt.Errorf("writing papers: %w", err)
		}
		return "new", dupOf, nil
	}

	papers, action := storage.Upsert(papers, p)
	if err := storage.WriteAll(path, papers); err != nil {
		return "", "", fmt.Errorf("writing papers: %w", err)
	}
	return action, dupOf, nil
}

func runPaperAdd(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	p, err := buildPaper(paperID, paperPublished, paperS2ID, paperDOI, paperTitle, paperLink, paperAuthors, paperTags, paperRefs)
	if err != nil {
		exitWithError(ExitDataError, "invalid paper: %v", err)
	}

	action, dupOf, err := savePaper(config.PapersPath(repoRoot), p)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if dupOf != "" {
		log.Warn("duplicate s2_id; the later paper wins when resolving references",
			"s2_id", p.S2ID, "existing", dupOf, "id", p.ID)
	}

	if humanOutput {
		fmt.Printf("%s: %s (%s)\n", action, p.ID, p.Published)
	} else {
		outputJSON(StatusResponse{Status: action, ID: p.ID})
	}
	return nil
}

// PaperSummary is one row of `pg paper list`.
type PaperSummary struct {
	ID         string `json:"id"`
	S2ID       string `json:"s2_id,omitempty"`
	Title      string `json:"title"`
	Published  string `json:"published"`
	References int    `json:"references"`
}

func runPaperList(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()
	mustSyncDatabase(repoRoot, db)

	papers, err := db.ListPapers(cmd.Context())
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	rows := make([]PaperSummary, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, PaperSummary{
			ID:         p.ID,
			S2ID:       p.S2ID,
			Title:      p.Title,
			Published:  p.Published.String(),
			References: len(p.References),
		})
	}

	if humanOutput {
		for _, r := range rows {
			fmt.Printf("%-24s %-10s %s\n", r.ID, r.Published, truncateString(r.Title, ListTitleMaxLen))
		}
		return nil
	}
	outputJSON(rows)
	return nil
}
