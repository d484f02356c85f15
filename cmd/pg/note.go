package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matsen/papergraph/internal/config"
	"github.com/matsen/papergraph/internal/note"
	"github.com/matsen/papergraph/internal/storage"
	"github.com/spf13/cobra"
)

var noteFile string

func init() {
	noteSetCmd.Flags().StringVarP(&noteFile, "file", "f", "", "JSON file with the delta ops, or - for stdin (required)")
	noteSetCmd.MarkFlagRequired("file")

	noteCmd.AddCommand(noteSetCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	rootCmd.AddCommand(noteCmd)
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage paper notes",
}

var noteSetCmd = &cobra.Command{
	Use:   "set <paper-id>",
	Short: "Create or replace a paper's note",
	Long: `Create or replace the note attached to a paper.

The file holds rich-text delta operations, either as a bare array or as an
object with an "ops" array. Inline mentions are embeds of the form
{"insert": {"mentionLink": {"id": "<paper id>"}}}.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteSet,
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <paper-id>",
	Short: "Delete a paper's note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteDelete,
}

// NoteResponse is the response for note set.
type NoteResponse struct {
	Status   string   `json:"status"`
	PaperID  string   `json:"paper_id"`
	Mentions []string `json:"mentions"`
}

// parseOps accepts either [op, ...] or {"ops": [op, ...]}.
func parseOps(data []byte) ([]note.Op, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ops []note.Op
		if err := json.Unmarshal(data, &ops); err != nil {
			return nil, fmt.Errorf("parsing ops: %w", err)
		}
		return ops, nil
	}
	var doc struct {
		Ops []note.Op `json:"ops"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing ops: %w", err)
	}
	return doc.Ops, nil
}

func runNoteSet(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	var data []byte
	var err error
	if noteFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(noteFile)
	}
	if err != nil {
		exitWithError(ExitError, "reading %s: %v", noteFile, err)
	}

	ops, err := parseOps(data)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	n := note.Note{PaperID: args[0], Ops: ops}
	if err := n.Validate(); err != nil {
		exitWithError(ExitDataError, "invalid note: %v", err)
	}

	path := config.NotesPath(repoRoot)
	notes, err := storage.ReadAllNotes(path)
	if err != nil {
		exitWithError(ExitDataError, "reading notes: %v", err)
	}
	notes, action := storage.UpsertNote(notes, n)
	if err := storage.WriteAllNotes(path, notes); err != nil {
		exitWithError(ExitError, "writing notes: %v", err)
	}

	mentions := n.Mentions()
	if humanOutput {
		fmt.Printf("%s: note for %s (%d mentions)\n", action, n.PaperID, len(mentions))
	} else {
		outputJSON(NoteResponse{Status: action, PaperID: n.PaperID, Mentions: mentions})
	}
	return nil
}

func runNoteDelete(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	path := config.NotesPath(repoRoot)
	notes, err := storage.ReadAllNotes(path)
	if err != nil {
		exitWithError(ExitDataError, "reading notes: %v", err)
	}
	notes, found := storage.RemoveNote(notes, args[0])
	if !found {
		exitWithError(ExitDataError, "no note for paper %s", args[0])
	}
	if err := storage.WriteAllNotes(path, notes); err != nil {
		exitWithError(ExitError, "writing notes: %v", err)
	}

	if humanOutput {
		fmt.Printf("deleted note for %s\n", args[0])
	} else {
		outputJSON(StatusResponse{Status: "deleted", ID: args[0]})
	}
	return nil
}
