package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matsen/papergraph/internal/note"
)

func testNotes() []note.Note {
	return []note.Note{
		{PaperID: "Shannon1951", Ops: []note.Op{note.TextOp("builds on "), note.MentionOp("Turing1950"), note.TextOp("\n")}},
		{PaperID: "Turing1950", Ops: []note.Op{note.TextOp("classic\n")}},
	}
}

func TestNotesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.jsonl")
	if err := WriteAllNotes(path, testNotes()); err != nil {
		t.Fatalf("WriteAllNotes failed: %v", err)
	}

	notes, err := ReadAllNotes(path)
	if err != nil {
		t.Fatalf("ReadAllNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	if got := notes[0].Mentions(); !reflect.DeepEqual(got, []string{"Turing1950"}) {
		t.Errorf("Mentions() after round trip = %v", got)
	}
}

func TestReadAllNotes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid JSON", `{"paper_id":`},
		{"missing owner", `{"ops":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "notes.jsonl")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadAllNotes(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReadAllNotes_FileNotExists(t *testing.T) {
	notes, err := ReadAllNotes("/nonexistent/notes.jsonl")
	if err != nil || notes != nil {
		t.Errorf("ReadAllNotes(missing) = %v, %v; want nil, nil", notes, err)
	}
}

func TestUpsertAndRemoveNote(t *testing.T) {
	notes := testNotes()

	notes, action := UpsertNote(notes, note.Note{PaperID: "Turing1950"})
	if action != "update" || len(notes[1].Ops) != 0 {
		t.Errorf("UpsertNote update: action=%s note=%+v", action, notes[1])
	}

	notes, action = UpsertNote(notes, note.Note{PaperID: "Other"})
	if action != "new" || len(notes) != 3 {
		t.Errorf("UpsertNote new: action=%s len=%d", action, len(notes))
	}

	notes, removed := RemoveNote(notes, "Shannon1951")
	if !removed || len(notes) != 2 || notes[0].PaperID != "Turing1950" {
		t.Errorf("RemoveNote: removed=%v notes=%+v", removed, notes)
	}

	_, removed = RemoveNote(notes, "missing")
	if removed {
		t.Error("RemoveNote(missing) reported removal")
	}
}
