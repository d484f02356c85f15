package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/papergraph/internal/note"
)

// ReadAllNotes reads all notes from a JSONL file.
func ReadAllNotes(path string) ([]note.Note, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty file returns empty slice
		}
		return nil, fmt.Errorf("opening notes file: %w", err)
	}
	defer f.Close()

	var notes []note.Note
	scanner := bufio.NewScanner(f)

	// Notes can be long; reuse the shared per-line limit
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var n note.Note
		if err := json.Unmarshal(line, &n); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("invalid note at line %d: %w", lineNum, err)
		}
		notes = append(notes, n)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading notes file: %w", err)
	}

	return notes, nil
}

// WriteAllNotes writes all notes to a JSONL file, replacing existing content.
func WriteAllNotes(path string, notes []note.Note) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating notes file: %w", err)
	}
	defer f.Close()

	for i, n := range notes {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encoding note %d: %w", i, err)
		}
		data = append(data, '\n')
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing note %d: %w", i, err)
		}
	}

	return nil
}

// FindNote searches for the note owned by paperID.
func FindNote(notes []note.Note, paperID string) (int, bool) {
	for i, n := range notes {
		if n.PaperID == paperID {
			return i, true
		}
	}
	return -1, false
}

// UpsertNote replaces the note with the same owner or appends it.
// Returns the action taken: "new" or "update".
func UpsertNote(notes []note.Note, n note.Note) ([]note.Note, string) {
	if idx, found := FindNote(notes, n.PaperID); found {
		notes[idx] = n
		return notes, "update"
	}
	return append(notes, n), "new"
}

// RemoveNote deletes the note owned by paperID. Reports whether one existed.
func RemoveNote(notes []note.Note, paperID string) ([]note.Note, bool) {
	idx, found := FindNote(notes, paperID)
	if !found {
		return notes, false
	}
	return append(notes[:idx], notes[idx+1:]...), true
}
