package watch

import (
	"context"
	"fmt"

	"github.com/matsen/papergraph/internal/config"
	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/matsen/papergraph/internal/logger"
	"github.com/matsen/papergraph/internal/note"
	"github.com/matsen/papergraph/internal/reference"
	"github.com/matsen/papergraph/internal/storage"
)

// Syncer keeps the SQLite cache and the graph cache in step with the JSONL
// sources of a repository. It remembers the last snapshot it loaded so that
// each Sync can report exactly what changed.
type Syncer struct {
	root  string
	db    *storage.DB
	cache *graphcache.Cache
	log   *logger.Logger

	papers []reference.Paper
	notes  []note.Note
}

// NewSyncer creates a syncer for the repository at root.
func NewSyncer(root string, db *storage.DB, cache *graphcache.Cache, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{root: root, db: db, cache: cache, log: log}
}

// Prime loads both sources, fills the database, and rebuilds every graph.
func (s *Syncer) Prime(ctx context.Context) error {
	papers, notes, err := s.read()
	if err != nil {
		return err
	}
	if err := s.db.ReplacePapers(papers); err != nil {
		return fmt.Errorf("loading papers: %w", err)
	}
	if err := s.db.ReplaceNotes(notes); err != nil {
		return fmt.Errorf("loading notes: %w", err)
	}
	s.papers, s.notes = papers, notes

	if err := s.cache.RebuildAll(ctx); err != nil {
		return err
	}
	s.log.Info("primed graphs", "papers", len(papers), "notes", len(notes))
	return nil
}

// Sync reloads the sources, writes any changes to the database, and forwards
// the resulting lifecycle events to the graph cache. If a source can't be
// read nothing is changed. The remembered snapshot only advances once every
// event has been handled, so a failed sync is retried in full next time.
// It returns the events that were dispatched.
func (s *Syncer) Sync(ctx context.Context) ([]graphcache.Event, error) {
	papers, notes, err := s.read()
	if err != nil {
		return nil, err
	}

	paperEvents := DiffPapers(s.papers, papers)
	noteEvents := DiffNotes(s.notes, notes)

	if len(paperEvents) > 0 {
		if err := s.db.ReplacePapers(papers); err != nil {
			return nil, fmt.Errorf("updating papers: %w", err)
		}
	}
	if len(noteEvents) > 0 {
		if err := s.db.ReplaceNotes(notes); err != nil {
			return nil, fmt.Errorf("updating notes: %w", err)
		}
	}

	events := Coalesce(append(paperEvents, noteEvents...))
	for _, ev := range events {
		if err := s.cache.Handle(ctx, ev); err != nil {
			return events, fmt.Errorf("handling %s %s %s: %w", ev.Entity, ev.Op, ev.ID, err)
		}
	}
	s.papers, s.notes = papers, notes

	s.log.Debug("synced sources",
		"paper_changes", len(paperEvents),
		"note_changes", len(noteEvents),
		"dispatched", len(events),
	)
	return events, nil
}

func (s *Syncer) read() ([]reference.Paper, []note.Note, error) {
	papers, err := storage.ReadAll(config.PapersPath(s.root))
	if err != nil {
		return nil, nil, fmt.Errorf("reading papers: %w", err)
	}
	notes, err := storage.ReadAllNotes(config.NotesPath(s.root))
	if err != nil {
		return nil, nil, fmt.Errorf("reading notes: %w", err)
	}
	return papers, notes, nil
}
