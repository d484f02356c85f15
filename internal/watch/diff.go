package watch

import (
	"reflect"

	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/matsen/papergraph/internal/note"
	"github.com/matsen/papergraph/internal/reference"
)

// DiffPapers returns the lifecycle events that turn old into new. Updates that
// only touch metadata are reported with Structural unset.
func DiffPapers(old, new []reference.Paper) []graphcache.Event {
	before := make(map[string]reference.Paper, len(old))
	for _, p := range old {
		before[p.ID] = p
	}

	var events []graphcache.Event
	seen := make(map[string]bool, len(new))
	for _, p := range new {
		seen[p.ID] = true
		prev, ok := before[p.ID]
		switch {
		case !ok:
			events = append(events, graphcache.Event{Entity: graphcache.EntityPaper, Op: graphcache.OpCreate, ID: p.ID})
		case !reflect.DeepEqual(prev, p):
			events = append(events, graphcache.Event{
				Entity:     graphcache.EntityPaper,
				Op:         graphcache.OpUpdate,
				ID:         p.ID,
				Structural: structuralChange(prev, p),
			})
		}
	}
	for _, p := range old {
		if !seen[p.ID] {
			events = append(events, graphcache.Event{Entity: graphcache.EntityPaper, Op: graphcache.OpDelete, ID: p.ID})
		}
	}
	return events
}

// structuralChange reports whether a paper update can change the reference
// graph: its references, its publication date, or its S2 ID.
func structuralChange(a, b reference.Paper) bool {
	return a.S2ID != b.S2ID ||
		a.Published != b.Published ||
		!reflect.DeepEqual(a.References, b.References)
}

// DiffNotes returns the lifecycle events that turn old into new.
func DiffNotes(old, new []note.Note) []graphcache.Event {
	before := make(map[string]note.Note, len(old))
	for _, n := range old {
		before[n.PaperID] = n
	}

	var events []graphcache.Event
	seen := make(map[string]bool, len(new))
	for _, n := range new {
		seen[n.PaperID] = true
		prev, ok := before[n.PaperID]
		switch {
		case !ok:
			events = append(events, graphcache.Event{Entity: graphcache.EntityNote, Op: graphcache.OpCreate, ID: n.PaperID})
		case !reflect.DeepEqual(prev.Ops, n.Ops):
			events = append(events, graphcache.Event{Entity: graphcache.EntityNote, Op: graphcache.OpUpdate, ID: n.PaperID})
		}
	}
	for _, n := range old {
		if !seen[n.PaperID] {
			events = append(events, graphcache.Event{Entity: graphcache.EntityNote, Op: graphcache.OpDelete, ID: n.PaperID})
		}
	}
	return events
}

// Coalesce drops paper events that the cache would answer with a redundant
// full reference rebuild. The first paper event that triggers a rebuild is
// kept; note events all pass through since each touches only its own key.
func Coalesce(events []graphcache.Event) []graphcache.Event {
	out := make([]graphcache.Event, 0, len(events))
	rebuilding := false
	for _, ev := range events {
		if ev.Entity != graphcache.EntityPaper {
			out = append(out, ev)
			continue
		}
		if ev.Op == graphcache.OpUpdate && !ev.Structural {
			continue
		}
		if rebuilding {
			continue
		}
		rebuilding = true
		out = append(out, ev)
	}
	return out
}
