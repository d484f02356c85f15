package graph

import "github.com/matsen/papergraph/internal/note"

// BuildMentions derives the mentions graph from a note snapshot.
//
// Each note's owning paper is a key whose edges are the note's mention
// targets in document order, repeats included. Targets are not added as keys.
// If two notes share an owner, the later one wins.
func BuildMentions(notes []note.Note) *Graph {
	g := New()
	for i := range notes {
		g.SetEdges(notes[i].PaperID, notes[i].Mentions())
	}
	return g
}
