package graph

import (
	"testing"

	"github.com/matsen/papergraph/internal/note"
	"github.com/stretchr/testify/assert"
)

func TestBuildMentions(t *testing.T) {
	notes := []note.Note{
		{PaperID: "A", Ops: []note.Op{
			note.MentionOp("X"), note.TextOp(" vs "), note.MentionOp("X"), note.MentionOp("Y"),
		}},
		{PaperID: "B", Ops: []note.Op{note.TextOp("nothing to see\n")}},
		{PaperID: "C"},
	}
	g := BuildMentions(notes)

	assert.Equal(t, []string{"A", "B", "C"}, g.Nodes())
	assert.Equal(t, []string{"X", "X", "Y"}, g.Edges("A"))
	assert.Empty(t, g.Edges("B"))
	assert.Empty(t, g.Edges("C"))
	assert.False(t, g.Has("X"), "mention targets are not keys")
}

func TestBuildMentions_Empty(t *testing.T) {
	assert.Equal(t, 0, BuildMentions(nil).Len())
}
