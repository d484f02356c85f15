package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce_ThreePapers(t *testing.T) {
	g := BuildReferences(threePapers())
	reduced := TransitiveReduction(g, g.Nodes())

	assert.Equal(t, []string{"P1", "P2", "P3"}, reduced.Nodes())
	assert.Empty(t, reduced.Edges("P1"))
	assert.Equal(t, []string{"P1"}, reduced.Edges("P2"))
	assert.Equal(t, []string{"P2"}, reduced.Edges("P3"))
}

func TestReduce_Diamond(t *testing.T) {
	g := FromMap(map[string][]string{
		"A": {},
		"B": {"A"},
		"C": {"A"},
		"D": {"B", "C", "A"},
	}, "A", "B", "C", "D")
	reduced := TransitiveReduction(g, g.Nodes())

	assert.Equal(t, []string{"B", "C"}, reduced.Edges("D"))
	assert.Equal(t, []string{"A"}, reduced.Edges("B"))
	assert.Equal(t, []string{"A"}, reduced.Edges("C"))
}

func TestReduce_EdgesFollowOrdering(t *testing.T) {
	g := FromMap(map[string][]string{
		"Z": {},
		"Y": {},
		"X": {"Y", "Z"},
	}, "Z", "Y", "X")
	reduced := TransitiveReduction(g, g.Nodes())
	assert.Equal(t, []string{"Z", "Y"}, reduced.Edges("X"))
}

func TestReduce_EmptyGraph(t *testing.T) {
	reduced := TransitiveReduction(New(), nil)
	assert.Equal(t, 0, reduced.Len())
}

func TestReduce_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 200; trial++ {
		g := BuildReferences(randomPapers(rng, 1+rng.Intn(25)))
		order := g.Nodes()
		reduced := TransitiveReduction(g, order)

		require.Empty(t, VerifyReduction(g, reduced, order), "trial %d", trial)
		require.LessOrEqual(t, reduced.EdgeCount(), g.EdgeCount(), "trial %d", trial)
		require.Empty(t, MissingKeys(reduced), "trial %d", trial)
		require.Equal(t, order, reduced.Nodes(), "trial %d", trial)
	}
}

func TestReduce_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	papers := randomPapers(rng, 30)

	g1 := BuildReferences(papers)
	g2 := BuildReferences(papers)
	require.True(t, g1.Equal(g2))

	r1 := TransitiveReduction(g1, g1.Nodes())
	r2 := TransitiveReduction(g2, g2.Nodes())
	assert.True(t, r1.Equal(r2))

	// Reducing a reduction changes nothing.
	r3 := TransitiveReduction(r1, r1.Nodes())
	assert.True(t, r1.Equal(r3))
}
