package graph

// Reduce derives the transitive reduction from a transitive closure.
//
// Starting from a copy of the closure, every entry i→k that is implied by
// i→j and j→k is cleared. The loops run j outer, i middle, k inner; the
// single-pass form depends on that order. This is algorithm A1 of Aho, Garey
// and Ullman, "The Transitive Reduction of a Directed Graph" (1972), and is
// cubic in the node count.
//
// The result has every node of the ordering as a key, with edges listed in
// ordering order.
func Reduce(closure *Matrix) *Graph {
	m := closure.Clone()
	n := m.Size()

	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			if !m.At(i, j) {
				continue
			}
			for k := 0; k < n; k++ {
				if m.At(j, k) {
					m.Clear(i, k)
				}
			}
		}
	}

	g := New()
	for i, id := range m.order {
		g.AddNode(id)
		for j, target := range m.order {
			if i != j && m.At(i, j) {
				g.AddEdge(id, target)
			}
		}
	}
	return g
}

// TransitiveReduction computes the closure of g over order and reduces it.
func TransitiveReduction(g *Graph, order []string) *Graph {
	return Reduce(Closure(g, order))
}
