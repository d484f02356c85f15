package graph

// Matrix is a square boolean reachability matrix indexed by a fixed node
// ordering.
type Matrix struct {
	order []string
	index map[string]int
	cells [][]bool
}

// NewMatrix creates an all-false matrix over order. Duplicate IDs keep their
// first position.
func NewMatrix(order []string) *Matrix {
	m := &Matrix{
		order: append([]string(nil), order...),
		index: make(map[string]int, len(order)),
		cells: make([][]bool, len(order)),
	}
	for i, id := range order {
		if _, ok := m.index[id]; !ok {
			m.index[id] = i
		}
		m.cells[i] = make([]bool, len(order))
	}
	return m
}

// Size returns the number of rows.
func (m *Matrix) Size() int {
	return len(m.order)
}

// Order returns the node ordering.
func (m *Matrix) Order() []string {
	return append([]string(nil), m.order...)
}

// Index returns id's row, or false if id is not in the ordering.
func (m *Matrix) Index(id string) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// At reports cell (i, j).
func (m *Matrix) At(i, j int) bool {
	return m.cells[i][j]
}

// Set marks cell (i, j).
func (m *Matrix) Set(i, j int) {
	m.cells[i][j] = true
}

// Clear unmarks cell (i, j).
func (m *Matrix) Clear(i, j int) {
	m.cells[i][j] = false
}

// Reachable reports whether to is reachable from from.
// Unknown IDs are unreachable.
func (m *Matrix) Reachable(from, to string) bool {
	i, ok := m.index[from]
	if !ok {
		return false
	}
	j, ok := m.index[to]
	if !ok {
		return false
	}
	return m.cells[i][j]
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		order: m.order,
		index: m.index,
		cells: make([][]bool, len(m.cells)),
	}
	for i, row := range m.cells {
		c.cells[i] = append([]bool(nil), row...)
	}
	return c
}

// Closure computes the transitive closure of g over order.
//
// For every node it walks g depth first with an explicit stack and marks each
// node reached, never the start node itself. A per-walk visited set keeps each
// walk O(V+E). Nodes reached that are not in order are walked through but not
// recorded.
func Closure(g *Graph, order []string) *Matrix {
	m := NewMatrix(order)
	visited := make(map[string]bool, len(order))
	var stack []string

	for i, start := range order {
		clear(visited)
		visited[start] = true
		stack = append(stack[:0], g.Edges(start)...)

		for len(stack) > 0 {
			n := len(stack) - 1
			id := stack[n]
			stack = stack[:n]
			if visited[id] {
				continue
			}
			visited[id] = true
			if j, ok := m.index[id]; ok && j != i {
				m.Set(i, j)
			}
			stack = append(stack, g.Edges(id)...)
		}
	}
	return m
}
