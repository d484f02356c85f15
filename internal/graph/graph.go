// Package graph implements the citation and mention graphs.
//
// A Graph is an adjacency map from paper ID to an ordered list of outgoing
// edge targets. Keys keep their insertion order so that every derived graph
// is reproducible. Looking up a node that is not present yields an empty
// edge list; use Has to test for existence.
package graph

import (
	"bytes"
	"encoding/json"
)

// Graph is an adjacency map with stable key order.
type Graph struct {
	order []string
	edges map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// FromMap builds a graph from a plain adjacency map. Keys are added in the
// order given by keys; keys not listed are appended afterwards in map order,
// which is unspecified.
func FromMap(m map[string][]string, keys ...string) *Graph {
	g := New()
	for _, k := range keys {
		if targets, ok := m[k]; ok {
			g.SetEdges(k, targets)
		}
	}
	for k, targets := range m {
		if !g.Has(k) {
			g.SetEdges(k, targets)
		}
	}
	return g
}

// AddNode ensures id is a key. Existing edges are left alone.
func (g *Graph) AddNode(id string) {
	if _, ok := g.edges[id]; ok {
		return
	}
	g.order = append(g.order, id)
	g.edges[id] = []string{}
}

// AddEdge appends to to from's edge list, adding from if needed.
// The target is not added as a key.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.edges[from] = append(g.edges[from], to)
}

// SetEdges replaces id's edge list with a copy of targets.
func (g *Graph) SetEdges(id string, targets []string) {
	g.AddNode(id)
	g.edges[id] = append(make([]string, 0, len(targets)), targets...)
}

// RemoveNode deletes id as a key. Edges pointing at id are kept.
func (g *Graph) RemoveNode(id string) {
	if _, ok := g.edges[id]; !ok {
		return
	}
	delete(g.edges, id)
	for i, n := range g.order {
		if n == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
}

// Edges returns id's outgoing targets. Absent nodes have no edges.
// The returned slice must not be modified.
func (g *Graph) Edges(id string) []string {
	return g.edges[id]
}

// Has reports whether id is a key.
func (g *Graph) Has(id string) bool {
	_, ok := g.edges[id]
	return ok
}

// Nodes returns the keys in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Len returns the number of keys.
func (g *Graph) Len() int {
	return len(g.order)
}

// EdgeCount returns the total number of edges, counting repeats.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, targets := range g.edges {
		n += len(targets)
	}
	return n
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		order: append([]string(nil), g.order...),
		edges: make(map[string][]string, len(g.edges)),
	}
	for id, targets := range g.edges {
		c.edges[id] = append(make([]string, 0, len(targets)), targets...)
	}
	return c
}

// Map returns a detached copy of the adjacency map.
func (g *Graph) Map() map[string][]string {
	m := make(map[string][]string, len(g.edges))
	for id, targets := range g.edges {
		m[id] = append(make([]string, 0, len(targets)), targets...)
	}
	return m
}

// Equal reports whether both graphs have the same keys in the same order and
// the same edge lists in the same order.
func (g *Graph) Equal(o *Graph) bool {
	if len(g.order) != len(o.order) {
		return false
	}
	for i, id := range g.order {
		if o.order[i] != id {
			return false
		}
		a, b := g.edges[id], o.edges[id]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the graph as an object keyed by node ID, in key order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(g.edges[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
