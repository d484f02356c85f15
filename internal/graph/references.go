package graph

import "github.com/matsen/papergraph/internal/reference"

// BuildReferences derives the reference graph from a paper snapshot.
//
// An edge A→B is kept only when B is a local paper (its S2 ID matches one of
// A's raw references) and B was published on a strictly earlier calendar date
// than A. The date filter drops self-references and forward references in
// external data, and it is what keeps the graph acyclic. Every paper is a key,
// in snapshot order.
func BuildReferences(papers []reference.Paper) *Graph {
	localByS2 := make(map[string]string, len(papers))
	published := make(map[string]reference.PublicationDate, len(papers))
	for _, p := range papers {
		if p.S2ID != "" {
			localByS2[p.S2ID] = p.ID // last write wins
		}
		published[p.ID] = p.Published
	}

	g := New()
	for _, p := range papers {
		g.AddNode(p.ID)
	}
	for _, p := range papers {
		for _, ext := range p.References {
			target, ok := localByS2[ext]
			if !ok {
				continue
			}
			if !published[target].Before(p.Published) {
				continue
			}
			g.AddEdge(p.ID, target)
		}
	}
	return g
}

// ReferenceStats counts what BuildReferences dropped from a snapshot.
type ReferenceStats struct {
	Raw        int `json:"raw"`        // raw reference IDs across all papers
	Resolved   int `json:"resolved"`   // raw IDs that matched a local paper
	Kept       int `json:"kept"`       // resolved IDs that passed the date filter
	Unresolved int `json:"unresolved"` // raw IDs with no local paper
	Ordering   int `json:"ordering"`   // resolved IDs published on or after the citing paper
}

// CountReferences reports how a snapshot's raw references were classified.
func CountReferences(papers []reference.Paper) ReferenceStats {
	localByS2 := make(map[string]reference.PublicationDate, len(papers))
	for _, p := range papers {
		if p.S2ID != "" {
			localByS2[p.S2ID] = p.Published
		}
	}

	var s ReferenceStats
	for _, p := range papers {
		for _, ext := range p.References {
			s.Raw++
			date, ok := localByS2[ext]
			if !ok {
				s.Unresolved++
				continue
			}
			s.Resolved++
			if date.Before(p.Published) {
				s.Kept++
			} else {
				s.Ordering++
			}
		}
	}
	return s
}
