package graph

import "fmt"

// Violation describes an invariant a graph fails.
type Violation struct {
	Kind   string `json:"kind"` // cycle, reachability, redundant_edge, missing_key
	Source string `json:"source"`
	Target string `json:"target,omitempty"`
}

func (v Violation) String() string {
	if v.Target == "" {
		return fmt.Sprintf("%s at %s", v.Kind, v.Source)
	}
	return fmt.Sprintf("%s %s→%s", v.Kind, v.Source, v.Target)
}

// FindCycle returns a node that lies on a cycle, or false if g is acyclic.
// It uses an iterative three-colour depth-first search.
func FindCycle(g *Graph) (string, bool) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, g.Len())

	type frame struct {
		id   string
		next int
	}

	for _, root := range g.order {
		if color[root] != white {
			continue
		}
		color[root] = grey
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			targets := g.Edges(top.id)
			if top.next == len(targets) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := targets[top.next]
			top.next++

			switch color[child] {
			case grey:
				return child, true
			case white:
				color[child] = grey
				stack = append(stack, frame{id: child})
			}
		}
	}
	return "", false
}

// MissingKeys returns edge targets that are not keys, in first-seen order.
func MissingKeys(g *Graph) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, id := range g.order {
		for _, t := range g.Edges(id) {
			if !g.Has(t) && !seen[t] {
				seen[t] = true
				missing = append(missing, t)
			}
		}
	}
	return missing
}

// VerifyReduction checks that reduced has the same reachability as original
// over order and that no reduced edge is implied by a longer reduced path.
// It returns every violation found.
func VerifyReduction(original, reduced *Graph, order []string) []Violation {
	want := Closure(original, order)
	got := Closure(reduced, order)

	var violations []Violation
	for i, from := range order {
		for j, to := range order {
			if want.At(i, j) != got.At(i, j) {
				violations = append(violations, Violation{Kind: "reachability", Source: from, Target: to})
			}
		}
	}

	for _, from := range reduced.order {
		for _, to := range reduced.Edges(from) {
			if impliedWithout(reduced, got, from, to) {
				violations = append(violations, Violation{Kind: "redundant_edge", Source: from, Target: to})
			}
		}
	}
	return violations
}

// impliedWithout reports whether to is reachable from from through some other
// direct successor of from.
func impliedWithout(g *Graph, closure *Matrix, from, to string) bool {
	for _, mid := range g.Edges(from) {
		if mid == to {
			continue
		}
		if closure.Reachable(mid, to) {
			return true
		}
	}
	return false
}
