package model

// boundary.go: Boundary containment forest.
//
// Every element has at most one directly containing boundary. Elements with
// no boundary resolve to the synthetic unscoped boundary (nil). Containment
// among boundaries must be acyclic; Validate enforces it, and every walk here
// guards against cycles so queries stay safe on an unvalidated Draft.

// ResolvedBoundary returns the directly containing boundary of e, or nil for
// the unscoped boundary.
func (m *Model) ResolvedBoundary(e *Element) *Element {
	if e == nil {
		return nil
	}
	return e.boundary
}

// CrossesBoundary reports whether the flow's endpoints resolve to different
// boundaries.
func (m *Model) CrossesBoundary(df *Dataflow) bool {
	return m.ResolvedBoundary(df.source) != m.ResolvedBoundary(df.sink)
}

// IsDescendant reports whether a lies inside boundary b, directly or
// transitively.
func (m *Model) IsDescendant(a, b *Element) bool {
	if a == nil || b == nil || b.kind != Boundary {
		return false
	}
	seen := make(map[*Element]bool)
	for p := a.boundary; p != nil && !seen[p]; p = p.boundary {
		if p == b {
			return true
		}
		seen[p] = true
	}
	return false
}

// Children returns the elements directly inside b, in insertion order.
// Children(nil) returns the unscoped elements, including top-level boundaries.
func (m *Model) Children(b *Element) []*Element {
	var out []*Element
	for _, e := range m.Elements() {
		if e.boundary == b {
			out = append(out, e)
		}
	}
	return out
}

// Ancestors returns the boundary chain above e, innermost first.
func (m *Model) Ancestors(e *Element) []*Element {
	var out []*Element
	seen := make(map[*Element]bool)
	for p := e.boundary; p != nil && !seen[p]; p = p.boundary {
		out = append(out, p)
		seen[p] = true
	}
	return out
}

// boundaryCycles walks the parent chain of every boundary in insertion order
// and returns one error per distinct cycle. Callers hold m.mu.
func (m *Model) boundaryCycles() []*BoundaryCycleError {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[*Element]int)
	var cycles []*BoundaryCycleError

	for _, start := range m.elements {
		if start.kind != Boundary || state[start] == done {
			continue
		}
		var path []*Element
		for p := start; p != nil; p = p.boundary {
			if state[p] == done {
				break
			}
			if state[p] == onPath {
				ids := make([]string, 0, len(path)+1)
				for _, e := range path {
					ids = append(ids, e.id)
				}
				ids = append(ids, p.id)
				cycles = append(cycles, &BoundaryCycleError{ID: p.id, Path: ids})
				break
			}
			state[p] = onPath
			path = append(path, p)
		}
		for _, e := range path {
			state[e] = done
		}
	}
	return cycles
}
