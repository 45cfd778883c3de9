// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph implements the deterministic topological sort shared by the
// resolver (over a whole config's resources) and the recipe expander (over
// one recipe instance's inner resources): Kahn's algorithm seeded from a
// priority queue ordered by ascending id, so ties are always broken
// alphabetically (spec.md §4.4, "Topology pass").
package graph

import "container/heap"

// CycleError reports that a dependency graph could not be fully sorted; Residual
// holds the ids that never reached zero in-degree.
type CycleError struct {
	Residual []string
}

func (e *CycleError) Error() string {
	return "cycle detected among: " + joinIDs(e.Residual)
}

func joinIDs(ids []string) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += id
	}
	return s
}

type idHeap []string

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// TopoSort orders ids such that every id appears after all ids it depends
// on, per Kahn's algorithm: zero-in-degree nodes are popped in ascending
// lexicographic order, and popping a node decrements the in-degree of its
// dependents, pushing any that reach zero. dependsOn(id) must return the
// ids that id directly depends on; every id referenced there must also
// appear in ids.
//
// If the graph contains a cycle, the returned order is shorter than ids and
// the error is a *CycleError naming the residual (never-scheduled) ids.
func TopoSort(ids []string, dependsOn func(id string) []string) ([]string, error) {
	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range dependsOn(id) {
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	ready := &idHeap{}
	for _, id := range ids {
		if inDegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]string, 0, len(ids))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) < len(ids) {
		scheduled := make(map[string]bool, len(order))
		for _, id := range order {
			scheduled[id] = true
		}
		var residual []string
		for _, id := range ids {
			if !scheduled[id] {
				residual = append(residual, id)
			}
		}
		return order, &CycleError{Residual: residual}
	}

	return order, nil
}
