// Package graphalgo implements the iterative, cycle-tolerant graph
// traversals over parent/child edges: ancestor
// and descendant enumeration, ancestry-map construction, common-ancestor
// path finding (shortest/longest/random), and sparse-tree extraction
// over a favorites subset.
//
// Every walk here uses an explicit queue and a visited set instead of
// recursion — provider data contains mis-linked records that cycle,
// and a recursive walk would never terminate on them.
package graphalgo

import (
	"context"
	"math/rand"

	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
)

// Hop is one reachable node at a given BFS depth.
type Hop struct {
	PersonID string
	Depth    int
}

// direction picks which edge endpoint to walk from and which to walk
// to, so Ancestors and Descendants share one BFS implementation.
type direction int

const (
	towardParents direction = iota
	towardChildren
)

func edgesFrom(ctx context.Context, s store.Store, dir direction, personID string) ([]model.ParentEdge, error) {
	if dir == towardParents {
		return s.ParentsOf(ctx, personID)
	}
	return s.ChildrenOf(ctx, personID)
}

func otherEnd(dir direction, e model.ParentEdge) string {
	if dir == towardParents {
		return e.ParentID
	}
	return e.ChildID
}

func walk(ctx context.Context, s store.Store, dir direction, start string, maxDepth int) ([]Hop, error) {
	if maxDepth <= 0 {
		maxDepth = 1<<31 - 1
	}
	visited := map[string]bool{start: true}
	queue := []Hop{{PersonID: start, Depth: 0}}
	var out []Hop

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.PersonID != start {
			out = append(out, cur)
		}
		if cur.Depth >= maxDepth {
			continue
		}
		edges, err := edgesFrom(ctx, s, dir, cur.PersonID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			next := otherEnd(dir, e)
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, Hop{PersonID: next, Depth: cur.Depth + 1})
		}
	}
	return out, nil
}

// Ancestors returns every person reachable from start by walking
// child→parent edges, up to maxDepth generations (0 means unbounded).
func Ancestors(ctx context.Context, s store.Store, start string, maxDepth int) ([]Hop, error) {
	return walk(ctx, s, towardParents, start, maxDepth)
}

// Descendants returns every person reachable from start by walking
// parent→child edges, up to maxDepth generations (0 means unbounded).
func Descendants(ctx context.Context, s store.Store, start string, maxDepth int) ([]Hop, error) {
	return walk(ctx, s, towardChildren, start, maxDepth)
}

// AncestryNode is one entry of an ancestry map: the node one step
// closer to start through which this ancestor was first reached, and
// its BFS depth.
type AncestryNode struct {
	ParentInPath string // "" for the start node itself
	Depth        int
}

// BuildAncestryMap produces {id -> (parent_in_path, depth)} for every
// ancestor reachable from start, walking child→parent edges. The map
// always contains start itself at depth 0 with an empty ParentInPath.
func BuildAncestryMap(ctx context.Context, s store.Store, start string) (map[string]AncestryNode, error) {
	out := map[string]AncestryNode{start: {Depth: 0}}
	queue := []string{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curDepth := out[cur].Depth

		edges, err := s.ParentsOf(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if _, seen := out[e.ParentID]; seen {
				continue
			}
			out[e.ParentID] = AncestryNode{ParentInPath: cur, Depth: curDepth + 1}
			queue = append(queue, e.ParentID)
		}
	}
	return out, nil
}

// PathMode selects which common ancestor a Path call picks among the
// set shared by both endpoints.
type PathMode string

const (
	Shortest PathMode = "shortest"
	Longest  PathMode = "longest"
	Random   PathMode = "random"
)

// PathResult is the reconstructed path between two people through their
// chosen common ancestor.
type PathResult struct {
	CommonAncestor string
	TotalDepth     int
	Path           []string // from-person ... common-ancestor ... to-person
}

// maxReconstructIterations caps the walk-down-from-ancestor loop so a
// malformed ancestry map (one that somehow cycles) can't hang path
// reconstruction.
const maxReconstructIterations = 10000

// candidate is one person present in both endpoints' ancestry maps, with
// the combined depth from each endpoint to it.
type candidate struct {
	id         string
	totalDepth int
}

// leastCommonAncestors drops every candidate that is itself an ancestor
// of a nearer candidate on either endpoint's path to it — e.g. given
// chains A->B->C and D->B, C is a common ancestor of A and D but B lies
// strictly between both endpoints and C, so only B is "least". Without
// this filter a node further up the same lineage can out-rank a nearer
// common ancestor on total depth alone and get picked by Longest,
// which is not a common-ancestor path in any useful sense.
func leastCommonAncestors(common []candidate, fromMap, toMap map[string]AncestryNode) []candidate {
	ids := make(map[string]bool, len(common))
	for _, c := range common {
		ids[c.id] = true
	}
	dominated := func(m map[string]AncestryNode, id string) bool {
		for cur := m[id].ParentInPath; cur != ""; cur = m[cur].ParentInPath {
			if ids[cur] {
				return true
			}
		}
		return false
	}
	out := make([]candidate, 0, len(common))
	for _, c := range common {
		if dominated(fromMap, c.id) || dominated(toMap, c.id) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Path finds a common ancestor of from and to and reconstructs the path
// through it. It builds an ancestry map for each
// endpoint, intersects their keys, restricts the intersection to least
// common ancestors, and picks among those per mode: minimum total depth
// (shortest), maximum (longest), or a uniform random choice.
func Path(ctx context.Context, s store.Store, from, to string, mode PathMode) (*PathResult, error) {
	fromMap, err := BuildAncestryMap(ctx, s, from)
	if err != nil {
		return nil, err
	}
	toMap, err := BuildAncestryMap(ctx, s, to)
	if err != nil {
		return nil, err
	}

	var common []candidate
	for id, fn := range fromMap {
		if tn, ok := toMap[id]; ok {
			common = append(common, candidate{id: id, totalDepth: fn.Depth + tn.Depth})
		}
	}
	if len(common) == 0 {
		return nil, nil
	}
	common = leastCommonAncestors(common, fromMap, toMap)

	var chosen candidate
	switch mode {
	case Longest:
		chosen = common[0]
		for _, c := range common[1:] {
			if c.totalDepth > chosen.totalDepth {
				chosen = c
			}
		}
	case Random:
		chosen = common[rand.Intn(len(common))]
	default: // Shortest
		chosen = common[0]
		for _, c := range common[1:] {
			if c.totalDepth < chosen.totalDepth {
				chosen = c
			}
		}
	}

	downFrom, err := reconstructDown(fromMap, chosen.id)
	if err != nil {
		return nil, err
	}
	downTo, err := reconstructDown(toMap, chosen.id)
	if err != nil {
		return nil, err
	}

	// downFrom runs ancestor -> ... -> from; reverse it so the joined
	// path reads from -> ... -> ancestor -> ... -> to, with the common
	// ancestor appearing exactly once.
	reverse(downFrom)
	full := append(downFrom, downTo[1:]...)

	return &PathResult{CommonAncestor: chosen.id, TotalDepth: chosen.totalDepth, Path: full}, nil
}

// reconstructDown walks ParentInPath from ancestorID back down to the
// ancestry map's start node, returning [ancestorID, ..., start].
func reconstructDown(m map[string]AncestryNode, ancestorID string) ([]string, error) {
	path := []string{ancestorID}
	seen := map[string]bool{ancestorID: true}
	cur := ancestorID
	for i := 0; i < maxReconstructIterations; i++ {
		node := m[cur]
		if node.ParentInPath == "" {
			return path, nil
		}
		if seen[node.ParentInPath] {
			break // malformed map guard
		}
		seen[node.ParentInPath] = true
		path = append(path, node.ParentInPath)
		cur = node.ParentInPath
	}
	return path, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
