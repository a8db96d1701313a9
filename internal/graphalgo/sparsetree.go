package graphalgo

import (
	"context"
	"sort"

	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
)

// SparseNode is one emitted node of a sparse tree.
type SparseNode struct {
	PersonID           string
	GenerationFromRoot int
	LineageFromParent  string // "paternal" | "maternal" | "self"
	GenerationsSkipped int
	SparseParentID     string // "" for the root
}

const (
	LineageSelf     = "self"
	LineagePaternal = "paternal"
	LineageMaternal = "maternal"
)

// SparseTree builds the tree rooted at dbID's root containing exactly
// the union of the database's favorites, the root, and every ancestor
// on a (shortest) path from the root to a favorite, with all other
// ancestors collapsed.
//
// A favorite not reachable as an ancestor of the root (no parent-edge
// path connects them) is silently omitted: the sparse tree is defined
// only over the root's pedigree, and an unrelated favorite has no path
// to annotate.
func SparseTree(ctx context.Context, s store.Store, dbID string) ([]SparseNode, error) {
	db, err := s.GetDatabase(ctx, dbID)
	if err != nil {
		return nil, err
	}
	favorites, err := s.Favorites(ctx, dbID)
	if err != nil {
		return nil, err
	}
	memberships, err := s.Memberships(ctx, dbID)
	if err != nil {
		return nil, err
	}
	memberGen := make(map[string]int, len(memberships))
	for _, m := range memberships {
		memberGen[m.PersonID] = m.Generation
	}

	ancestry, err := BuildAncestryMap(ctx, s, db.RootID)
	if err != nil {
		return nil, err
	}

	kept := map[string]bool{db.RootID: true}
	for _, fav := range favorites {
		if _, reachable := ancestry[fav.PersonID]; !reachable {
			continue
		}
		for cur := fav.PersonID; cur != ""; {
			if kept[cur] {
				break
			}
			kept[cur] = true
			cur = ancestry[cur].ParentInPath
		}
	}

	roleCache := map[string]model.ParentRole{}
	lineageOf := func(ctx context.Context, childID, parentID string) (model.ParentRole, error) {
		key := childID + "|" + parentID
		if r, ok := roleCache[key]; ok {
			return r, nil
		}
		edges, err := s.ParentsOf(ctx, childID)
		if err != nil {
			return "", err
		}
		for _, e := range edges {
			roleCache[childID+"|"+e.ParentID] = e.Role
		}
		return roleCache[key], nil
	}

	var out []SparseNode
	for id := range kept {
		node := ancestry[id]
		sn := SparseNode{
			PersonID:           id,
			GenerationFromRoot: node.Depth,
			SparseParentID:     node.ParentInPath,
		}
		if id == db.RootID {
			sn.LineageFromParent = LineageSelf
		} else {
			role, err := lineageOf(ctx, node.ParentInPath, id)
			if err != nil {
				return nil, err
			}
			switch role {
			case model.RoleMother:
				sn.LineageFromParent = LineageMaternal
			default:
				// ParentRole also allows the ambiguous "parent" value
				// when a provider doesn't distinguish father from
				// mother; label it paternal rather than invent a
				// fourth enum value.
				sn.LineageFromParent = LineagePaternal
			}
		}
		if knownGen, ok := memberGen[id]; ok && knownGen > node.Depth {
			sn.GenerationsSkipped = knownGen - node.Depth
		}
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GenerationFromRoot != out[j].GenerationFromRoot {
			return out[i].GenerationFromRoot < out[j].GenerationFromRoot
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out, nil
}
