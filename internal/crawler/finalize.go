package crawler

import (
	"context"

	"github.com/kinlink/kinlink/internal/graphalgo"
	"github.com/kinlink/kinlink/internal/model"
)

// finalize writes parent edges, spouse edges, and recomputed memberships
// in separate transactions; edges are held back to the end of the
// crawl so they are never written before the persons they reference
// exist. It runs on whatever work has accumulated
// so far, so a cancelled crawl still checkpoints cleanly.
func (r *run) finalize(ctx context.Context, rootID string) error {
	if err := r.c.store.UpsertDatabase(ctx, model.Database{
		DBID:           r.opts.DBID,
		RootID:         rootID,
		MaxGenerations: r.opts.MaxGenerations,
		Name:           r.opts.DBName,
	}); err != nil {
		return err
	}

	var edges []model.ParentEdge
	for _, es := range r.pendingEdgesByChild {
		for _, e := range es {
			if r.droppedPlaceholder[e.ParentID] {
				continue
			}
			edges = append(edges, e)
		}
	}
	if len(edges) > 0 {
		if err := r.c.store.WriteParentEdges(ctx, edges); err != nil {
			return err
		}
	}
	if len(r.pendingSpouses) > 0 {
		if err := r.c.store.WriteSpouseEdges(ctx, r.pendingSpouses); err != nil {
			return err
		}
	}

	hops, err := graphalgo.Ancestors(ctx, r.c.store, rootID, r.opts.MaxGenerations)
	if err != nil {
		return err
	}
	memberships := make([]model.Membership, 0, len(hops)+1)
	memberships = append(memberships, model.Membership{DBID: r.opts.DBID, PersonID: rootID, IsRoot: true, Generation: 0})
	for _, h := range hops {
		memberships = append(memberships, model.Membership{DBID: r.opts.DBID, PersonID: h.PersonID, Generation: h.Depth})
	}
	return r.c.store.WriteMemberships(ctx, memberships)
}
