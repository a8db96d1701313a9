package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kinlink/kinlink/internal/model"
)

// newShowCmd implements `kinlink show PERSON_ID`: resolves the
// argument through the identity map so either a
// canonical ID or a provider external ID works, then prints the
// person, its identities, parent/child edges, and vital events.
func newShowCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "show PERSON_ID",
		Short: "Show a person's canonical record, identities, and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			personID, err := a.idmap.Resolve(ctx, args[0], source)
			if err != nil {
				return err
			}

			p, err := a.store.GetPerson(ctx, personID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%s\t%s\t%v\n", p.PersonID, p.Display, p.Gender, p.Living)
			if p.BirthName != "" && p.BirthName != p.Display {
				fmt.Fprintf(out, "  birth name: %s\n", p.BirthName)
			}
			if p.Bio != "" {
				fmt.Fprintf(out, "  bio: %s\n", p.Bio)
			}

			idents, err := a.store.ExternalIdentities(ctx, personID, "")
			if err != nil {
				return err
			}
			for _, id := range idents {
				fmt.Fprintf(out, "  identity: %s/%s (confidence %.2f)\n", id.Source, id.ExternalID, id.Confidence)
			}

			parents, err := a.store.ParentsOf(ctx, personID)
			if err != nil {
				return err
			}
			printEdges(out, "parent", parents)

			children, err := a.store.ChildrenOf(ctx, personID)
			if err != nil {
				return err
			}
			printEdges(out, "child", children)

			events, err := a.store.EventsOf(ctx, personID)
			if err != nil {
				return err
			}
			for _, ev := range events {
				fmt.Fprintf(out, "  event: %s %s at %s (via %s)\n", ev.EventType, ev.DateOriginal, ev.Place, ev.Source)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "treat PERSON_ID as an external ID under this provider")
	return cmd
}

func printEdges(out io.Writer, label string, edges []model.ParentEdge) {
	for _, e := range edges {
		other := e.ParentID
		if label == "child" {
			other = e.ChildID
		}
		fmt.Fprintf(out, "  %s: %s (%s, via %s)\n", label, other, e.Role, e.Source)
	}
}
