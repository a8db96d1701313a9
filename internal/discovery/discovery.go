// Package discovery implements parent-linkage gap detection and
// confidence-scored identity confirmation: find persons
// whose children are linked to a provider but whose own link is
// missing, scrape the child's provider page for its parent IDs, and
// register a match when the local parent role and a fuzzy name match
// agree.
//
// A Matcher translates one provider's parent-link payload
// into a local confirm/reject decision.
package discovery

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/identity"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/provider"
	"github.com/kinlink/kinlink/internal/store"
)

// Gap is one person whose parent link under a provider is missing even
// though one of their children is linked.
type Gap struct {
	PersonID        string // the person missing the provider link
	ChildID         string // canonical ID of the linked child
	ChildExternalID string
	Role            model.ParentRole // PersonID's role relative to ChildID
}

// Result is the outcome of resolving one Gap.
type Result struct {
	Gap                 Gap
	CandidateExternalID string
	CandidateName       string
	Matched             bool // whether the fuzzy name match also agreed
	Confidence          float64
}

// Matcher scrapes one provider to resolve parent-linkage gaps within a
// database.
type Matcher struct {
	adapter provider.Adapter
	store   store.Store
	idmap   *identity.Map
}

// New returns a Matcher for the given provider adapter.
func New(adapter provider.Adapter, s store.Store, idmap *identity.Map) *Matcher {
	return &Matcher{adapter: adapter, store: s, idmap: idmap}
}

// FindGaps scans every member of dbID and reports those missing a link
// under the matcher's provider despite having a linked child.
func (m *Matcher) FindGaps(ctx context.Context, dbID string) ([]Gap, error) {
	memberships, err := m.store.Memberships(ctx, dbID)
	if err != nil {
		return nil, err
	}

	var gaps []Gap
	for _, mem := range memberships {
		idents, err := m.store.ExternalIdentities(ctx, mem.PersonID, m.adapter.Name())
		if err != nil {
			return nil, err
		}
		if len(idents) > 0 {
			continue // already linked
		}

		children, err := m.store.ChildrenOf(ctx, mem.PersonID)
		if err != nil {
			return nil, err
		}
		for _, edge := range children {
			childIdents, err := m.store.ExternalIdentities(ctx, edge.ChildID, m.adapter.Name())
			if err != nil {
				return nil, err
			}
			if len(childIdents) == 0 {
				continue
			}
			gaps = append(gaps, Gap{
				PersonID:        mem.PersonID,
				ChildID:         edge.ChildID,
				ChildExternalID: childIdents[0].ExternalID,
				Role:            edge.Role,
			})
			break // one linked child is enough to attempt this gap
		}
	}
	return gaps, nil
}

// Resolve scrapes gap's child page for provider parent IDs, fuzzy-
// matches the candidate in gap.Role's slot against the local person's
// name, and registers the identity at the resulting confidence.
func (m *Matcher) Resolve(ctx context.Context, gap Gap) (*Result, error) {
	childRaw, err := m.adapter.Fetch(ctx, gap.ChildExternalID)
	if err != nil {
		return nil, err
	}
	childRec, err := m.adapter.Parse(childRaw)
	if err != nil {
		return nil, err
	}

	idx := roleIndex(gap.Role)
	if idx < 0 || idx >= len(childRec.ParentIDs) {
		return nil, kinderr.New(kinderr.NotFound, "discovery.resolve", gap.PersonID, nil)
	}
	candidateExtID := childRec.ParentIDs[idx]

	candidateName, err := m.fetchName(ctx, candidateExtID)
	if err != nil {
		return nil, err
	}

	local, err := m.store.GetPerson(ctx, gap.PersonID)
	if err != nil {
		return nil, err
	}

	matched := fuzzyNameMatch(local.Display, candidateName)
	confidence := 0.7
	if matched {
		confidence = 1.0
	}

	if err := m.idmap.Register(ctx, gap.PersonID, m.adapter.Name(), candidateExtID, "", confidence); err != nil {
		return nil, err
	}

	return &Result{
		Gap:                 gap,
		CandidateExternalID: candidateExtID,
		CandidateName:       candidateName,
		Matched:             matched,
		Confidence:          confidence,
	}, nil
}

func (m *Matcher) fetchName(ctx context.Context, externalID string) (string, error) {
	raw, err := m.adapter.Fetch(ctx, externalID)
	if err != nil {
		return "", err
	}
	rec, err := m.adapter.Parse(raw)
	if err != nil {
		return "", err
	}
	decoded, ok := codec.Decode(rec, codec.Options{Source: m.adapter.Name(), PlaceholderNames: codec.DefaultPlaceholderNames()})
	if !ok {
		return "", nil
	}
	return decoded.Person.Display, nil
}

// roleIndex maps a local parent role onto the provider's conventional
// parent-list ordering: index 0 is
// the father slot, index 1 the mother slot. A plain "parent" role
// (merged/ambiguous source data) has no fixed slot to check.
func roleIndex(role model.ParentRole) int {
	switch role {
	case model.RoleFather:
		return 0
	case model.RoleMother:
		return 1
	default:
		return -1
	}
}

// fuzzyNameMatch compares two person names: case-insensitive,
// accent-stripped, containment OR last-name equality with length > 2.
func fuzzyNameMatch(a, b string) bool {
	na, nb := foldName(a), foldName(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	la, lb := lastWord(na), lastWord(nb)
	return len(la) > 2 && la == lb
}

// foldName lowercases and strips diacritics via NFD decomposition
// followed by combining-mark removal.
func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// DiscoverAll runs Resolve over every gap in dbID as a cancellable job
//, rate-limited by the
// caller's configured provider delay between items.
func (m *Matcher) DiscoverAll(ctx context.Context, dbID string, rateLimit func(context.Context), emit func(jobs.Progress)) error {
	gaps, err := m.FindGaps(ctx, dbID)
	if err != nil {
		return err
	}

	counters := jobs.Counters{}
	total := len(gaps)
	for i, gap := range gaps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := m.Resolve(ctx, gap)
		if err != nil {
			counters.Errors++
			emit(jobs.Progress{Current: i + 1, Total: total, CurrentItem: gap.PersonID, Counters: counters, Message: err.Error()})
		} else if res.Matched {
			counters.Discovered++
			emit(jobs.Progress{Current: i + 1, Total: total, CurrentItem: gap.PersonID, Counters: counters})
		} else {
			counters.Skipped++
			emit(jobs.Progress{Current: i + 1, Total: total, CurrentItem: gap.PersonID, Counters: counters, Message: "role match only"})
		}

		if rateLimit != nil && i < total-1 {
			rateLimit(ctx)
		}
	}
	return nil
}
