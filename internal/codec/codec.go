// Package codec converts a provider's raw record into the canonical
// model.Person plus its vital events and claims. Each
// provider adapter is responsible for unmarshalling its own wire format
// into a RawRecord; this package only knows the generic GEDCOM-X-style
// shape that every genealogy provider in practice exposes (named forms,
// typed facts, family-as-parent groupings).
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kinlink/kinlink/internal/model"
)

// RawName is one name entry on a raw provider record.
type RawName struct {
	Type       string // e.g. "http://gedcomx.org/BirthName", "...MarriedName", "...AlsoKnownAs"
	FullText   string
	Preferred  bool
	ModifiedAt time.Time
}

// RawFact is one typed fact: a vital event, an occupation/title claim,
// or a life-sketch biography.
type RawFact struct {
	Type                string // URI, e.g. "http://gedcomx.org/Birth"
	DateOriginal        string
	DateNormalized      []string // fallback when DateOriginal is empty; first element used
	DateFormal          string   // ISO-ish formal date, when the provider supplies one
	PlaceOriginal       string
	PlaceDescriptionRef string // "#NNNNN" reference into a places table
	Value               string // free-text value for occupation/title/life-sketch facts
	ModifiedAt          time.Time
}

// RawFamily is a family-as-parent grouping: this record is a parent in
// the family, so the co-parent (if any) is a spouse.
type RawFamily struct {
	Parent1ID string
	Parent2ID string
}

// RawRecord is the provider-agnostic tree a codec.Decode call consumes.
// Raw carries any provider-specific fields a future caller might need
// that this package doesn't model explicitly.
type RawRecord struct {
	ID               string
	Names            []RawName
	GenderURI        string
	Living           bool
	Facts            []RawFact
	FamiliesAsParent []RawFamily
	ParentIDs        []string // this record's own parents, for crawler BFS enqueue
	ParentsKnown     bool     // true if the provider records at least one parent for this record
	Raw              map[string]any
}

// Options parameterizes a Decode call with the source tag to stamp on
// every event/claim and the configured set of "unknown" placeholder
// names that terminate a branch.
type Options struct {
	Source           string
	PlaceholderNames map[string]bool
}

// DefaultPlaceholderNames is the out-of-the-box termination-node set;
// callers may extend or replace it via Options.
func DefaultPlaceholderNames() map[string]bool {
	return map[string]bool{
		"unknown":        true,
		"unknown father": true,
		"unknown mother": true,
		"no name":        true,
		"living":         true,
	}
}

// Result is the decoded output of a single raw record.
type Result struct {
	Person    model.Person
	Events    []model.VitalEvent
	Claims    []model.Claim
	SpouseIDs []string
}

const (
	nameTypeBirth    = "http://gedcomx.org/BirthName"
	nameTypeMarried  = "http://gedcomx.org/MarriedName"
	nameTypeAKA      = "http://gedcomx.org/AlsoKnownAs"
	nameTypeNickname = "http://gedcomx.org/Nickname"

	factBirth      = "http://gedcomx.org/Birth"
	factDeath      = "http://gedcomx.org/Death"
	factBurial     = "http://gedcomx.org/Burial"
	factOccupation = "http://gedcomx.org/Occupation"
	factTitle      = "http://gedcomx.org/Title"
	factLifeSketch = "http://gedcomx.org/LifeSketch"
)

var placeIDRef = regexp.MustCompile(`^#(\S+)$`)

// Decode converts rec into a canonical Person/Events/Claims/SpouseIDs.
// The second return value is false when the "unknown" termination
// policy drops the record: both parent slots empty and the primary
// name matches a configured placeholder.
func Decode(rec RawRecord, opts Options) (*Result, bool) {
	categorized := categorizeNames(rec.Names)
	primary := primaryName(rec, categorized)

	if !rec.ParentsKnown && isPlaceholder(primary, opts.PlaceholderNames) {
		return nil, false
	}

	p := model.Person{
		PersonID:  rec.ID,
		Display:   primary,
		BirthName: firstOrEmpty(categorized[nameTypeBirth]),
		Gender:    mapGender(rec.GenderURI),
		Living:    rec.Living,
	}

	var events []model.VitalEvent
	var claims []model.Claim
	var bio string
	var lastModified time.Time

	for _, n := range rec.Names {
		if n.ModifiedAt.After(lastModified) {
			lastModified = n.ModifiedAt
		}
	}

	seenClaim := map[string]bool{}
	for _, f := range rec.Facts {
		if f.ModifiedAt.After(lastModified) {
			lastModified = f.ModifiedAt
		}
		switch f.Type {
		case factBirth, factDeath, factBurial:
			events = append(events, buildEvent(p.PersonID, eventTypeFor(f.Type), f, opts.Source))
		case factOccupation:
			if f.Value != "" && !seenClaim["occupation\x00"+f.Value] {
				seenClaim["occupation\x00"+f.Value] = true
				claims = append(claims, model.Claim{PersonID: p.PersonID, Predicate: "occupation", Value: f.Value, Source: opts.Source})
			}
		case factTitle:
			if f.Value != "" && !seenClaim["title\x00"+f.Value] {
				seenClaim["title\x00"+f.Value] = true
				claims = append(claims, model.Claim{PersonID: p.PersonID, Predicate: "title", Value: f.Value, Source: opts.Source})
			}
		case factLifeSketch:
			if bio == "" {
				bio = f.Value
			}
		}
	}

	for _, n := range rec.Names {
		if n.Type == nameTypeAKA || n.Type == nameTypeNickname {
			if n.FullText != "" {
				claims = append(claims, model.Claim{PersonID: p.PersonID, Predicate: "alias", Value: n.FullText, Source: opts.Source})
			}
		}
	}

	p.Bio = bio
	if !lastModified.IsZero() {
		p.UpdatedAt = lastModified
	}

	var spouseIDs []string
	for _, fam := range rec.FamiliesAsParent {
		for _, other := range []string{fam.Parent1ID, fam.Parent2ID} {
			if other != "" && other != rec.ID {
				spouseIDs = append(spouseIDs, other)
			}
		}
	}

	return &Result{Person: p, Events: events, Claims: claims, SpouseIDs: dedupeStrings(spouseIDs)}, true
}

func buildEvent(personID string, et model.EventType, f RawFact, source string) model.VitalEvent {
	original := f.DateOriginal
	if original == "" && len(f.DateNormalized) > 0 {
		original = f.DateNormalized[0]
	}
	var placeID string
	if m := placeIDRef.FindStringSubmatch(f.PlaceDescriptionRef); m != nil {
		placeID = m[1]
	}
	return model.VitalEvent{
		PersonID:     personID,
		EventType:    et,
		DateOriginal: original,
		DateYear:     ParseYear(original),
		Place:        f.PlaceOriginal,
		PlaceID:      placeID,
		Source:       source,
	}
}

func eventTypeFor(factType string) model.EventType {
	switch factType {
	case factBirth:
		return model.EventBirth
	case factDeath:
		return model.EventDeath
	case factBurial:
		return model.EventBurial
	default:
		return model.EventType(factType)
	}
}

func mapGender(uri string) model.Gender {
	switch uri {
	case "http://gedcomx.org/Male":
		return model.GenderMale
	case "http://gedcomx.org/Female":
		return model.GenderFemale
	default:
		return model.GenderUnknown
	}
}

// categorizeNames buckets names by type and dedupes identical full-text
// entries within a bucket.
func categorizeNames(names []RawName) map[string][]string {
	out := map[string][]string{}
	seen := map[string]map[string]bool{}
	for _, n := range names {
		bucket := n.Type
		if bucket == "" {
			bucket = "other"
		}
		if seen[bucket] == nil {
			seen[bucket] = map[string]bool{}
		}
		if n.FullText == "" || seen[bucket][n.FullText] {
			continue
		}
		seen[bucket][n.FullText] = true
		out[bucket] = append(out[bucket], n.FullText)
	}
	return out
}

// primaryName prefers an explicit Preferred (display) name, then the
// first birth name, then "unknown" — exactly three tiers, with no
// fallback to a married name or AKA.
func primaryName(rec RawRecord, categorized map[string][]string) string {
	for _, n := range rec.Names {
		if n.Preferred && n.FullText != "" {
			return n.FullText
		}
	}
	if b := firstOrEmpty(categorized[nameTypeBirth]); b != "" {
		return b
	}
	return "unknown"
}

func isPlaceholder(name string, configured map[string]bool) bool {
	if configured == nil {
		configured = DefaultPlaceholderNames()
	}
	return configured[strings.ToLower(strings.TrimSpace(name))]
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

var yearRE = regexp.MustCompile(`(\d{1,4})\s*(BC|BCE)?\s*$`)

// ParseYear parses the trailing year out of a free-form date string:
// "1820", "15 March 1820", "1820 BC" (negative), and "?" (nil).
func ParseYear(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" || s == "?" {
		return nil
	}
	m := yearRE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	if m[2] != "" {
		year = -year
	}
	return &year
}

// Lifespan renders the "<birth>-<death>" display string, either side
// allowed empty.
func Lifespan(birthYear, deathYear *int) string {
	var b, d string
	if birthYear != nil {
		b = fmt.Sprintf("%d", *birthYear)
	}
	if deathYear != nil {
		d = fmt.Sprintf("%d", *deathYear)
	}
	return b + "-" + d
}
