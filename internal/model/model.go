// Package model holds the canonical genealogical entities shared by the
// store, identity map, codec, crawler, and graph algorithms.
package model

import "time"

// Gender is the normalized gender enum for a Person.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// ParentRole classifies a ParentEdge.
type ParentRole string

const (
	RoleFather ParentRole = "father"
	RoleMother ParentRole = "mother"
	RoleParent ParentRole = "parent"
)

// EventType enumerates the well-known vital event kinds. The set is
// extensible; unrecognized provider event types are carried through
// verbatim.
type EventType string

const (
	EventBirth  EventType = "birth"
	EventDeath  EventType = "death"
	EventBurial EventType = "burial"
)

// GeocodeStatus is the lifecycle state of a PlaceGeocode row.
type GeocodeStatus string

const (
	GeocodePending  GeocodeStatus = "pending"
	GeocodeResolved GeocodeStatus = "resolved"
	GeocodeNotFound GeocodeStatus = "not_found"
	GeocodeError    GeocodeStatus = "error"
)

// Person is the canonical person record.
type Person struct {
	PersonID   string
	Display    string
	BirthName  string
	Gender     Gender
	Living     bool
	Bio        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExternalIdentity maps a canonical person to a provider-specific ID.
type ExternalIdentity struct {
	PersonID    string
	Source      string
	ExternalID  string
	URL         string
	Confidence  float64
	RegisteredAt time.Time
}

// ParentEdge is a (child, parent) relationship.
type ParentEdge struct {
	ChildID  string
	ParentID string
	Role     ParentRole
	Source   string
}

// SpouseEdge is an unordered couple relationship, canonicalized so
// Person1ID < Person2ID.
type SpouseEdge struct {
	Person1ID string
	Person2ID string
	Source    string
}

// NewSpouseEdge canonicalizes the pair order.
func NewSpouseEdge(a, b, source string) SpouseEdge {
	if a > b {
		a, b = b, a
	}
	return SpouseEdge{Person1ID: a, Person2ID: b, Source: source}
}

// VitalEvent is a birth/death/burial/... fact.
type VitalEvent struct {
	PersonID     string
	EventType    EventType
	DateOriginal string
	DateYear     *int // signed; BC dates are negative; nil when unparseable
	Place        string
	PlaceID      string
	Source       string
}

// Claim is an open-vocabulary per-person assertion.
type Claim struct {
	ClaimID   string
	PersonID  string
	Predicate string
	Value     string
	Source    string
}

// Database is a named rooted subgraph.
type Database struct {
	DBID          string
	RootID        string
	MaxGenerations int // 0 means unbounded
	Name          string
}

// Membership is a person's role within a Database.
type Membership struct {
	DBID       string
	PersonID   string
	IsRoot     bool
	Generation int
}

// Favorite marks a person of interest within a database.
type Favorite struct {
	DBID            string
	PersonID        string
	WhyInteresting  string
	Tags            []string
	AddedAt         time.Time
}

// Blob is a content-addressed binary.
type Blob struct {
	Hash      string // sha256 hex
	Path      string
	MimeType  string
	SizeBytes int64
	Width     *int
	Height    *int
}

// Media attaches a Blob to a Person.
type Media struct {
	MediaID   string
	PersonID  string
	BlobHash  string
	Source    string
	IsPrimary bool
	Caption   string
}

// PlaceGeocode is a cached geocode lookup.
type PlaceGeocode struct {
	PlaceText     string
	Lat           float64
	Lng           float64
	DisplayName   string
	Status        GeocodeStatus
	GeocodedAt    time.Time
}
