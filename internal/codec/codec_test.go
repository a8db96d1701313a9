package codec

import "testing"

func TestDecodePrefersPreferredName(t *testing.T) {
	rec := RawRecord{
		ID: "FS-1",
		Names: []RawName{
			{Type: nameTypeBirth, FullText: "Jonathan Wren"},
			{Type: nameTypeMarried, FullText: "Jonathan Ashworth", Preferred: true},
		},
		ParentsKnown: true,
	}
	res, ok := Decode(rec, Options{Source: "familysearch"})
	if !ok {
		t.Fatal("expected record to be kept")
	}
	if res.Person.Display != "Jonathan Ashworth" {
		t.Errorf("expected preferred name, got %q", res.Person.Display)
	}
	if res.Person.BirthName != "Jonathan Wren" {
		t.Errorf("expected birth name categorized, got %q", res.Person.BirthName)
	}
}

func TestDecodeDropsUnknownTerminationNode(t *testing.T) {
	rec := RawRecord{
		ID:           "FS-2",
		Names:        []RawName{{Type: nameTypeBirth, FullText: "Unknown Father", Preferred: true}},
		ParentsKnown: false,
	}
	_, ok := Decode(rec, Options{Source: "familysearch"})
	if ok {
		t.Fatal("expected unknown termination node to be dropped")
	}
}

func TestDecodeKeepsUnknownNameWhenParentsAreKnown(t *testing.T) {
	rec := RawRecord{
		ID:           "FS-3",
		Names:        []RawName{{Type: nameTypeBirth, FullText: "Unknown Father", Preferred: true}},
		ParentsKnown: true,
	}
	_, ok := Decode(rec, Options{Source: "familysearch"})
	if !ok {
		t.Fatal("expected record with known parents to survive despite placeholder name")
	}
}

func TestDecodeExtractsEventsAndClaims(t *testing.T) {
	rec := RawRecord{
		ID:           "FS-4",
		Names:        []RawName{{Type: nameTypeBirth, FullText: "Ruth Carver", Preferred: true}},
		ParentsKnown: true,
		Facts: []RawFact{
			{Type: factBirth, DateOriginal: "15 March 1820", PlaceOriginal: "Kent, England", PlaceDescriptionRef: "#41187"},
			{Type: factDeath, DateOriginal: "1890 BC"},
			{Type: factOccupation, Value: "Weaver"},
			{Type: factLifeSketch, Value: "Lived a quiet life."},
		},
	}
	res, ok := Decode(rec, Options{Source: "ancestry"})
	if !ok {
		t.Fatal("expected record to be kept")
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 vital events, got %d", len(res.Events))
	}
	if res.Events[0].PlaceID != "41187" {
		t.Errorf("expected place_id extracted from description ref, got %q", res.Events[0].PlaceID)
	}
	if *res.Events[0].DateYear != 1820 {
		t.Errorf("expected birth year 1820, got %d", *res.Events[0].DateYear)
	}
	if *res.Events[1].DateYear != -1890 {
		t.Errorf("expected BC death year -1890, got %d", *res.Events[1].DateYear)
	}
	if res.Person.Bio != "Lived a quiet life." {
		t.Errorf("expected life sketch as bio, got %q", res.Person.Bio)
	}
	foundOccupation := false
	for _, c := range res.Claims {
		if c.Predicate == "occupation" && c.Value == "Weaver" {
			foundOccupation = true
		}
	}
	if !foundOccupation {
		t.Error("expected occupation claim for Weaver")
	}
}

func TestDecodeExtractsSpouseIDsFromFamiliesAsParent(t *testing.T) {
	rec := RawRecord{
		ID:           "FS-5",
		Names:        []RawName{{Type: nameTypeBirth, FullText: "Agnes Hale", Preferred: true}},
		ParentsKnown: true,
		FamiliesAsParent: []RawFamily{
			{Parent1ID: "FS-5", Parent2ID: "FS-9"},
		},
	}
	res, ok := Decode(rec, Options{Source: "wikitree"})
	if !ok {
		t.Fatal("expected record to be kept")
	}
	if len(res.SpouseIDs) != 1 || res.SpouseIDs[0] != "FS-9" {
		t.Fatalf("expected spouse FS-9, got %+v", res.SpouseIDs)
	}
}

func TestDecodeCarriesLivingFlag(t *testing.T) {
	rec := RawRecord{
		ID:           "FS-6",
		Names:        []RawName{{Type: nameTypeBirth, FullText: "Mara Voss", Preferred: true}},
		ParentsKnown: true,
		Living:       true,
	}
	res, ok := Decode(rec, Options{Source: "familysearch"})
	if !ok {
		t.Fatal("expected record to be kept")
	}
	if !res.Person.Living {
		t.Error("expected Living to carry through from the raw record")
	}
}

func TestParseYear(t *testing.T) {
	cases := []struct {
		in   string
		want *int
	}{
		{"1820", intPtr(1820)},
		{"15 March 1820", intPtr(1820)},
		{"1820 BC", intPtr(-1820)},
		{"?", nil},
		{"", nil},
	}
	for _, c := range cases {
		got := ParseYear(c.in)
		if (got == nil) != (c.want == nil) {
			t.Errorf("ParseYear(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		if got != nil && *got != *c.want {
			t.Errorf("ParseYear(%q) = %d, want %d", c.in, *got, *c.want)
		}
	}
}

func intPtr(v int) *int { return &v }
