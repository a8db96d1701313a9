package ids

import (
	"testing"
	"time"
)

func TestNewLengthAndAlphabet(t *testing.T) {
	id := New()
	if len(id) != Len {
		t.Fatalf("expected length %d, got %d (%q)", Len, len(id), id)
	}
	if !Valid(id) {
		t.Fatalf("generated id failed Valid(): %q", id)
	}
}

func TestValidRejectsWrongLength(t *testing.T) {
	if Valid("TOOSHORT") {
		t.Fatal("expected short string to be invalid")
	}
	if Valid("") {
		t.Fatal("expected empty string to be invalid")
	}
}

func TestValidRejectsBadAlphabet(t *testing.T) {
	id := New()
	bad := "i" + id[1:] // lowercase 'i' is not in the Crockford alphabet
	if Valid(bad) {
		t.Fatalf("expected %q to be invalid", bad)
	}
}

func TestMonotonicWithinSameMillisecond(t *testing.T) {
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAt(at)
	b := NewAt(at)
	if a >= b {
		t.Fatalf("expected monotonic increase within the same millisecond: %q >= %q", a, b)
	}
}

func TestLexicographicOrderTracksTime(t *testing.T) {
	t1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Second)
	a := NewAt(t1)
	b := NewAt(t2)
	if a >= b {
		t.Fatalf("expected id at earlier time to sort first: %q >= %q", a, b)
	}
}
