package main

import (
	"errors"
	"testing"
)

func TestNewRootCmdRegistersAllSubcommands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"index", "search", "show", "path", "tree", "discover", "geocode", "jobs", "db"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestUsageErrorWrapsAndUnwraps(t *testing.T) {
	base := errors.New("bad flag value")
	wrapped := &usageError{base}

	if wrapped.Error() != base.Error() {
		t.Fatalf("Error() = %q, want %q", wrapped.Error(), base.Error())
	}

	var target *usageError
	if !errors.As(error(wrapped), &target) {
		t.Fatal("errors.As should match usageError")
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("errors.Is should see through Unwrap to base")
	}
}
