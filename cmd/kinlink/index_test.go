package main

import "testing"

func TestParseOldestYear(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1700", 1700, false},
		{"1700 BC", -1700, false},
		{"1700bc", -1700, false},
		{"  1066  ", 1066, false},
		{"not a year", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := parseOldestYear(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseOldestYear(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseOldestYear(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseOldestYear(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
