package sqltable

import (
	"testing"

	"applicantsync/pkg/domain"
)

func TestDialectBind(t *testing.T) {
	if got := SQLite.bind(2); got != "?" {
		t.Fatalf("sqlite bind: %q", got)
	}
	if got := Postgres.bind(2); got != "$2" {
		t.Fatalf("postgres bind: %q", got)
	}
}

func TestCompareKeys(t *testing.T) {
	cases := []struct {
		a, b domain.Key
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"3", "3", 0},
		{"9", "abc", -1},
		{"abc", "9", 1},
		{"abc", "abd", -1},
	}
	for _, tc := range cases {
		if got := compareKeys(tc.a, tc.b); got != tc.want {
			t.Fatalf("compareKeys(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTableNamePattern(t *testing.T) {
	for _, ok := range []string{"registry_rows", "_x", "rows2"} {
		if !tableNamePattern.MatchString(ok) {
			t.Fatalf("expected %q to be accepted", ok)
		}
	}
	for _, bad := range []string{"", "Rows", "rows;drop", "1rows"} {
		if tableNamePattern.MatchString(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
