// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"strings"
	"testing"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

func TestFingerprint_Stability(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"digits", "User 42 logged in", "User 99 logged in"},
		{"emails", "a@b.com failed", "x@y.com failed"},
		{"uuids",
			"request 550e8400-e29b-41d4-a716-446655440000 timed out",
			"request 6ba7b810-9dad-11d1-80b4-00c04fd430c8 timed out"},
		{"case", "Connection Refused", "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := Fingerprint("auth", tt.a)
			fb := Fingerprint("auth", tt.b)
			if fa != fb {
				t.Errorf("fingerprints differ:\n  %q\n  %q", fa, fb)
			}
		})
	}
}

func TestFingerprint_Shape(t *testing.T) {
	got := Fingerprint("orders", "User 42 logged in")
	if got != "orders:user <n> logged in" {
		t.Errorf("Fingerprint = %q", got)
	}

	if got := Fingerprint("", "boom"); !strings.HasPrefix(got, "app:") {
		t.Errorf("missing default module prefix: %q", got)
	}

	long := Fingerprint("m", strings.Repeat("x", 500))
	if len(long) > len("m:")+100 {
		t.Errorf("fingerprint not truncated, len = %d", len(long))
	}
}

func TestStore_RecordAndSearch(t *testing.T) {
	s := New(100, nil, nil)

	id := s.Record(datatypes.LogLevelError, "db connection refused", datatypes.EntryContext{
		Module: "db", UserID: "u1", RequestID: "r1",
	})
	if id == "" {
		t.Fatal("Record returned empty id")
	}
	s.Record(datatypes.LogLevelInfo, "request ok", datatypes.EntryContext{UserID: "u2"})

	got := s.Search(datatypes.SearchFilter{Levels: []datatypes.LogLevel{datatypes.LogLevelError}})
	if len(got) != 1 {
		t.Fatalf("Search by level returned %d entries, want 1", len(got))
	}
	if got[0].ID != id {
		t.Errorf("ID = %q, want %q", got[0].ID, id)
	}
	if got[0].Stack == "" {
		t.Error("error entry missing stack trace")
	}

	if got := s.Search(datatypes.SearchFilter{UserID: "u2"}); len(got) != 1 {
		t.Errorf("Search by user returned %d, want 1", len(got))
	}
	if got := s.Search(datatypes.SearchFilter{CorrelationID: "r1"}); len(got) != 1 {
		t.Errorf("Search by correlation returned %d, want 1", len(got))
	}
	if got := s.Search(datatypes.SearchFilter{TextContains: "REFUSED"}); len(got) != 1 {
		t.Errorf("case-insensitive text search returned %d, want 1", len(got))
	}
	if got := s.Search(datatypes.SearchFilter{TextContains: "nothing here"}); len(got) != 0 {
		t.Errorf("non-matching text search returned %d, want 0", len(got))
	}
}

func TestStore_SearchNewestFirst(t *testing.T) {
	s := New(10, nil, nil)
	s.Record(datatypes.LogLevelInfo, "first", datatypes.EntryContext{})
	s.Record(datatypes.LogLevelInfo, "second", datatypes.EntryContext{})
	s.Record(datatypes.LogLevelInfo, "third", datatypes.EntryContext{})

	got := s.Search(datatypes.SearchFilter{})
	if len(got) != 3 {
		t.Fatalf("Search returned %d entries, want 3", len(got))
	}
	if got[0].Message != "third" || got[2].Message != "first" {
		t.Errorf("order wrong: %q .. %q", got[0].Message, got[2].Message)
	}
}

func TestStore_SearchPaging(t *testing.T) {
	s := New(10, nil, nil)
	for i := 0; i < 5; i++ {
		s.Record(datatypes.LogLevelInfo, "entry", datatypes.EntryContext{})
	}
	page := s.Search(datatypes.SearchFilter{Limit: 2, Offset: 2})
	if len(page) != 2 {
		t.Errorf("paged search returned %d, want 2", len(page))
	}
}

func TestStore_Eviction(t *testing.T) {
	s := New(3, nil, nil)
	for _, msg := range []string{"a", "b", "c", "d"} {
		s.Record(datatypes.LogLevelInfo, msg, datatypes.EntryContext{})
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	got := s.Search(datatypes.SearchFilter{})
	for _, e := range got {
		if e.Message == "a" {
			t.Error("oldest entry survived eviction")
		}
	}
}

func TestStore_Cleanup(t *testing.T) {
	s := New(10, nil, nil)
	s.Record(datatypes.LogLevelInfo, "old", datatypes.EntryContext{})
	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	s.Record(datatypes.LogLevelInfo, "new", datatypes.EntryContext{})

	removed := s.Cleanup(cutoff)
	if removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len after cleanup = %d, want 1", s.Len())
	}
}

func TestStore_Hooks(t *testing.T) {
	s := New(10, nil, nil)

	var seen []string
	s.AddHook(func(e datatypes.LogEntry) {
		seen = append(seen, e.Message)
	})
	s.AddHook(func(e datatypes.LogEntry) {
		panic("bad hook")
	})

	// The panicking hook must not break recording.
	s.Record(datatypes.LogLevelWarn, "observed", datatypes.EntryContext{})

	if len(seen) != 1 || seen[0] != "observed" {
		t.Errorf("hook saw %v, want [observed]", seen)
	}
	if s.Len() != 1 {
		t.Errorf("entry lost, Len = %d", s.Len())
	}
}

func TestStore_Tags(t *testing.T) {
	s := New(10, nil, nil)
	s.Record(datatypes.LogLevelHTTP, "slow req", datatypes.EntryContext{DurationMs: 2500, StatusCode: 503})

	got := s.Search(datatypes.SearchFilter{Tags: []string{"slow", "server-error"}})
	if len(got) != 1 {
		t.Fatalf("tag search returned %d, want 1", len(got))
	}
	if got := s.Search(datatypes.SearchFilter{Tags: []string{"client-error"}}); len(got) != 0 {
		t.Errorf("wrong tag matched, got %d", len(got))
	}
}

func TestStore_Analytics(t *testing.T) {
	s := New(100, nil, nil)
	for i := 0; i < 3; i++ {
		s.Record(datatypes.LogLevelError, "timeout after 30s", datatypes.EntryContext{Module: "db"})
	}
	s.Record(datatypes.LogLevelError, "disk full", datatypes.EntryContext{Module: "fs"})
	for i := 0; i < 6; i++ {
		s.Record(datatypes.LogLevelInfo, "ok", datatypes.EntryContext{Module: "db"})
	}

	a := s.Analytics(time.Hour, 10)
	if a.Total != 10 {
		t.Fatalf("Total = %d, want 10", a.Total)
	}
	if a.ErrorRate != 0.4 {
		t.Errorf("ErrorRate = %v, want 0.4", a.ErrorRate)
	}
	if len(a.TopErrors) != 2 {
		t.Fatalf("TopErrors len = %d, want 2", len(a.TopErrors))
	}
	if a.TopErrors[0].Count != 3 {
		t.Errorf("top error count = %d, want 3", a.TopErrors[0].Count)
	}
	if a.TopModules[0].Module != "db" || a.TopModules[0].Count != 9 {
		t.Errorf("top module = %+v", a.TopModules[0])
	}
}
