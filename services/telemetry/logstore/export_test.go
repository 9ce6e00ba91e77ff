// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

func exportFixture(t *testing.T) *Store {
	t.Helper()
	s := New(10, nil, nil)
	s.Record(datatypes.LogLevelError, `value with "quotes", and comma`, datatypes.EntryContext{Module: "db"})
	s.Record(datatypes.LogLevelInfo, "plain entry", datatypes.EntryContext{Module: "api"})
	return s
}

func TestExport_JSON(t *testing.T) {
	s := exportFixture(t)
	var buf bytes.Buffer
	n, err := s.Export(&buf, datatypes.ExportJSON, datatypes.SearchFilter{})
	if err != nil {
		t.Fatalf("Export(json) error = %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d, want 2", n)
	}
	var decoded []datatypes.LogEntry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if decoded[0].Message != "plain entry" {
		t.Errorf("order wrong, first message = %q", decoded[0].Message)
	}
}

func TestExport_CSV(t *testing.T) {
	s := exportFixture(t)
	var buf bytes.Buffer
	if _, err := s.Export(&buf, datatypes.ExportCSV, datatypes.SearchFilter{}); err != nil {
		t.Fatalf("Export(csv) error = %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv line count = %d, want 3 (header + 2 rows)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,timestamp,level,message") {
		t.Errorf("header = %q", lines[0])
	}
	// encoding/csv doubles embedded quotes.
	if !strings.Contains(out, `""quotes""`) {
		t.Errorf("embedded quotes not doubled:\n%s", out)
	}
}

func TestExport_NDJSON(t *testing.T) {
	s := exportFixture(t)
	var buf bytes.Buffer
	if _, err := s.Export(&buf, datatypes.ExportNDJSON, datatypes.SearchFilter{}); err != nil {
		t.Fatalf("Export(ndjson) error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("ndjson line count = %d, want 2", len(lines))
	}
	for _, line := range lines {
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("line is not valid JSON: %v\n%s", err, line)
		}
		if _, ok := doc["@timestamp"]; !ok {
			t.Errorf("document missing @timestamp: %s", line)
		}
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	s := exportFixture(t)
	var buf bytes.Buffer
	if _, err := s.Export(&buf, "xml", datatypes.SearchFilter{}); err == nil {
		t.Error("unknown format accepted")
	}
}
