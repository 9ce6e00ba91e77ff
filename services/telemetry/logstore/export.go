// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// Export writes entries matching the filter to w in the given format.
//
// # Description
//
// JSON emits a single array. CSV emits a header row plus one row per
// entry with embedded quotes doubled. NDJSON emits one object per line
// in Elasticsearch bulk-document style. Entries are newest first, same
// order as Search.
//
// # Outputs
//
// Returns the number of entries written, or an error for an unknown
// format or a failing writer.
func (s *Store) Export(w io.Writer, format datatypes.ExportFormat, filter datatypes.SearchFilter) (int, error) {
	if filter.Limit <= 0 {
		filter.Limit = datatypes.MaxSearchLimit
	}
	entries := s.Search(filter)

	switch format {
	case datatypes.ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return 0, fmt.Errorf("encoding json export: %w", err)
		}
		return len(entries), nil

	case datatypes.ExportCSV:
		return exportCSV(w, entries)

	case datatypes.ExportNDJSON:
		enc := json.NewEncoder(w)
		for i := range entries {
			doc := map[string]any{
				"@timestamp":  entries[i].Timestamp.Format(time.RFC3339Nano),
				"level":       entries[i].Level,
				"message":     entries[i].Message,
				"fingerprint": entries[i].Fingerprint,
				"context":     entries[i].Context,
				"tags":        entries[i].Tags,
			}
			if err := enc.Encode(doc); err != nil {
				return i, fmt.Errorf("encoding ndjson export: %w", err)
			}
		}
		return len(entries), nil

	default:
		return 0, fmt.Errorf("unknown export format: %q", format)
	}
}

func exportCSV(w io.Writer, entries []datatypes.LogEntry) (int, error) {
	cw := csv.NewWriter(w)
	header := []string{"id", "timestamp", "level", "message", "module", "userId", "requestId", "endpoint", "statusCode", "durationMs", "fingerprint"}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		row := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339Nano),
			string(e.Level),
			e.Message,
			e.Context.Module,
			e.Context.UserID,
			e.Context.RequestID,
			e.Context.Endpoint,
			strconv.Itoa(e.Context.StatusCode),
			strconv.FormatFloat(e.Context.DurationMs, 'f', -1, 64),
			e.Fingerprint,
		}
		if err := cw.Write(row); err != nil {
			return i, fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv export: %w", err)
	}
	return len(entries), nil
}
