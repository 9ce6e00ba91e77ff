// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "testing"

func TestValidateMetricName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "response_time", false},
		{"namespaced", "db.query_time", false},
		{"digits", "cpu_usage_p99", false},
		{"empty", "", true},
		{"uppercase", "ResponseTime", true},
		{"leading digit", "99th_percentile", true},
		{"spaces", "response time", true},
		{"too long", "a2345678901234567890123456789012345678901234567890123456789012345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetricName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMetricName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "database-errors", false},
		{"underscores", "slow_query_alert", false},
		{"mixed case", "CriticalErrors", false},
		{"empty", "", true},
		{"leading hyphen", "-bad", true},
		{"slash", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIP(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"ipv4", "192.168.1.10", "192.168.1.10", false},
		{"ipv4 padded", "  10.0.0.1 ", "10.0.0.1", false},
		{"ipv6", "::1", "::1", false},
		{"hostname", "example.com", "", true},
		{"empty", "", "", true},
		{"garbage", "999.999.1.1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateIP(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateIP(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateIP(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateRegex(t *testing.T) {
	if _, err := ValidateRegex(`timeout.*exceeded`); err != nil {
		t.Errorf("valid regex rejected: %v", err)
	}
	if _, err := ValidateRegex(`([unclosed`); err == nil {
		t.Error("invalid regex accepted")
	}
	if _, err := ValidateRegex(""); err == nil {
		t.Error("empty expression accepted")
	}
}
