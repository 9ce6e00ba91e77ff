// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for admin-facing telemetry APIs.
//
// This package contains validators for caller-provided identifiers that end
// up as map keys, file names, or notification targets. Validating them at
// the registration boundary keeps malformed input out of the pipeline and
// lets HTTP handlers report a 4xx synchronously.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// metricNamePattern matches valid metric names.
// Allows: lowercase letters, digits, underscores, dots (namespacing).
// Max length: 64 characters.
var metricNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)

// patternIDPattern matches valid pattern and check identifiers.
var patternIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]{0,63}$`)

// ValidateMetricName validates a metric name used as a series key.
//
// Valid names are 1-64 characters of lowercase letters, digits,
// underscores, and dots, starting with a letter (e.g. "response_time",
// "memory_usage", "db.query_time").
func ValidateMetricName(name string) error {
	if name == "" {
		return fmt.Errorf("metric name cannot be empty")
	}
	if !metricNamePattern.MatchString(name) {
		return fmt.Errorf("invalid metric name: %q (must be 1-64 lowercase alphanumeric chars, underscores, or dots)", name)
	}
	return nil
}

// ValidateIdentifier validates a pattern, check, or template identifier.
//
// Valid identifiers are 1-64 characters of letters, digits, underscores,
// and hyphens, starting with a letter.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !patternIDPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier: %q (must be 1-64 alphanumeric chars, underscores, or hyphens)", id)
	}
	return nil
}

// ValidateIP validates an IPv4 or IPv6 address used by block/unblock APIs.
//
// Returns the canonical string form if valid.
func ValidateIP(ip string) (string, error) {
	trimmed := strings.TrimSpace(ip)
	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return "", fmt.Errorf("invalid IP address: %q", ip)
	}
	return parsed.String(), nil
}

// ValidateRegex compiles a user-supplied pattern expression.
//
// Use this at pattern registration time so invalid expressions are
// rejected synchronously instead of failing silently during matching.
func ValidateRegex(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, fmt.Errorf("pattern expression cannot be empty")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern expression %q: %w", expr, err)
	}
	return re, nil
}
