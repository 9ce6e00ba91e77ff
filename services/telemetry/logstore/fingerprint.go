// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"regexp"
	"strings"
)

// maxFingerprintLen bounds the normalized message portion of a
// fingerprint. Long messages differ in their tails far more often than
// their heads, so truncation rarely merges unrelated groups.
const maxFingerprintLen = 100

var (
	// uuidRe must run before digitRe or the hex groups collapse wrong.
	uuidRe  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	digitRe = regexp.MustCompile(`\d+`)
)

// Fingerprint derives the grouping key for a log message.
//
// # Description
//
// Variable data is normalized so messages differing only in embedded
// identifiers collapse to one group: UUID-shaped substrings become
// "<uuid>", email-shaped substrings become "<email>", digit runs become
// "<n>". The result is lower-cased, truncated, and prefixed with the
// producing module ("app" when unknown).
//
// # Examples
//
//	Fingerprint("orders", "User 42 logged in")  == "orders:user <n> logged in"
//	Fingerprint("orders", "User 99 logged in")  == "orders:user <n> logged in"
func Fingerprint(module, message string) string {
	norm := uuidRe.ReplaceAllString(message, "<uuid>")
	norm = emailRe.ReplaceAllString(norm, "<email>")
	norm = digitRe.ReplaceAllString(norm, "<n>")
	norm = strings.ToLower(strings.TrimSpace(norm))
	if len(norm) > maxFingerprintLen {
		norm = norm[:maxFingerprintLen]
	}
	if module == "" {
		module = "app"
	}
	return strings.ToLower(module) + ":" + norm
}
