// Package normalize provides helper functions for consistent string normalization
// across the application. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls so that enrollment, login and audit records agree
// on the canonical form of a value.
package normalize

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Email normalizes an email address by trimming whitespace and converting to lowercase.
// This is the canonical form used for the profile key and for attempt records.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name normalizes a display name by trimming and collapsing internal whitespace.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Mobile keeps a leading '+' and the digits of a phone number, dropping
// spaces, dashes, dots and parentheses.
func Mobile(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format derives a lowercase audio format from an uploaded filename or a
// MIME content type. The filename extension wins when present. Codec
// parameters ("audio/webm;codecs=opus") are ignored.
func Format(filename, contentType string) string {
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if i := strings.IndexByte(ct, '/'); i >= 0 {
		ct = ct[i+1:]
	}
	switch ct {
	case "x-wav", "wave", "vnd.wave":
		return "wav"
	case "mpeg":
		return "mp3"
	case "x-m4a":
		return "m4a"
	}
	return ct
}

// QueryParam normalizes a query parameter by trimming whitespace.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
