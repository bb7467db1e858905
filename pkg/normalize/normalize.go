// Package normalize rewrites variable fragments of log messages into type
// tokens so that messages differing only in timestamps, identifiers or
// numbers aggregate under one pattern.
//
// The same pipeline exists as the ClickHouse user-defined function
// normalizeLogMessage (see migrations/clickhouse); the two must agree
// bit-for-bit because aggregation happens on the store-side materialized
// column while tests and the in-memory backend use this implementation.
package normalize

import "regexp"

// Replacement order is significant: composite patterns (timestamps, UUIDs,
// addresses, URLs) must be consumed before the generic hex and number rules
// can eat their digit runs.
var rules = []struct {
	re    *regexp.Regexp
	token string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "<TIMESTAMP>"},
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "<UUID>"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "<IP>"},
	{regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`), "<IPv6>"},
	{regexp.MustCompile(`\b(?:[0-9a-fA-F]*[0-9][0-9a-fA-F]*[a-fA-F]|[0-9a-fA-F]*[a-fA-F][0-9a-fA-F]*[0-9])[0-9a-fA-F]{6,}\b|\b0[xX][0-9a-fA-F]+\b`), "<HEX>"},
	{regexp.MustCompile(`\bhttps?://[^\s"']+`), "<URL>"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "<EMAIL>"},
	{regexp.MustCompile(`(?:/[A-Za-z0-9._-]+){2,}/?`), "<PATH>"},
	{regexp.MustCompile(`\b\d+\.\d+\b`), "<NUM>"},
	{regexp.MustCompile(`\b\d+\b`), "<NUM>"},
}

// Message normalizes a log message. The function is deterministic and
// idempotent: a message consisting only of tokens and fixed text maps to
// itself.
func Message(msg string) string {
	for _, r := range rules {
		msg = r.re.ReplaceAllString(msg, r.token)
	}
	return msg
}
