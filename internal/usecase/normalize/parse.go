package normalize

import (
	"encoding/json"
	"strings"
)

// maxRewriteLength is the sane ceiling for a rewritten query.
const maxRewriteLength = 300

// ParseResult is the outcome of validating model output: either a usable
// value or a malformed-output reason. It never holds both.
type ParseResult struct {
	value  string
	reason string
	ok     bool
}

// Ok creates a successful parse result.
func Ok(value string) ParseResult { return ParseResult{value: value, ok: true} }

// Malformed creates a failed parse result with a diagnostic reason.
func Malformed(reason string) ParseResult { return ParseResult{reason: reason} }

// OK reports whether the output was usable.
func (p ParseResult) OK() bool { return p.ok }

// Value returns the parsed value. Valid only when OK.
func (p ParseResult) Value() string { return p.value }

// Reason returns why the output was rejected. Valid only when not OK.
func (p ParseResult) Reason() string { return p.reason }

// ParseRewrite validates raw rewrite-model output. Accepted shape, after
// stripping markdown code fences: {"rewritten_query": "..."}. Everything
// else is malformed, including a rewrite that is itself fenced or JSON
// again (the malformed-echo failure mode).
func ParseRewrite(raw string) ParseResult {
	s := StripFences(strings.TrimSpace(raw))
	if s == "" {
		return Malformed("empty output")
	}

	var payload struct {
		RewrittenQuery string `json:"rewritten_query"`
	}
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return Malformed("not valid json")
	}

	q := strings.TrimSpace(payload.RewrittenQuery)
	if q == "" {
		return Malformed("missing rewritten_query")
	}
	if len(q) > maxRewriteLength {
		return Malformed("rewritten query too long")
	}
	if strings.HasPrefix(q, "```") || (strings.HasPrefix(q, "{") && strings.HasSuffix(q, "}")) {
		return Malformed("rewritten query is itself fenced or json")
	}
	return Ok(q)
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
