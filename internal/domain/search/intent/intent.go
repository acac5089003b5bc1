// Package intent classifies search queries into coarse intents used to steer
// reranking prompts and source-type priority.
package intent

import "regexp"

// Intent is a coarse query intent.
type Intent string

// Known intents.
const (
	// General is the default when no pattern matches.
	General Intent = "general"
	// RoleLookup is a "who holds role X" style query.
	RoleLookup Intent = "role_lookup"
	// HowTo is an instructional query.
	HowTo Intent = "how_to"
	// Definition is a "what is X" style query.
	Definition Intent = "definition"
)

var (
	rolePattern = regexp.MustCompile(
		`(?i)\b(who\s+(is|are|was|leads|heads|runs|holds)|current)\b.*` +
			`\b(ceo|cto|cfo|coo|chair(man|woman|person)?|president|director|head|lead(er)?|manager|officer|founder)\b`)
	roleOnlyPattern = regexp.MustCompile(
		`(?i)^(ceo|cto|cfo|coo|chairman|president|director)\s+of\b`)
	howToPattern = regexp.MustCompile(`(?i)^(how\s+(to|do|can|does)|steps\s+to|guide\s+(to|for))\b`)
	defPattern   = regexp.MustCompile(`(?i)^(what\s+(is|are)|define|definition\s+of|meaning\s+of)\b`)
)

// Detect classifies a normalized query.
func Detect(query string) Intent {
	switch {
	case rolePattern.MatchString(query), roleOnlyPattern.MatchString(query):
		return RoleLookup
	case howToPattern.MatchString(query):
		return HowTo
	case defPattern.MatchString(query):
		return Definition
	default:
		return General
	}
}

// SourcePriority returns the default source-type preference order for the
// intent. Types not in the list rank after all listed ones, and priority is
// only ever used as a tie-break among equal hybrid scores.
func (i Intent) SourcePriority() []string {
	switch i {
	case RoleLookup:
		return []string{"profile", "page", "post"}
	case HowTo, Definition:
		return []string{"page", "post", "profile"}
	default:
		return []string{"post", "page", "profile"}
	}
}
