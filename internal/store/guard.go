package store

import (
	"fmt"
	"strings"
)

// GuardViolationError marks a statement the read-only guard refused to
// dispatch. It is terminal for the request and never rewritten into a safe
// variant.
type GuardViolationError struct {
	Reason string
}

func (e *GuardViolationError) Error() string {
	return fmt.Sprintf("read-only guard rejected statement: %s", e.Reason)
}

// mutationKeywords are rejected anywhere outside string literals, not just
// in leading position: Postgres allows data-modifying CTEs such as
// WITH x AS (DELETE ...), and SELECT ... INTO creates a table despite its
// select statement kind. All of these are reserved words, so a bare token
// match cannot collide with identifiers.
var mutationKeywords = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"alter":    {},
	"create":   {},
	"truncate": {},
	"grant":    {},
	"revoke":   {},
	"copy":     {},
	"merge":    {},
	"call":     {},
	"vacuum":   {},
	"reindex":  {},
	"into":     {},
}

// Guard validates that sqlText is a single read-only SELECT/WITH statement
// and returns it normalized (trailing semicolons stripped). Anything else
// yields a GuardViolationError.
func Guard(sqlText string) (string, error) {
	normalized := stripTrailingSemicolons(sqlText)
	if normalized == "" {
		return "", &GuardViolationError{Reason: "empty statement"}
	}

	tokens := tokenize(normalized)
	if len(tokens) == 0 {
		return "", &GuardViolationError{Reason: "empty statement"}
	}
	switch tokens[0] {
	case "select", "with":
	default:
		return "", &GuardViolationError{Reason: fmt.Sprintf("statement kind %q is not a read-only query", tokens[0])}
	}
	if containsBareSemicolon(normalized) {
		return "", &GuardViolationError{Reason: "multiple statements are not allowed"}
	}
	for _, token := range tokens {
		if _, ok := mutationKeywords[token]; ok {
			return "", &GuardViolationError{Reason: fmt.Sprintf("mutating keyword %q is not allowed", token)}
		}
	}
	return normalized, nil
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// tokenize lowercases identifier-like runs outside single-quoted string
// literals. 'O''Brien' style escapes are handled by the quote toggle: the
// doubled quote re-enters and exits the literal without leaking content.
func tokenize(sqlText string) []string {
	var tokens []string
	var current strings.Builder
	inString := false
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	for _, r := range sqlText {
		if r == '\'' {
			inString = !inString
			flush()
			continue
		}
		if inString {
			continue
		}
		if isWordRune(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func containsBareSemicolon(sqlText string) bool {
	inString := false
	for _, r := range sqlText {
		if r == '\'' {
			inString = !inString
			continue
		}
		if r == ';' && !inString {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	default:
		return false
	}
}
