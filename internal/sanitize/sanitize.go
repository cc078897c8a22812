// Package sanitize strips common injection vectors from free-text input.
//
// This is a best-effort blocklist, not a parser-based sanitizer: it does
// not guarantee XSS immunity against encoded or obfuscated payloads.
// Output encoding at render time remains the template layer's job.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	jsProtocolRe   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	angleBracketRe = regexp.MustCompile(`[<>]`)
)

// CleanString trims whitespace and removes script blocks, javascript:
// URI prefixes, inline on*= event handlers and literal angle brackets.
// Removal can splice new removable content together ("java<>script:"),
// so passes repeat until a fixpoint is reached. Idempotent.
func CleanString(s string) string {
	for {
		next := strings.TrimSpace(s)
		next = scriptBlockRe.ReplaceAllString(next, "")
		next = jsProtocolRe.ReplaceAllString(next, "")
		next = eventHandlerRe.ReplaceAllString(next, "")
		next = angleBracketRe.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

// Clean sanitizes string values and passes every other type through
// unchanged.
func Clean(v any) any {
	if s, ok := v.(string); ok {
		return CleanString(s)
	}
	return v
}

// Suspicious reports whether the input contains markers commonly seen
// in injection attempts. Used to tag audit entries, never to reject.
func Suspicious(s string) bool {
	lowered := strings.ToLower(s)
	markers := []string{"<", ">", "${", "script", "onerror", "onload", "javascript:"}
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}
