// Package env expands ${env.NAME} references in configuration values.
package env

import (
	"os"
	"strings"
	"unicode"
)

const prefix = "${env."

// Expand replaces every ${env.NAME} with the value of NAME, or an empty string
// when unset. A reference with an illegal name or without a closing brace is
// kept literally.
func Expand(value string) string {
	if !strings.Contains(value, prefix) {
		return value
	}
	var b strings.Builder
	rest := value
	for {
		idx := strings.Index(rest, prefix)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:idx])
		rest = rest[idx+len(prefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(prefix)
			b.WriteString(rest)
			return b.String()
		}
		name := rest[:end]
		if !validName(name) {
			// keep scanning after the prefix so a nested reference still expands
			b.WriteString(prefix)
			continue
		}
		b.WriteString(os.Getenv(name))
		rest = rest[end+1:]
	}
}

func validName(name string) bool {
	for _, r := range name {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
