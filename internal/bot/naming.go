package bot

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// passthroughPrefixes are command families mirai-api-http does not camel-case
var passthroughPrefixes = []string{"anno", "resp"}

// ToWire converts a snake_case name to mirai's lowerCamelCase. The first
// word is lowercased and later words are title-cased. Names without
// underscores only get their first letter lowercased, so names already in
// wire form are left alone.
func ToWire(name string) string {
	lower := strings.ToLower(name)
	for _, p := range passthroughPrefixes {
		if strings.HasPrefix(lower, p) {
			return name
		}
	}

	if !strings.Contains(name, "_") {
		r, size := utf8.DecodeRuneInString(name)
		if r == utf8.RuneError {
			return name
		}
		return string(unicode.ToLower(r)) + name[size:]
	}

	parts := strings.Split(name, "_")
	var sb strings.Builder
	sb.Grow(len(name))
	sb.WriteString(strings.ToLower(parts[0]))
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		sb.WriteRune(unicode.ToUpper(r))
		sb.WriteString(strings.ToLower(part[size:]))
	}
	return sb.String()
}

// wireContent renames the top-level keys of content. Values are sent as-is.
func wireContent(content map[string]any) map[string]any {
	out := make(map[string]any, len(content))
	for k, v := range content {
		out[ToWire(k)] = v
	}
	return out
}
