package contract

import (
	"fmt"
	"strings"
)

const bulletMarkers = "*-• "

// Lines turns a newline-delimited string into trimmed, bullet-stripped
// entries. Arrays are trimmed element-wise. Empty entries are dropped.
func Lines(v any) []string {
	return split(v, "\n", func(s string) string {
		return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), bulletMarkers))
	})
}

// List turns a comma-delimited string into trimmed entries. Arrays are
// trimmed element-wise. Empty entries are dropped.
func List(v any) []string {
	return split(v, ",", strings.TrimSpace)
}

func split(v any, sep string, clean func(string) string) []string {
	var parts []string
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		parts = strings.Split(t, sep)
	case []any:
		for _, e := range t {
			parts = append(parts, Text(e))
		}
	case []string:
		parts = t
	default:
		parts = []string{fmt.Sprint(t)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := clean(p); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Text renders a scalar or list field as one trimmed string; list entries are
// joined with newlines.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := Text(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(t)
	}
}
