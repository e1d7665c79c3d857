package generator

import (
	"strings"
	"unicode"
)

var commonInitialisms = map[string]struct{}{
	"API":  {},
	"DB":   {},
	"HTML": {},
	"HTTP": {},
	"ID":   {},
	"JSON": {},
	"SQL":  {},
	"UID":  {},
	"URI":  {},
	"URL":  {},
	"UUID": {},
	"XML":  {},
}

// lowerCamel normalizes an exported Go field name to the attribute
// naming the query layer expects: the leading segment is lowercased and
// known initialisms stay a unit, so "UserID" becomes "userID".
func lowerCamel(name string) string {
	if name == "" {
		return ""
	}
	snake := strings.ReplaceAll(toSnakeCase(name), "-", "_")
	var b strings.Builder
	first := true
	for _, part := range strings.Split(snake, "_") {
		if part == "" {
			continue
		}
		upper := strings.ToUpper(part)
		switch {
		case first:
			b.WriteString(strings.ToLower(part))
			first = false
		default:
			if _, ok := commonInitialisms[upper]; ok {
				b.WriteString(upper)
			} else {
				b.WriteString(capitalizeSegment(part))
			}
		}
	}
	return b.String()
}

func capitalizeSegment(segment string) string {
	if segment == "" {
		return segment
	}
	runes := []rune(strings.ToLower(segment))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func toSnakeCase(in string) string {
	if in == "" {
		return in
	}
	runes := []rune(in)
	out := make([]rune, 0, len(runes)*2)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				out = append(out, '_')
			}
			out = append(out, unicode.ToLower(r))
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
