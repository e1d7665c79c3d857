package aot

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// NamedQuerySource resolves externally declared queries by name. The
// canonical implementation is backed by a properties-format resource
// file.
type NamedQuerySource interface {
	HasQuery(name string) bool
	Query(name string) (string, bool)
}

// NamedQueryText is a named query resolved through an Extractor.
type NamedQueryText struct {
	Query  string
	Native bool
}

// Extractor resolves provider-declared named queries, such as queries
// registered on entity definitions. The resultType hint narrows the
// lookup; "" requests an untyped lookup. Implementations return false
// when no query is registered under the name for that type.
type Extractor interface {
	Extract(name, resultType string) (NamedQueryText, bool)
}

// MapNamedQueries is an in-memory NamedQuerySource.
type MapNamedQueries map[string]string

func (m MapNamedQueries) HasQuery(name string) bool {
	_, ok := m[name]
	return ok
}

func (m MapNamedQueries) Query(name string) (string, bool) {
	q, ok := m[name]
	return q, ok
}

// Names returns the registered query names in sorted order.
func (m MapNamedQueries) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadNamedQueries reads a key=value properties file mapping query names
// to query text. Lines starting with # or ! are comments; a trailing
// backslash continues the value on the next line.
func LoadNamedQueries(path string) (MapNamedQueries, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading named queries from %s: %w", path, err)
	}
	queries, err := ParseNamedQueries(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing named queries from %s: %w", path, err)
	}
	return queries, nil
}

// ParseNamedQueries parses properties-format named query declarations.
func ParseNamedQueries(source string) (MapNamedQueries, error) {
	queries := MapNamedQueries{}

	lines := strings.Split(source, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			line = strings.TrimSuffix(line, "\\") + strings.TrimSpace(lines[i])
		}

		sep := strings.IndexAny(line, "=:")
		if sep < 1 {
			return nil, fmt.Errorf("malformed named query declaration %q", line)
		}

		name := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])
		if _, dup := queries[name]; dup {
			return nil, fmt.Errorf("duplicate named query %q", name)
		}
		queries[name] = value
	}

	return queries, nil
}

// noNamedQueries is the empty source used when no properties resource is
// configured.
type noNamedQueries struct{}

func (noNamedQueries) HasQuery(string) bool        { return false }
func (noNamedQueries) Query(string) (string, bool) { return "", false }

// NoNamedQueries returns a source that resolves nothing.
func NoNamedQueries() NamedQuerySource { return noNamedQueries{} }
