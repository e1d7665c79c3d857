// Package runtime executes compiled repository queries: it binds method
// arguments according to the recorded binding plan, applies LIKE
// wildcards and escaping, expands collection parameters, and converts
// the normalized placeholders to PostgreSQL positional form.
package runtime

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/veldran/aotq/query"
)

// Pageable requests one page of a paged method.
type Pageable struct {
	Page int
	Size int
	Sort query.Sort
}

// Offset returns the row offset of the requested page.
func (p Pageable) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return p.Page * p.Size
}

// Page is one page of results together with paging metadata.
type Page[T any] struct {
	Content       []T
	Number        int
	Size          int
	TotalElements int64
}

// TotalPages derives the page count from the total element count.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	pages := p.TotalElements / int64(p.Size)
	if p.TotalElements%int64(p.Size) != 0 {
		pages++
	}
	return int(pages)
}

// Args supplies the values a statement's bindings draw from.
type Args struct {
	// Positional holds method arguments in declaration order.
	Positional []any
	// Named holds method arguments addressable by parameter name.
	Named map[string]any
	// Expressions holds pre-evaluated value-expression results keyed by
	// expression text.
	Expressions map[string]any
}

// Statement is an executable SQL statement with pgx positional args.
type Statement struct {
	SQL  string
	Args []any
}

// Prepare converts a compiled query into an executable statement: every
// `?N` and `:name` placeholder becomes a `$k` parameter, LIKE bindings
// get their wildcards and escaping applied, and IN bindings expand their
// collection value into one parameter per element.
func Prepare(text string, bindings []query.ParameterBinding, args Args) (Statement, error) {
	return PrepareEscaped(text, bindings, args, query.DefaultEscapeCharacter)
}

// PrepareEscaped is Prepare with an explicit LIKE escape character.
func PrepareEscaped(text string, bindings []query.ParameterBinding, args Args, escape byte) (Statement, error) {
	stmt := Statement{}
	var out strings.Builder
	out.Grow(len(text))

	inQuote := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\'' {
			inQuote = !inQuote
			out.WriteByte(c)
			continue
		}
		if inQuote {
			out.WriteByte(c)
			continue
		}

		switch {
		case c == '?':
			digits := leadingDigits(text[i+1:])
			if digits == "" {
				return Statement{}, fmt.Errorf("unnumbered placeholder at offset %d in %q", i, text)
			}
			position, _ := strconv.Atoi(digits)
			binding, ok := bindingAt(bindings, query.Indexed(position))
			if !ok {
				return Statement{}, fmt.Errorf("no binding for parameter ?%d in %q", position, text)
			}
			if err := appendBinding(&out, &stmt, binding, args, escape); err != nil {
				return Statement{}, err
			}
			i += len(digits)
		case c == ':' && i+1 < len(text) && isIdentByte(text[i+1]) && (i == 0 || text[i-1] != ':'):
			name := leadingIdent(text[i+1:])
			binding, ok := bindingAt(bindings, query.Named(name))
			if !ok {
				return Statement{}, fmt.Errorf("no binding for parameter :%s in %q", name, text)
			}
			if err := appendBinding(&out, &stmt, binding, args, escape); err != nil {
				return Statement{}, err
			}
			i += len(name)
		default:
			out.WriteByte(c)
		}
	}

	stmt.SQL = out.String()
	return stmt, nil
}

func bindingAt(bindings []query.ParameterBinding, identifier query.BindingIdentifier) (query.ParameterBinding, bool) {
	probe := query.NewBinding(identifier, query.ParameterOrigin{})
	for _, binding := range bindings {
		if binding.BindsTo(probe) {
			return binding, true
		}
	}
	return query.ParameterBinding{}, false
}

func appendBinding(out *strings.Builder, stmt *Statement, binding query.ParameterBinding, args Args, escape byte) error {
	value, err := args.resolve(binding)
	if err != nil {
		return err
	}

	switch binding.Kind {
	case query.BindIn:
		elements, err := collectionElements(value)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", binding.Identifier, err)
		}
		out.WriteByte('(')
		for i, element := range elements {
			if i > 0 {
				out.WriteString(", ")
			}
			stmt.Args = append(stmt.Args, element)
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(len(stmt.Args)))
		}
		out.WriteByte(')')
	case query.BindLike:
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("parameter %s: LIKE binding needs a string, got %T", binding.Identifier, value)
		}
		stmt.Args = append(stmt.Args, ApplyMatch(binding.Match, text, escape))
		out.WriteByte('$')
		out.WriteString(strconv.Itoa(len(stmt.Args)))
	default:
		stmt.Args = append(stmt.Args, value)
		out.WriteByte('$')
		out.WriteString(strconv.Itoa(len(stmt.Args)))
	}
	return nil
}

func (a Args) resolve(binding query.ParameterBinding) (any, error) {
	origin := binding.Origin
	if origin.IsExpression() {
		key := origin.Expression().Expression()
		value, ok := a.Expressions[key]
		if !ok {
			return nil, fmt.Errorf("no value for expression %q", key)
		}
		return value, nil
	}

	identifier := origin.Argument()
	if identifier.HasName() {
		if value, ok := a.Named[identifier.Name()]; ok {
			return value, nil
		}
	}
	if identifier.HasPosition() {
		index := identifier.Position() - 1
		if index < 0 || index >= len(a.Positional) {
			return nil, fmt.Errorf("no argument at position %d", identifier.Position())
		}
		return a.Positional[index], nil
	}
	return nil, fmt.Errorf("binding %s resolves to no argument", binding.Identifier)
}

func collectionElements(value any) ([]any, error) {
	if elements, ok := value.([]any); ok {
		return elements, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("IN binding needs a slice, got %T", value)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// ApplyMatch decorates a LIKE argument with the wildcards its match mode
// requires, escaping wildcard characters in the raw value first.
func ApplyMatch(mode query.MatchMode, value string, escape byte) string {
	escaped := EscapeLike(value, escape)
	switch mode {
	case query.MatchStartingWith:
		return escaped + "%"
	case query.MatchEndingWith:
		return "%" + escaped
	case query.MatchContaining:
		return "%" + escaped + "%"
	default:
		return escaped
	}
}

// EscapeLike escapes LIKE wildcards and the escape character itself in a
// raw argument value.
func EscapeLike(value string, escape byte) string {
	var out strings.Builder
	out.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == escape || c == '%' || c == '_' {
			out.WriteByte(escape)
		}
		out.WriteByte(c)
	}
	return out.String()
}

// ApplyLimit appends a fetch limit to a prepared statement.
func ApplyLimit(sql string, limit query.Limit) string {
	if !limit.IsLimited() {
		return sql
	}
	return sql + " LIMIT " + strconv.Itoa(limit.Max())
}

// ApplyPageable appends limit and offset for one page.
func ApplyPageable(sql string, pageable Pageable) string {
	if pageable.Size <= 0 {
		return sql
	}
	sql += " LIMIT " + strconv.Itoa(pageable.Size)
	if offset := pageable.Offset(); offset > 0 {
		sql += " OFFSET " + strconv.Itoa(offset)
	}
	return sql
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func leadingIdent(s string) string {
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return s[:i]
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
