package query

import (
	"fmt"
	"regexp"
	"strings"
)

// DeclaredQuery is a query string supplied by the repository author, either
// in the persistence-unit query language or as a native SQL statement.
type DeclaredQuery struct {
	query  string
	native bool
}

// NewJpqlQuery wraps an entity-language query string.
func NewJpqlQuery(query string) DeclaredQuery {
	return DeclaredQuery{query: query}
}

// NewNativeQuery wraps a native SQL query string.
func NewNativeQuery(query string) DeclaredQuery {
	return DeclaredQuery{query: query, native: true}
}

func (q DeclaredQuery) QueryString() string { return q.query }
func (q DeclaredQuery) IsNative() bool      { return q.native }

// Rewrite returns a query with new text keeping the native flag.
func (q DeclaredQuery) Rewrite(newQuery string) DeclaredQuery {
	return DeclaredQuery{query: newQuery, native: q.native}
}

// PreprocessedQuery is a declared query whose parameter placeholders have
// been parsed into bindings and normalized in the query text.
type PreprocessedQuery struct {
	Declared                DeclaredQuery
	Bindings                []ParameterBinding
	UsesJdbcStyleParameters bool
}

// Preprocess parses the declared query's parameter bindings.
func Preprocess(declared DeclaredQuery) (PreprocessedQuery, error) {
	var bindings []ParameterBinding
	var meta ParseMetadata

	parsed, err := ParseBindings(declared.QueryString(), &bindings, &meta)
	if err != nil {
		return PreprocessedQuery{}, err
	}

	return PreprocessedQuery{
		Declared:                declared.Rewrite(parsed),
		Bindings:                bindings,
		UsesJdbcStyleParameters: meta.UsesJdbcStyleParameters,
	}, nil
}

// QueryString returns the normalized query text.
func (q PreprocessedQuery) QueryString() string { return q.Declared.QueryString() }

// HasExpressionBindings reports whether any binding is fed by a value
// expression instead of a method argument.
func (q PreprocessedQuery) HasExpressionBindings() bool {
	return HasExpressionBinding(q.Bindings)
}

// RewriteText derives a new query (a count or sorted variant) that keeps the
// already parsed bindings. The rewritten text must address the same
// parameters, so re-parsing would only discard the wildcard information the
// original parse consumed.
func (q PreprocessedQuery) RewriteText(newQuery string) PreprocessedQuery {
	return PreprocessedQuery{
		Declared:                q.Declared.Rewrite(newQuery),
		Bindings:                q.Bindings,
		UsesJdbcStyleParameters: q.UsesJdbcStyleParameters,
	}
}

var (
	// countMatch decomposes a select statement into select clause, distinct
	// marker, projection, from clause, alias and remainder.
	countMatch = regexp.MustCompile(`(?is)^\s*(select\s+((distinct)?(.+?)?)\s+)?(from\s+[\w.$]+(?:\s+as)?\s*)([\w.$]+)(.*)$`)

	orderByPart = regexp.MustCompile(`(?is)\s+order\s+by\s+.*`)

	orderByClause        = regexp.MustCompile(`(?i)(order\s+by\s+)`)
	orderByInSubselect   = regexp.MustCompile(`(?is)\([\s\S]*order\s+by\s[\s\S]*\)`)
	joinClause           = regexp.MustCompile(`(?i)join\s+(fetch\s+)?[\w.$]+\s+(as\s+)?([\w.$]+)`)
	constructorClause    = regexp.MustCompile(`(?is)select\s+(.*\s+)?new\s+[\w.$]+\s*\(.*\)`)
	startsWithParenthese = regexp.MustCompile(`^\s*\(`)
)

// DeriveCountQuery builds a count query for the given select query. A
// non-empty countProjection is used verbatim as the count argument; otherwise
// the projection is derived from the select clause. Any trailing ORDER BY
// clause is dropped since it cannot influence a single-row count.
func DeriveCountQuery(query string, native bool, countProjection string) string {
	m := countMatch.FindStringSubmatch(query)

	var countQuery string
	if countProjection != "" {
		countQuery = replaceWithCount(query, m, countProjection)
	} else {
		variable := ""
		if m != nil {
			variable = m[4]
		}
		useVariable := strings.TrimSpace(variable) != "" &&
			!strings.HasPrefix(variable, "new") &&
			!strings.HasPrefix(variable, " new") &&
			!strings.HasPrefix(variable, "count(") &&
			!strings.Contains(variable, ",")

		replacement := ""
		if m != nil {
			if useVariable {
				replacement = m[2]
			} else if m[3] != "" {
				replacement = m[3] + " " + m[6]
			} else {
				replacement = m[6]
			}
		}

		if native && (strings.Contains(variable, ",") || variable == "*") {
			replacement = "1"
		} else if variable == "*" {
			if alias := DetectAlias(query); alias != "" {
				replacement = alias
			}
		}

		countQuery = replaceWithCount(query, m, replacement)
	}

	return orderByPart.ReplaceAllString(countQuery, "")
}

func replaceWithCount(query string, m []string, projection string) string {
	if m == nil {
		return query
	}
	return "select count(" + projection + ") " + m[5] + m[6] + m[7]
}

// DetectAlias finds the root alias of the query's outermost FROM clause,
// ignoring any subselects. Returns the last alias when the query contains
// several FROM clauses at the top level, matching how assembled queries put
// the primary selection last. Empty when no alias can be found.
func DetectAlias(query string) string {
	cleaned := removeSubqueries(query)

	alias := ""
	words := splitQueryWords(cleaned)
	for i := 0; i+1 < len(words); i++ {
		if !strings.EqualFold(words[i].text, "from") {
			continue
		}
		j := i + 1
		// words[j] is the entity name; the alias follows, optionally
		// separated by AS.
		j++
		if j < len(words) && strings.EqualFold(words[j].text, "as") {
			j++
		}
		if j >= len(words) {
			continue
		}
		candidate := words[j].text
		if isReservedAfterAlias(strings.ToLower(candidate), words, j) {
			continue
		}
		if !isPlainWord(candidate) {
			continue
		}
		alias = candidate
	}
	return alias
}

func isReservedAfterAlias(candidate string, words []queryWord, at int) bool {
	switch candidate {
	case "where":
		return true
	case "group", "order":
		return at+1 < len(words) && strings.EqualFold(words[at+1].text, "by")
	}
	return false
}

type queryWord struct {
	text string
	pos  int
}

func splitQueryWords(query string) []queryWord {
	var words []queryWord
	start := -1
	for i := 0; i <= len(query); i++ {
		boundary := i == len(query) || query[i] == ' ' || query[i] == '\t' || query[i] == '\n' || query[i] == '\r' || query[i] == ','
		if boundary {
			if start >= 0 {
				words = append(words, queryWord{text: query[start:i], pos: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return words
}

func isPlainWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

// removeSubqueries blanks out parenthesized regions so alias detection only
// sees the outermost statement. When the entire query is wrapped in
// parentheses the outermost pair stays.
func removeSubqueries(query string) string {
	buf := []byte(query)
	keepOutermost := startsWithParenthese.MatchString(query)

	depth := 0
	preserved := false
	for i := 0; i < len(buf); i++ {
		switch buf[i] {
		case '(':
			depth++
			if depth == 1 && keepOutermost && strings.TrimSpace(query[:i]) == "" {
				preserved = true
				continue
			}
			buf[i] = ' '
		case ')':
			if depth > 0 {
				depth--
			}
			if depth == 0 && preserved {
				preserved = false
				continue
			}
			buf[i] = ' '
		default:
			if depth > 1 || (depth == 1 && !preserved) {
				buf[i] = ' '
			}
		}
	}
	return string(buf)
}

// HasConstructorExpression reports whether the query selects through a
// constructor expression, which rules out deriving a count projection from
// the select clause.
func HasConstructorExpression(query string) bool {
	return constructorClause.MatchString(query)
}

// hasOrderByAtTopLevel reports whether the query already carries an ORDER BY
// clause outside of any subselect or window function.
func hasOrderByAtTopLevel(query string) bool {
	total := len(orderByClause.FindAllString(query, -1))
	nested := len(orderByInSubselect.FindAllString(query, -1))
	return total > nested
}

// ApplySorting appends the given sort to the query, reusing an existing
// ORDER BY clause when present. Sort properties are validated against a
// conservative character set so assembled queries never smuggle arbitrary
// text into the statement.
func ApplySorting(query string, sort Sort) (string, error) {
	return ApplySortingWithAlias(query, sort, DetectAlias(query))
}

// ApplySortingWithAlias is ApplySorting with a pre-detected root alias.
func ApplySortingWithAlias(query string, sort Sort, alias string) (string, error) {
	if !sort.IsSorted() {
		return query, nil
	}

	joinAliases := detectJoinAliases(query)

	var sb strings.Builder
	sb.WriteString(query)
	if hasOrderByAtTopLevel(query) {
		sb.WriteString(", ")
	} else {
		sb.WriteString(" order by ")
	}

	for i, order := range sort.Orders() {
		clause, err := orderClause(order, alias, joinAliases)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(clause)
	}
	return sb.String(), nil
}

func orderClause(order Order, alias string, joinAliases []string) (string, error) {
	property := order.Property
	if !isSafeSortExpression(property) {
		return "", fmt.Errorf(
			"sort expression %q must only contain property references or aliases used in the select clause", property)
	}

	qualify := !strings.Contains(property, "(") && alias != ""
	for _, joinAlias := range joinAliases {
		if strings.HasPrefix(property, joinAlias+".") {
			qualify = false
			break
		}
	}

	reference := property
	if qualify {
		reference = alias + "." + property
	}
	if order.IgnoreCase {
		reference = "lower(" + reference + ")"
	}

	direction := "asc"
	if order.Direction == Desc {
		direction = "desc"
	}
	return reference + " " + direction, nil
}

// isSafeSortExpression admits dotted property paths and simple function
// invocations over them.
func isSafeSortExpression(property string) bool {
	if strings.TrimSpace(property) == "" {
		return false
	}
	depth := 0
	for i := 0; i < len(property); i++ {
		c := property[i]
		switch {
		case isWordByte(c) || c == '.':
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return false
			}
		case c == ',' || c == ' ':
			if depth == 0 {
				return false
			}
		default:
			return false
		}
	}
	return depth == 0
}

func detectJoinAliases(query string) []string {
	var aliases []string
	for _, m := range joinClause.FindAllStringSubmatch(query, -1) {
		aliases = append(aliases, m[3])
	}
	return aliases
}
