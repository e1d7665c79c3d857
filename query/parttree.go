package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// PartType identifies the comparison operator a predicate part expresses.
type PartType int

const (
	SimpleProperty PartType = iota
	NegatingSimpleProperty
	Between
	IsNotNull
	IsNull
	LessThan
	LessThanEqual
	GreaterThan
	GreaterThanEqual
	Before
	After
	NotLike
	Like
	StartingWith
	EndingWith
	NotContaining
	Containing
	NotIn
	In
	True
	False
	IsNotEmpty
	IsEmpty
)

// partKeyword associates a method-name suffix with a PartType. Keywords are
// matched longest-first so e.g. NotLike wins over Like.
type partKeyword struct {
	keyword string
	typ     PartType
}

var partKeywords = []partKeyword{
	{"IsNotNull", IsNotNull},
	{"NotNull", IsNotNull},
	{"IsNull", IsNull},
	{"Null", IsNull},
	{"IsNotEmpty", IsNotEmpty},
	{"NotEmpty", IsNotEmpty},
	{"IsEmpty", IsEmpty},
	{"Empty", IsEmpty},
	{"IsBetween", Between},
	{"Between", Between},
	{"IsLessThanEqual", LessThanEqual},
	{"LessThanEqual", LessThanEqual},
	{"IsLessThan", LessThan},
	{"LessThan", LessThan},
	{"IsGreaterThanEqual", GreaterThanEqual},
	{"GreaterThanEqual", GreaterThanEqual},
	{"IsGreaterThan", GreaterThan},
	{"GreaterThan", GreaterThan},
	{"IsBefore", Before},
	{"Before", Before},
	{"IsAfter", After},
	{"After", After},
	{"IsNotLike", NotLike},
	{"NotLike", NotLike},
	{"IsLike", Like},
	{"Like", Like},
	{"IsStartingWith", StartingWith},
	{"StartingWith", StartingWith},
	{"StartsWith", StartingWith},
	{"IsEndingWith", EndingWith},
	{"EndingWith", EndingWith},
	{"EndsWith", EndingWith},
	{"IsNotContaining", NotContaining},
	{"NotContaining", NotContaining},
	{"NotContains", NotContaining},
	{"IsContaining", Containing},
	{"Containing", Containing},
	{"Contains", Containing},
	{"IsNotIn", NotIn},
	{"NotIn", NotIn},
	{"IsIn", In},
	{"In", In},
	{"IsTrue", True},
	{"True", True},
	{"IsFalse", False},
	{"False", False},
	{"IsNot", NegatingSimpleProperty},
	{"Not", NegatingSimpleProperty},
	{"Is", SimpleProperty},
	{"Equals", SimpleProperty},
}

// NumberOfArguments returns how many method arguments the operator consumes.
func (t PartType) NumberOfArguments() int {
	switch t {
	case Between:
		return 2
	case IsNull, IsNotNull, True, False, IsEmpty, IsNotEmpty:
		return 0
	default:
		return 1
	}
}

// IsLikeType reports whether the operator expands its argument into a LIKE
// pattern.
func (t PartType) IsLikeType() bool {
	switch t {
	case Like, NotLike, StartingWith, EndingWith, Containing, NotContaining:
		return true
	}
	return false
}

// IgnoreCaseKind controls case folding of a single predicate part.
type IgnoreCaseKind int

const (
	IgnoreCaseNever IgnoreCaseKind = iota
	IgnoreCaseWhenPossible
	IgnoreCaseAlways
)

// Part is a single predicate against one property path.
type Part struct {
	Property   string
	Type       PartType
	IgnoreCase IgnoreCaseKind
}

// Tree is the predicate tree parsed from a derivation-style method name: an
// ordered OR-sequence of AND-groups plus the subject flags and static order.
// Immutable after parse.
type Tree struct {
	Distinct   bool
	Count      bool
	Exists     bool
	Delete     bool
	MaxResults int

	groups [][]Part
	orders []Order
}

// Groups returns the OR-groups, each an AND-ed sequence of parts.
func (t *Tree) Groups() [][]Part { return t.groups }

// Sort returns the static sort derived from the trailing OrderBy clause.
func (t *Tree) Sort() Sort { return Sort{orders: t.orders} }

// ResultLimit returns the limit derived from a Top/First subject keyword.
func (t *Tree) ResultLimit() Limit {
	if t.MaxResults > 0 {
		return LimitOf(t.MaxResults)
	}
	return Unlimited()
}

// Parts iterates all parts in group order.
func (t *Tree) Parts() []Part {
	var all []Part
	for _, group := range t.groups {
		all = append(all, group...)
	}
	return all
}

var subjectPrefixes = []string{"findAll", "find", "readAll", "read", "getAll", "get", "queryAll", "query", "searchAll", "search", "streamAll", "stream"}

// ParseTree parses a derivation-style method name into a predicate tree.
func ParseTree(method string) (*Tree, error) {
	if method == "" {
		return nil, fmt.Errorf("method name must not be empty")
	}

	tree := &Tree{}
	subject, predicate, ok := splitSubject(method, tree)
	if !ok {
		return nil, fmt.Errorf("cannot derive query for method %q: missing By separator", method)
	}
	if err := parseSubject(subject, tree); err != nil {
		return nil, fmt.Errorf("cannot derive query for method %q: %w", method, err)
	}
	if err := parsePredicate(predicate, tree); err != nil {
		return nil, fmt.Errorf("cannot derive query for method %q: %w", method, err)
	}
	return tree, nil
}

// splitSubject strips the verb prefix and splits the name at the first By
// keyword. It also classifies count/exists/delete subjects.
func splitSubject(method string, tree *Tree) (subject, predicate string, ok bool) {
	rest := method
	switch {
	case strings.HasPrefix(method, "countBy") || strings.HasPrefix(method, "count"):
		tree.Count = true
		rest = strings.TrimPrefix(method, "count")
	case strings.HasPrefix(method, "existsBy") || strings.HasPrefix(method, "exists"):
		tree.Exists = true
		rest = strings.TrimPrefix(method, "exists")
	case strings.HasPrefix(method, "deleteBy") || strings.HasPrefix(method, "delete"):
		tree.Delete = true
		rest = strings.TrimPrefix(method, "delete")
	case strings.HasPrefix(method, "removeBy") || strings.HasPrefix(method, "remove"):
		tree.Delete = true
		rest = strings.TrimPrefix(method, "remove")
	default:
		for _, prefix := range subjectPrefixes {
			if strings.HasPrefix(method, prefix) {
				rest = strings.TrimPrefix(method, prefix)
				break
			}
		}
	}

	idx := indexOfKeyword(rest, "By")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len("By"):], true
}

// parseSubject handles the Distinct and Top/First limiting keywords between
// the verb and By.
func parseSubject(subject string, tree *Tree) error {
	rest := subject
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "Distinct"):
			tree.Distinct = true
			rest = strings.TrimPrefix(rest, "Distinct")
		case strings.HasPrefix(rest, "Top"), strings.HasPrefix(rest, "First"):
			if strings.HasPrefix(rest, "Top") {
				rest = strings.TrimPrefix(rest, "Top")
			} else {
				rest = strings.TrimPrefix(rest, "First")
			}
			digits := leadingDigits(rest)
			if digits == "" {
				tree.MaxResults = 1
				continue
			}
			max, err := strconv.Atoi(digits)
			if err != nil || max <= 0 {
				return fmt.Errorf("invalid result limit %q", digits)
			}
			tree.MaxResults = max
			rest = rest[len(digits):]
		default:
			// Remaining subject text (e.g. the entity name) carries no meaning.
			return nil
		}
	}
	return nil
}

func leadingDigits(s string) string {
	for i, r := range s {
		if !unicode.IsDigit(r) {
			return s[:i]
		}
	}
	return s
}

func parsePredicate(predicate string, tree *Tree) error {
	where, orderBy := predicate, ""
	if idx := indexOfKeyword(predicate, "OrderBy"); idx >= 0 {
		where, orderBy = predicate[:idx], predicate[idx+len("OrderBy"):]
	}

	allIgnoreCase := false
	for _, suffix := range []string{"AllIgnoreCase", "AllIgnoringCase"} {
		if strings.HasSuffix(where, suffix) {
			allIgnoreCase = true
			where = strings.TrimSuffix(where, suffix)
		}
	}

	if where != "" {
		for _, orPart := range splitKeyword(where, "Or") {
			var group []Part
			for _, andPart := range splitKeyword(orPart, "And") {
				part, err := parsePart(andPart, allIgnoreCase)
				if err != nil {
					return err
				}
				group = append(group, part)
			}
			tree.groups = append(tree.groups, group)
		}
	}

	if orderBy != "" {
		orders, err := parseOrderBy(orderBy)
		if err != nil {
			return err
		}
		tree.orders = orders
	}
	return nil
}

func parsePart(source string, allIgnoreCase bool) (Part, error) {
	if source == "" {
		return Part{}, fmt.Errorf("empty predicate part")
	}

	part := Part{Type: SimpleProperty}
	if allIgnoreCase {
		part.IgnoreCase = IgnoreCaseWhenPossible
	}

	for _, suffix := range []string{"IgnoringCase", "IgnoreCase"} {
		if strings.HasSuffix(source, suffix) {
			part.IgnoreCase = IgnoreCaseAlways
			source = strings.TrimSuffix(source, suffix)
		}
	}

	for _, candidate := range partKeywords {
		if strings.HasSuffix(source, candidate.keyword) && len(source) > len(candidate.keyword) {
			part.Type = candidate.typ
			source = strings.TrimSuffix(source, candidate.keyword)
			break
		}
	}

	property := propertyPath(source)
	if property == "" {
		return Part{}, fmt.Errorf("predicate part %q names no property", source)
	}
	part.Property = property
	return part, nil
}

func parseOrderBy(clause string) ([]Order, error) {
	var orders []Order
	rest := clause
	for rest != "" {
		// A direction keyword can never start the clause: a property must
		// precede it, so matches at offset zero are property text.
		ascIdx := indexOfKeywordAt(rest, "Asc", 1)
		descIdx := indexOfKeywordAt(rest, "Desc", 1)

		// Desc wins when both match at the same boundary ("...Desc" contains no "Asc").
		idx, dir, width := -1, Asc, 0
		if ascIdx >= 0 {
			idx, dir, width = ascIdx, Asc, len("Asc")
		}
		if descIdx >= 0 && (idx < 0 || descIdx < idx) {
			idx, dir, width = descIdx, Desc, len("Desc")
		}

		if idx < 0 {
			property := propertyPath(rest)
			if property == "" {
				return nil, fmt.Errorf("invalid OrderBy clause %q", clause)
			}
			orders = append(orders, Order{Property: property, Direction: Asc})
			break
		}

		property := propertyPath(rest[:idx])
		if property == "" {
			return nil, fmt.Errorf("invalid OrderBy clause %q", clause)
		}
		orders = append(orders, Order{Property: property, Direction: dir})
		rest = rest[idx+width:]
	}
	return orders, nil
}

// indexOfKeyword finds the first occurrence of the keyword at a camel-hump
// boundary: preceded by a lower-case letter or digit and followed by an
// upper-case letter (or nothing, for trailing keywords such as Asc/Desc).
func indexOfKeyword(s, keyword string) int {
	return indexOfKeywordAt(s, keyword, 0)
}

func indexOfKeywordAt(s, keyword string, min int) int {
	for i := min; i+len(keyword) <= len(s); i++ {
		if s[i:i+len(keyword)] != keyword {
			continue
		}
		if i > 0 {
			prev := rune(s[i-1])
			if !unicode.IsLower(prev) && !unicode.IsDigit(prev) {
				continue
			}
		}
		if next := i + len(keyword); next < len(s) {
			if !unicode.IsUpper(rune(s[next])) {
				continue
			}
		}
		return i
	}
	return -1
}

// splitKeyword splits s at every camel-hump occurrence of the keyword.
func splitKeyword(s, keyword string) []string {
	var parts []string
	rest := s
	for {
		idx := indexOfKeyword(rest, keyword)
		if idx < 0 {
			parts = append(parts, rest)
			return parts
		}
		parts = append(parts, rest[:idx])
		rest = rest[idx+len(keyword):]
	}
}

// propertyPath converts a camel-cased method-name segment into a dotted
// property path. An underscore forces an explicit path split:
// "Address_City" and "AddressCity" both yield "address.city" once resolved,
// but only the underscore form survives as an explicit traversal here.
func propertyPath(segment string) string {
	if segment == "" {
		return ""
	}
	pieces := strings.Split(segment, "_")
	for i, piece := range pieces {
		pieces[i] = uncapitalize(piece)
	}
	return strings.Join(pieces, ".")
}

func uncapitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
