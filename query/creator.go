package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolvedPath is a metamodel-validated property path in its canonical
// dotted form.
type ResolvedPath struct {
	Path         string
	IsString     bool
	IsCollection bool
}

// EntityModel is the metamodel view the query creator derives queries
// against.
type EntityModel interface {
	// EntityName returns the unqualified entity name used in FROM clauses.
	EntityName() string
	// ResolvePath validates a dotted property path against the entity's
	// attributes, descending into embedded and associated types.
	ResolvePath(path string) (ResolvedPath, error)
	// IDAttributes returns the identifier attribute names.
	IDAttributes() []string
	// AttributeNames returns all top-level attribute names.
	AttributeNames() []string
}

// DerivedQuery is a query derived from a predicate tree together with its
// positional bindings and execution flags. The result limit is carried as a
// value and never rendered into the query text so it composes with paging at
// execution-plan assembly time.
type DerivedQuery struct {
	Query    string
	Bindings []ParameterBinding
	Limit    Limit
	Delete   bool
	Exists   bool
}

// Creator derives query strings from a predicate tree. Each AND-group of the
// tree becomes a conjunction, groups are joined with OR, and every property
// path is validated against the entity model before it is rendered.
type Creator struct {
	Templates CaseTemplate
	Escape    rune

	tree     *Tree
	returned ReturnedType
	entity   EntityModel
}

func NewCreator(tree *Tree, returned ReturnedType, entity EntityModel) *Creator {
	return &Creator{
		Templates: UpperCase,
		Escape:    DefaultEscapeCharacter,
		tree:      tree,
		returned:  returned,
		entity:    entity,
	}
}

func (c *Creator) alias() string {
	name := c.entity.EntityName()
	return strings.ToLower(name[:1])
}

// CreateQuery derives the result query, appending the dynamic sort after the
// tree's static OrderBy clause so the static order stays primary.
func (c *Creator) CreateQuery(sort Sort) (DerivedQuery, error) {
	return c.build(c.tree.Count, sort)
}

// CreateCountQuery derives the matching count query: same predicate walk
// with a count projection, no ordering and no limit.
func (c *Creator) CreateCountQuery() (DerivedQuery, error) {
	return c.build(true, Unsorted())
}

func (c *Creator) build(count bool, sort Sort) (DerivedQuery, error) {
	binder := &partBinder{}

	where, err := c.wherePredicate(binder)
	if err != nil {
		return DerivedQuery{}, err
	}

	selection, err := c.selection(count)
	if err != nil {
		return DerivedQuery{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selection)
	sb.WriteString(" FROM ")
	sb.WriteString(c.entity.EntityName())
	sb.WriteString(" ")
	sb.WriteString(c.alias())
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if !count && !c.tree.Delete {
		orderBy, err := c.orderByClause(c.tree.Sort().And(sort))
		if err != nil {
			return DerivedQuery{}, err
		}
		sb.WriteString(orderBy)
	}

	derived := DerivedQuery{
		Query:    sb.String(),
		Bindings: binder.bindings,
		Delete:   c.tree.Delete,
		Exists:   c.tree.Exists,
	}
	if !count {
		derived.Limit = c.tree.ResultLimit()
	} else {
		derived.Limit = Unlimited()
	}
	return derived, nil
}

func (c *Creator) selection(count bool) (string, error) {
	alias := c.alias()

	if count {
		if c.tree.Distinct {
			return "COUNT(DISTINCT " + alias + ")", nil
		}
		return "COUNT(" + alias + ")", nil
	}

	var prefix string
	if c.tree.Distinct {
		prefix = "DISTINCT "
	}

	if c.tree.Delete {
		return alias, nil
	}

	if c.returned.NeedsCustomConstruction() {
		properties := c.returned.InputProperties
		if len(properties) == 0 {
			properties = c.entity.AttributeNames()
		}
		paths, err := c.qualifyAll(properties)
		if err != nil {
			return "", err
		}
		return prefix + strings.Join(paths, ", "), nil
	}

	if c.tree.Exists {
		paths, err := c.qualifyAll(c.entity.IDAttributes())
		if err != nil {
			return "", err
		}
		return prefix + strings.Join(paths, ", "), nil
	}

	return prefix + alias, nil
}

func (c *Creator) qualifyAll(properties []string) ([]string, error) {
	alias := c.alias()
	paths := make([]string, 0, len(properties))
	for _, property := range properties {
		resolved, err := c.entity.ResolvePath(property)
		if err != nil {
			return nil, err
		}
		paths = append(paths, alias+"."+resolved.Path)
	}
	return paths, nil
}

func (c *Creator) wherePredicate(binder *partBinder) (string, error) {
	groups := c.tree.Groups()
	if len(groups) == 0 {
		return "", nil
	}

	rendered := make([]string, 0, len(groups))
	for _, group := range groups {
		parts := make([]string, 0, len(group))
		for _, part := range group {
			predicate, err := c.partPredicate(part, binder)
			if err != nil {
				return "", err
			}
			parts = append(parts, predicate)
		}
		conjunction := strings.Join(parts, " AND ")
		if len(groups) > 1 && len(group) > 1 {
			conjunction = "(" + conjunction + ")"
		}
		rendered = append(rendered, conjunction)
	}
	return strings.Join(rendered, " OR "), nil
}

func (c *Creator) partPredicate(part Part, binder *partBinder) (string, error) {
	resolved, err := c.entity.ResolvePath(part.Property)
	if err != nil {
		return "", err
	}

	path := c.alias() + "." + resolved.Path

	lhs, err := c.foldCase(part, resolved, path)
	if err != nil {
		return "", err
	}

	switch part.Type {
	case Between:
		lower := binder.plain()
		upper := binder.plain()
		return path + " BETWEEN " + lower + " AND " + upper, nil
	case After, GreaterThan:
		return path + " > " + binder.plain(), nil
	case GreaterThanEqual:
		return path + " >= " + binder.plain(), nil
	case Before, LessThan:
		return path + " < " + binder.plain(), nil
	case LessThanEqual:
		return path + " <= " + binder.plain(), nil
	case IsNull:
		return path + " IS NULL", nil
	case IsNotNull:
		return path + " IS NOT NULL", nil
	case In:
		return lhs + " IN (" + binder.in() + ")", nil
	case NotIn:
		return lhs + " NOT IN (" + binder.in() + ")", nil
	case True:
		return path + " = TRUE", nil
	case False:
		return path + " = FALSE", nil
	case IsEmpty, IsNotEmpty:
		if !resolved.IsCollection {
			return "", fmt.Errorf("IsEmpty / IsNotEmpty can only be used on collection properties, %q is not one", part.Property)
		}
		if part.Type == IsNotEmpty {
			return path + " IS NOT EMPTY", nil
		}
		return path + " IS EMPTY", nil
	case StartingWith, EndingWith, Containing, NotContaining:
		if resolved.IsCollection {
			if part.Type == NotContaining {
				return binder.plain() + " NOT MEMBER OF " + path, nil
			}
			return binder.plain() + " MEMBER OF " + path, nil
		}
		return c.likePredicate(part, resolved, lhs, binder)
	case Like, NotLike:
		return c.likePredicate(part, resolved, lhs, binder)
	case SimpleProperty, NegatingSimpleProperty:
		rhs, err := c.foldCase(part, resolved, binder.plain())
		if err != nil {
			return "", err
		}
		if part.Type == NegatingSimpleProperty {
			return lhs + " != " + rhs, nil
		}
		return lhs + " = " + rhs, nil
	default:
		return "", fmt.Errorf("unsupported keyword %v in derived query", part.Type)
	}
}

func (c *Creator) likePredicate(part Part, resolved ResolvedPath, lhs string, binder *partBinder) (string, error) {
	rhs, err := c.foldCase(part, resolved, binder.like(matchModeOfPart(part.Type)))
	if err != nil {
		return "", err
	}

	operator := " LIKE "
	if part.Type == NotLike || part.Type == NotContaining {
		operator = " NOT LIKE "
	}
	return lhs + operator + rhs + " ESCAPE '" + string(c.Escape) + "'", nil
}

// foldCase wraps the expression in the case-folding template when the part
// ignores case. An explicit IgnoringCase on a non-string property is an
// error; the derived WhenPossible variant silently skips it.
func (c *Creator) foldCase(part Part, resolved ResolvedPath, expression string) (string, error) {
	switch part.IgnoreCase {
	case IgnoreCaseAlways:
		if !resolved.IsString {
			return "", fmt.Errorf("unable to ignore case of property %q, only string properties support case folding", part.Property)
		}
		return c.Templates.Wrap(expression), nil
	case IgnoreCaseWhenPossible:
		if resolved.IsString {
			return c.Templates.Wrap(expression), nil
		}
	}
	return expression, nil
}

func (c *Creator) orderByClause(sort Sort) (string, error) {
	if !sort.IsSorted() {
		return "", nil
	}

	alias := c.alias()
	clauses := make([]string, 0, len(sort.Orders()))
	for _, order := range sort.Orders() {
		resolved, err := c.entity.ResolvePath(order.Property)
		if err != nil {
			return "", err
		}
		expression := alias + "." + resolved.Path
		if order.IgnoreCase {
			expression = c.Templates.Wrap(expression)
		}
		direction := "asc"
		if order.Direction == Desc {
			direction = "desc"
		}
		clauses = append(clauses, expression+" "+direction)
	}
	return " ORDER BY " + strings.Join(clauses, ", "), nil
}

// partBinder mints the sequential positional bindings of a derived query.
// Placeholder positions and method-argument positions coincide since derived
// queries consume their arguments strictly in predicate order.
type partBinder struct {
	position int
	bindings []ParameterBinding
}

func (b *partBinder) next(factory func(BindingIdentifier, ParameterOrigin) ParameterBinding) string {
	b.position++
	identifier := Indexed(b.position)
	origin := OriginOfParameter("", b.position)
	b.bindings = append(b.bindings, factory(identifier, origin))
	return "?" + strconv.Itoa(b.position)
}

func (b *partBinder) plain() string {
	return b.next(NewBinding)
}

func (b *partBinder) in() string {
	return b.next(NewInBinding)
}

// keysetValue mints a binding fed by a keyset key instead of a method
// argument; the origin carries the sort property supplying the value.
func (b *partBinder) keysetValue(property string) string {
	b.position++
	identifier := Indexed(b.position)
	b.bindings = append(b.bindings, NewBinding(identifier, OriginOfParameter(property, b.position)))
	return "?" + strconv.Itoa(b.position)
}

func (b *partBinder) like(mode MatchMode) string {
	return b.next(func(identifier BindingIdentifier, origin ParameterOrigin) ParameterBinding {
		return NewLikeBinding(identifier, origin, mode)
	})
}
