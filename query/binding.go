package query

import (
	"fmt"
	"strings"
)

// MatchMode describes how a LIKE binding wraps its argument in wildcards.
type MatchMode int

const (
	// MatchExact passes the argument through unchanged; the query author
	// supplies any wildcards themselves.
	MatchExact MatchMode = iota
	MatchStartingWith
	MatchEndingWith
	MatchContaining
)

func (m MatchMode) String() string {
	switch m {
	case MatchStartingWith:
		return "STARTING_WITH"
	case MatchEndingWith:
		return "ENDING_WITH"
	case MatchContaining:
		return "CONTAINING"
	default:
		return "EXACT"
	}
}

// MatchModeOf derives the match mode from the wildcard decoration around a
// placeholder, e.g. "%:name" is ENDING_WITH and ":name%" is STARTING_WITH.
func MatchModeOf(expression string) MatchMode {
	leading := strings.HasPrefix(expression, "%")
	trailing := strings.HasSuffix(expression, "%") && len(expression) > 1
	switch {
	case leading && trailing:
		return MatchContaining
	case leading:
		return MatchEndingWith
	case trailing:
		return MatchStartingWith
	default:
		return MatchExact
	}
}

// matchModeOfPart maps a derived predicate operator onto a match mode.
func matchModeOfPart(t PartType) MatchMode {
	switch t {
	case StartingWith:
		return MatchStartingWith
	case EndingWith:
		return MatchEndingWith
	case Containing, NotContaining:
		return MatchContaining
	default:
		return MatchExact
	}
}

// BindingKind is the specialization of a parameter binding.
type BindingKind int

const (
	BindAsIs BindingKind = iota
	BindLike
	BindIn
)

func (k BindingKind) String() string {
	switch k {
	case BindLike:
		return "LIKE"
	case BindIn:
		return "IN"
	default:
		return "AS_IS"
	}
}

// BindingIdentifier identifies a query parameter slot by name, 1-based
// position, or both. The zero value identifies nothing.
type BindingIdentifier struct {
	name     string
	position int
}

// Named creates a name-only identifier.
func Named(name string) BindingIdentifier {
	return BindingIdentifier{name: name}
}

// Indexed creates a position-only identifier. Positions are 1-based.
func Indexed(position int) BindingIdentifier {
	return BindingIdentifier{position: position}
}

// NamedAndIndexed creates an identifier carrying both a name and a position.
func NamedAndIndexed(name string, position int) BindingIdentifier {
	return BindingIdentifier{name: name, position: position}
}

func (b BindingIdentifier) HasName() bool     { return b.name != "" }
func (b BindingIdentifier) HasPosition() bool { return b.position > 0 }
func (b BindingIdentifier) Name() string      { return b.name }
func (b BindingIdentifier) Position() int     { return b.position }

func (b BindingIdentifier) String() string {
	switch {
	case b.HasName() && b.HasPosition():
		return fmt.Sprintf("[%s, %d]", b.name, b.position)
	case b.HasName():
		return b.name
	case b.HasPosition():
		return fmt.Sprintf("[%d]", b.position)
	default:
		return "[unbound]"
	}
}

// ValueExpression is a parsed #{...} template evaluated against the method
// invocation at request time. The build-time pipeline only carries the raw
// expression text.
type ValueExpression struct {
	expression string
}

// Expression returns the raw template text without the #{...} delimiters.
func (v ValueExpression) Expression() string { return v.expression }

// IsZero reports whether no expression is present.
func (v ValueExpression) IsZero() bool { return v.expression == "" }

// ParameterOrigin states where a binding's value comes from: a method
// argument (by name or position) or a value expression.
type ParameterOrigin struct {
	argument   BindingIdentifier
	expression ValueExpression
}

// OriginOfArgument creates an origin referring to a method argument.
func OriginOfArgument(identifier BindingIdentifier) ParameterOrigin {
	return ParameterOrigin{argument: identifier}
}

// OriginOfParameter creates a method-argument origin from whichever of name
// and position are known.
func OriginOfParameter(name string, position int) ParameterOrigin {
	switch {
	case name != "" && position > 0:
		return OriginOfArgument(NamedAndIndexed(name, position))
	case name != "":
		return OriginOfArgument(Named(name))
	default:
		return OriginOfArgument(Indexed(position))
	}
}

// OriginOfExpression creates an expression origin.
func OriginOfExpression(expression ValueExpression) ParameterOrigin {
	return ParameterOrigin{expression: expression}
}

func (o ParameterOrigin) IsExpression() bool     { return !o.expression.IsZero() }
func (o ParameterOrigin) IsMethodArgument() bool { return o.expression.IsZero() }

// Argument returns the method-argument identifier. Only meaningful when
// IsMethodArgument.
func (o ParameterOrigin) Argument() BindingIdentifier { return o.argument }

// Expression returns the value expression. Only meaningful when IsExpression.
func (o ParameterOrigin) Expression() ValueExpression { return o.expression }

func (o ParameterOrigin) String() string {
	if o.IsExpression() {
		return fmt.Sprintf("expression #{%s}", o.expression.Expression())
	}
	return fmt.Sprintf("method argument %s", o.argument)
}

// ParameterBinding represents one parameter slot of a query: its identifier
// within the query text, the origin supplying its value, and an optional
// LIKE/IN specialization. Bindings are immutable value objects.
type ParameterBinding struct {
	Identifier BindingIdentifier
	Origin     ParameterOrigin
	Kind       BindingKind
	// Match is only meaningful for BindLike bindings.
	Match MatchMode
}

// NewBinding creates a plain binding.
func NewBinding(identifier BindingIdentifier, origin ParameterOrigin) ParameterBinding {
	return ParameterBinding{Identifier: identifier, Origin: origin, Kind: BindAsIs}
}

// NewLikeBinding creates a LIKE binding with the given match mode.
func NewLikeBinding(identifier BindingIdentifier, origin ParameterOrigin, match MatchMode) ParameterBinding {
	return ParameterBinding{Identifier: identifier, Origin: origin, Kind: BindLike, Match: match}
}

// NewInBinding creates a collection-expanding IN binding.
func NewInBinding(identifier BindingIdentifier, origin ParameterOrigin) ParameterBinding {
	return ParameterBinding{Identifier: identifier, Origin: origin, Kind: BindIn}
}

// BindsTo reports whether both bindings address the same query parameter
// slot, by name or by position.
func (b ParameterBinding) BindsTo(other ParameterBinding) bool {
	if b.Identifier.HasName() && other.Identifier.HasName() &&
		b.Identifier.Name() == other.Identifier.Name() {
		return true
	}
	if b.Identifier.HasPosition() && other.Identifier.HasPosition() &&
		b.Identifier.Position() == other.Identifier.Position() {
		return true
	}
	return false
}

// IsCompatibleWith reports whether the other binding can reuse this binding's
// parameter slot: same specialization, same origin, and for LIKE bindings the
// same match mode.
func (b ParameterBinding) IsCompatibleWith(other ParameterBinding) bool {
	if b.Kind != other.Kind || b.Origin != other.Origin {
		return false
	}
	if b.Kind == BindLike {
		return b.Match == other.Match
	}
	return true
}

func (b ParameterBinding) String() string {
	if b.Kind == BindLike {
		return fmt.Sprintf("LikeBinding [identifier: %s, origin: %s, type: %s]", b.Identifier, b.Origin, b.Match)
	}
	return fmt.Sprintf("%sBinding [identifier: %s, origin: %s]", bindingKindLabel(b.Kind), b.Identifier, b.Origin)
}

func bindingKindLabel(k BindingKind) string {
	if k == BindIn {
		return "In"
	}
	return "Parameter"
}

// HasExpressionBinding reports whether any binding originates from a value
// expression.
func HasExpressionBinding(bindings []ParameterBinding) bool {
	for _, binding := range bindings {
		if binding.Origin.IsExpression() {
			return true
		}
	}
	return false
}
