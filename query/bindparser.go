package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMetadata collects side facts discovered while parsing a query's
// parameter bindings.
type ParseMetadata struct {
	// UsesJdbcStyleParameters is set when the query addresses parameters
	// with bare `?` markers instead of numbered or named placeholders.
	UsesJdbcStyleParameters bool
}

// placeholderMatch is one placeholder occurrence found by the scanner,
// together with its keyword and wildcard decoration.
type placeholderMatch struct {
	// keyword is "like", "in" or "".
	keyword string
	// token is the placeholder with its wildcard markers, e.g. "%:name%".
	// This is the exact substring replaced in the query text.
	token string
	// positional is true for `?`-style placeholders.
	positional bool
	// digits is the explicit index text; empty for a bare `?`.
	digits string
	// name is the parameter name for named placeholders.
	name string
}

// ParseBindings scans a raw query string for parameter placeholders, appends
// every discovered binding to bindings exactly once (minting synthetic
// identifiers for incompatible reuse), and returns the query text with all
// recognized placeholder syntaxes normalized.
func ParseBindings(query string, bindings *[]ParameterBinding, meta *ParseMetadata) (string, error) {
	greatestIndex := greatestParameterIndex(query)
	byIndex := greatestIndex != -1

	// Prefer indexed access when only expression parameters are present.
	if !byIndex && strings.Contains(query, "?#{") {
		byIndex = true
		greatestIndex = 0
	}

	extracted, err := extractExpressions(query, byIndex, max(greatestIndex, 0))
	if err != nil {
		return "", err
	}

	resultingQuery := extracted.query
	matches := scanPlaceholders(resultingQuery, extracted.quotations)

	expressionParameterIndex := 0
	if byIndex {
		expressionParameterIndex = greatestIndex
	}
	registry := newBindingRegistry(*bindings, expressionParameterIndex+extracted.size(), func(binding ParameterBinding) error {
		return checkAndRegister(binding, bindings)
	})

	currentIndex := 0
	usesJpaStyleParameters := false

	for _, match := range matches {
		if match.positional && match.digits == "" {
			meta.UsesJdbcStyleParameters = true
		} else {
			usesJpaStyleParameters = true
		}
		if usesJpaStyleParameters && meta.UsesJdbcStyleParameters {
			return "", fmt.Errorf("mixing of ? parameters and other forms like ?1 is not supported; offending query string: %s", query)
		}

		parameterIndex := 0
		if match.digits != "" {
			parameterIndex, err = strconv.Atoi(match.digits)
			if err != nil {
				return "", fmt.Errorf("invalid parameter index %q in query %q", match.digits, query)
			}
		}

		expressionKey := match.name
		if match.positional {
			expressionKey = match.digits
		}
		expression, isExpression := extracted.expressionFor(expressionKey)

		expressionParameterIndex++
		if match.positional && match.digits == "" {
			parameterIndex = expressionParameterIndex
		}

		var queryParameter BindingIdentifier
		if match.positional {
			queryParameter = Indexed(parameterIndex)
		} else {
			queryParameter = Named(match.name)
		}

		var origin ParameterOrigin
		if isExpression {
			origin = OriginOfExpression(expression)
		} else {
			origin = OriginOfParameter(match.name, parameterIndex)
		}

		factory := bindingFactoryFor(match, origin)

		targetBinding := queryParameter
		if origin.IsExpression() {
			if err := registry.registerDirect(factory(queryParameter)); err != nil {
				return "", err
			}
		} else {
			targetBinding, err = registry.register(queryParameter, origin, factory)
			if err != nil {
				return "", err
			}
		}

		var replacement string
		switch {
		case targetBinding.HasName():
			replacement = ":" + targetBinding.Name()
		case !usesJpaStyleParameters && meta.UsesJdbcStyleParameters:
			replacement = "?"
		default:
			replacement = "?" + strconv.Itoa(targetBinding.Position())
		}

		index := strings.Index(resultingQuery[currentIndex:], match.token)
		if index >= 0 {
			index += currentIndex
			currentIndex = index + len(replacement)
			resultingQuery = resultingQuery[:index] + replacement + resultingQuery[index+len(match.token):]
		}
	}

	return resultingQuery, nil
}

// bindingFactoryFor classifies the binding by its keyword prefix. A LIKE
// keyword derives the match mode from the wildcard markers around the token.
func bindingFactoryFor(match placeholderMatch, origin ParameterOrigin) func(BindingIdentifier) ParameterBinding {
	switch match.keyword {
	case "like":
		mode := MatchModeOf(match.token)
		return func(identifier BindingIdentifier) ParameterBinding {
			return NewLikeBinding(identifier, origin, mode)
		}
	case "in":
		return func(identifier BindingIdentifier) ParameterBinding {
			return NewInBinding(identifier, origin)
		}
	default:
		return func(identifier BindingIdentifier) ParameterBinding {
			return NewBinding(identifier, origin)
		}
	}
}

// checkAndRegister appends the binding unless an equal one is already
// present. A binding addressing the same slot with a different specialization
// is a configuration error.
func checkAndRegister(binding ParameterBinding, bindings *[]ParameterBinding) error {
	for _, existing := range *bindings {
		if existing.BindsTo(binding) && existing != binding {
			return fmt.Errorf(
				"already found parameter binding with same index / parameter name but differing binding type; already have: %s, found %s; if you bind a parameter multiple times make sure they use the same binding",
				existing, binding)
		}
	}
	for _, existing := range *bindings {
		if existing == binding {
			return nil
		}
	}
	*bindings = append(*bindings, binding)
	return nil
}

// bindingRegistry mints unique parameter identifiers for bindings that refer
// to the same underlying method argument but need distinct bound values, e.g.
// two LIKE usages of one argument with different wildcard shapes.
type bindingRegistry struct {
	byIdentifier            map[BindingIdentifier][]ParameterBinding
	registration            func(ParameterBinding) error
	syntheticParameterIndex int
}

func newBindingRegistry(existing []ParameterBinding, syntheticParameterIndex int, registration func(ParameterBinding) error) *bindingRegistry {
	registry := &bindingRegistry{
		byIdentifier:            map[BindingIdentifier][]ParameterBinding{},
		registration:            registration,
		syntheticParameterIndex: syntheticParameterIndex,
	}
	for _, binding := range existing {
		registry.byIdentifier[binding.Identifier] = []ParameterBinding{binding}
	}
	return registry
}

func (r *bindingRegistry) registerDirect(binding ParameterBinding) error {
	return r.registration(binding)
}

// register binds the identifier to the origin, reusing a compatible existing
// binding or minting a synthetic identifier on conflict. Returns the
// identifier the query text must use for this occurrence.
func (r *bindingRegistry) register(identifier BindingIdentifier, origin ParameterOrigin,
	factory func(BindingIdentifier) ParameterBinding) (BindingIdentifier, error) {

	methodArgument := origin.Argument()
	boundToOrigin := r.byIdentifier[methodArgument]

	if len(r.byIdentifier[identifier]) == 0 {
		binding := factory(identifier)
		if err := r.registration(binding); err != nil {
			return BindingIdentifier{}, err
		}
		r.byIdentifier[methodArgument] = append(boundToOrigin, binding)
		return binding.Identifier, nil
	}

	binding := factory(identifier)
	for _, existing := range boundToOrigin {
		if existing.IsCompatibleWith(binding) {
			return existing.Identifier, nil
		}
	}

	var synthetic BindingIdentifier
	if identifier.HasName() && methodArgument.HasName() {
		index := 0
		newName := methodArgument.Name()
		for r.existsBoundName(newName) {
			index++
			newName = methodArgument.Name() + "_" + strconv.Itoa(index)
		}
		synthetic = Named(newName)
	} else {
		r.syntheticParameterIndex++
		synthetic = Indexed(r.syntheticParameterIndex)
	}

	newBinding := factory(synthetic)
	if err := r.registration(newBinding); err != nil {
		return BindingIdentifier{}, err
	}
	r.byIdentifier[methodArgument] = append(boundToOrigin, newBinding)
	return newBinding.Identifier, nil
}

func (r *bindingRegistry) existsBoundName(name string) bool {
	for _, bindings := range r.byIdentifier {
		for _, binding := range bindings {
			if binding.Identifier.HasName() && binding.Identifier.Name() == name {
				return true
			}
		}
	}
	return false
}

// greatestParameterIndex finds the highest explicit `?N` index, or -1 when
// the query uses no indexed placeholders.
func greatestParameterIndex(query string) int {
	quotes := scanQuotedRegions(query)
	greatest := -1
	for i := 0; i < len(query); i++ {
		if query[i] != '?' || quotes.isQuoted(i) {
			continue
		}
		digits := leadingDigitBytes(query[i+1:])
		if digits == "" {
			continue
		}
		after := i + 1 + len(digits)
		if after < len(query) && isWordByte(query[after]) {
			continue
		}
		index, err := strconv.Atoi(digits)
		if err == nil && index > greatest {
			greatest = index
		}
	}
	return greatest
}

// scanPlaceholders performs the single combined scan for keyword-prefixed,
// wildcard-decorated positional and named placeholders, skipping quoted
// literals.
func scanPlaceholders(query string, quotes quotedRegions) []placeholderMatch {
	var matches []placeholderMatch
	for i := 0; i < len(query); i++ {
		if quotes.isQuoted(i) {
			continue
		}
		c := query[i]

		if c == '?' {
			if i > 0 && query[i-1] == '\\' {
				continue
			}
			digits := leadingDigitBytes(query[i+1:])
			after := i + 1 + len(digits)
			if after < len(query) && (query[after] == '#' || isWordByte(query[after])) {
				continue
			}
			match := buildMatch(query, i, i+1+len(digits))
			match.positional = true
			match.digits = digits
			matches = append(matches, match)
			i = after - 1
			continue
		}

		if c == ':' {
			if i > 0 && (query[i-1] == ':' || query[i-1] == '\\') {
				continue
			}
			if i+1 < len(query) && query[i+1] == ':' {
				i++
				continue
			}
			name := leadingIdentifierBytes(query[i+1:])
			if name == "" {
				continue
			}
			match := buildMatch(query, i, i+1+len(name))
			match.name = name
			matches = append(matches, match)
			i += len(name)
		}
	}
	return matches
}

// buildMatch captures the wildcard decoration around the placeholder at
// [start,end) and the optional LIKE/IN keyword before it.
func buildMatch(query string, start, end int) placeholderMatch {
	tokenStart, tokenEnd := start, end
	if tokenStart > 0 && query[tokenStart-1] == '%' {
		tokenStart--
	}
	if tokenEnd < len(query) && query[tokenEnd] == '%' {
		tokenEnd++
	}

	return placeholderMatch{
		keyword: keywordBefore(query, tokenStart),
		token:   query[tokenStart:tokenEnd],
	}
}

// keywordBefore detects a LIKE or IN keyword (requiring trailing whitespace)
// immediately before the token, allowing an optional opening brace.
func keywordBefore(query string, tokenStart int) string {
	i := tokenStart
	if i > 0 && query[i-1] == '(' {
		i--
	}
	spaces := 0
	for i > 0 && query[i-1] == ' ' && spaces < 2 {
		i--
		spaces++
	}
	if spaces == 0 {
		return ""
	}
	for _, keyword := range []string{"like", "in"} {
		if i >= len(keyword) && strings.EqualFold(query[i-len(keyword):i], keyword) {
			if i-len(keyword) == 0 || !isWordByte(query[i-len(keyword)-1]) {
				return keyword
			}
		}
	}
	return ""
}

func leadingDigitBytes(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return s[:i]
		}
	}
	return s
}

func leadingIdentifierBytes(s string) string {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) && s[i] != '$' {
			return s[:i]
		}
	}
	return s
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
