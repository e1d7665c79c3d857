// Package aot holds the build-time query artifacts produced by the
// queries factory: immutable value objects pairing a result query with
// its count query, ready for code emission and manifest serialization.
package aot

import (
	"github.com/veldran/aotq/query"
)

// Query is a fully compiled query captured ahead of time. Implementations
// are immutable value objects.
type Query interface {
	// QueryString returns the executable query text.
	QueryString() string
	// Bindings returns the parameter binding plan in occurrence order.
	Bindings() []query.ParameterBinding
	// ResultLimit returns the static fetch limit, if any.
	ResultLimit() query.Limit
	// IsDelete reports whether the query backs a derived delete method.
	IsDelete() bool
	// IsExists reports whether the query backs a derived exists method.
	IsExists() bool
	// IsNative reports whether the query text is native SQL.
	IsNative() bool
}

// IsLimited reports whether q carries a static fetch limit.
func IsLimited(q Query) bool {
	return q.ResultLimit().IsLimited()
}

// HasExpression reports whether any binding of q originates from a value
// expression rather than a method argument.
func HasExpression(q Query) bool {
	return query.HasExpressionBinding(q.Bindings())
}

// StringQuery is a Query backed by declared or derived query text.
type StringQuery struct {
	pre    query.PreprocessedQuery
	name   string
	limit  query.Limit
	delete bool
	exists bool
}

// StringQueryOf wraps an already preprocessed declared query.
func StringQueryOf(pre query.PreprocessedQuery) StringQuery {
	return StringQuery{pre: pre, limit: query.Unlimited()}
}

// NamedStringQuery wraps a preprocessed query resolved from a named query
// source, remembering the name it was resolved under.
func NamedStringQuery(name string, pre query.PreprocessedQuery) StringQuery {
	return StringQuery{pre: pre, name: name, limit: query.Unlimited()}
}

// DerivedStringQuery wraps query text produced by the predicate-tree
// creator together with its bindings and tree-level flags.
func DerivedStringQuery(derived query.DerivedQuery) StringQuery {
	pre := query.PreprocessedQuery{
		Declared: query.NewJpqlQuery(derived.Query),
		Bindings: derived.Bindings,
	}
	return StringQuery{pre: pre, limit: derived.Limit, delete: derived.Delete, exists: derived.Exists}
}

func (q StringQuery) QueryString() string                { return q.pre.QueryString() }
func (q StringQuery) Bindings() []query.ParameterBinding { return q.pre.Bindings }
func (q StringQuery) ResultLimit() query.Limit           { return q.limit }
func (q StringQuery) IsDelete() bool                     { return q.delete }
func (q StringQuery) IsExists() bool                     { return q.exists }
func (q StringQuery) IsNative() bool                     { return q.pre.Declared.IsNative() }

// QueryName returns the named-query name, or "" for inline queries.
func (q StringQuery) QueryName() string { return q.name }

// Rewrite returns a copy of q with new query text. The binding plan is
// unchanged since sorting and projection rewrites address the same
// parameters.
func (q StringQuery) Rewrite(newQuery string) StringQuery {
	q.pre = q.pre.RewriteText(newQuery)
	return q
}

// absentQuery is the sentinel count query for methods that never page.
type absentQuery struct{}

func (absentQuery) QueryString() string                { return "" }
func (absentQuery) Bindings() []query.ParameterBinding { return nil }
func (absentQuery) ResultLimit() query.Limit           { return query.Unlimited() }
func (absentQuery) IsDelete() bool                     { return false }
func (absentQuery) IsExists() bool                     { return false }
func (absentQuery) IsNative() bool                     { return false }

// Absent returns the sentinel used in place of a count query when the
// compiled method does not page.
func Absent() Query { return absentQuery{} }

// IsAbsent reports whether q is the Absent sentinel.
func IsAbsent(q Query) bool {
	_, ok := q.(absentQuery)
	return ok
}

// Queries pairs a result query with its count query.
type Queries struct {
	Result Query
	Count  Query
}

// PairOf pairs a result query with an explicit count query.
func PairOf(result, count Query) Queries {
	return Queries{Result: result, Count: count}
}

// Unpaged pairs a result query with the absent count sentinel.
func Unpaged(result Query) Queries {
	return Queries{Result: result, Count: Absent()}
}

// Serialize renders the pair as a stable string map for the build
// manifest. Named queries contribute their name, inline queries their
// text; the absent count sentinel contributes nothing.
func (q Queries) Serialize() map[string]string {
	out := make(map[string]string, 4)
	serializeInto(out, q.Result, "query", "name")
	if !IsAbsent(q.Count) {
		serializeInto(out, q.Count, "count-query", "count-name")
	}
	return out
}

func serializeInto(out map[string]string, q Query, queryKey, nameKey string) {
	if sq, ok := q.(StringQuery); ok && sq.QueryName() != "" {
		out[nameKey] = sq.QueryName()
		return
	}
	out[queryKey] = q.QueryString()
}
