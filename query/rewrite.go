package query

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// enhancerCache memoizes pre-parsed queries. Enhancing is a pure function of
// the query text and the number of distinct queries per repository is small,
// so a fixed LRU shared across repositories suffices.
var enhancerCache, _ = lru.New[string, *Enhancer](32)

var selectClause = regexp.MustCompile(`(?is)^(\s*select\s+)(distinct\s+)?(.+?)(\s+from\s)`)

// Enhancer is a query pre-parsed for cheap request-time rewriting. The
// expensive analysis (alias detection, constructor-expression detection)
// happens once at build time; splicing a sort or projection into the text is
// then a targeted string operation.
type Enhancer struct {
	query                 string
	alias                 string
	constructorExpression bool
}

// EnhancerFor returns the cached enhancer for the given query text.
func EnhancerFor(query string) *Enhancer {
	if enhancer, ok := enhancerCache.Get(query); ok {
		return enhancer
	}
	enhancer := &Enhancer{
		query:                 query,
		alias:                 DetectAlias(query),
		constructorExpression: HasConstructorExpression(query),
	}
	enhancerCache.Add(query, enhancer)
	return enhancer
}

func (e *Enhancer) QueryString() string            { return e.query }
func (e *Enhancer) Alias() string                  { return e.alias }
func (e *Enhancer) HasConstructorExpression() bool { return e.constructorExpression }

// ApplySort splices the sort into the query using the pre-detected alias.
func (e *Enhancer) ApplySort(sort Sort) (string, error) {
	return ApplySortingWithAlias(e.query, sort, e.alias)
}

// RewriteProjection narrows the select clause to the projection's input
// properties. Interface projections are left alone since they tolerate
// over-fetching through tuple access, and a query that already selects
// through a constructor expression stays authoritative.
func (e *Enhancer) RewriteProjection(returned ReturnedType) string {
	if !returned.IsProjecting() || returned.IsInterface || !returned.HasInputProperties() {
		return e.query
	}
	if e.constructorExpression {
		return e.query
	}

	m := selectClause.FindStringSubmatchIndex(e.query)
	if m == nil {
		return e.query
	}

	properties := make([]string, 0, len(returned.InputProperties))
	for _, property := range returned.InputProperties {
		if e.alias != "" && !strings.Contains(property, "(") && !strings.HasPrefix(property, e.alias+".") {
			property = e.alias + "." + property
		}
		properties = append(properties, property)
	}

	// Group 3 is the projection list between SELECT [DISTINCT] and FROM.
	return e.query[:m[6]] + strings.Join(properties, ", ") + e.query[m[7]:]
}

// Rewrite applies the request-time rewrites to a base query: first the
// projection narrowing, then the dynamic sort. Generated code calls this only
// for methods that actually take a dynamic sort or projection parameter.
func Rewrite(query string, sort Sort, returned ReturnedType) (string, error) {
	enhancer := EnhancerFor(query)
	rewritten := enhancer.RewriteProjection(returned)

	if !sort.IsSorted() {
		return rewritten, nil
	}
	return ApplySortingWithAlias(rewritten, sort, enhancer.alias)
}

// NeedsRuntimeRewrite decides statically, per method, whether generated code
// must call Rewrite at request time at all.
func NeedsRuntimeRewrite(hasDynamicSort, hasDynamicProjection bool) bool {
	return hasDynamicSort || hasDynamicProjection
}
