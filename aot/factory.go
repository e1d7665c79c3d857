package aot

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veldran/aotq/query"
)

const entityNameToken = "#{#entityName}"

// QueryAnnotation carries the declared-query attributes of a repository
// method.
type QueryAnnotation struct {
	Value           string
	CountQuery      string
	CountProjection string
	NativeQuery     bool
	Name            string
	CountName       string
}

// Method describes one repository method to compile.
type Method struct {
	// Name is the method name, e.g. FindByLastnameOrderByFirstnameAsc.
	Name string
	// Annotation holds declared-query attributes, nil when the method
	// carries none.
	Annotation *QueryAnnotation
	// Paged is true when the method returns a page and therefore needs a
	// count query.
	Paged bool
}

func (m Method) annotation() QueryAnnotation {
	if m.Annotation == nil {
		return QueryAnnotation{}
	}
	return *m.Annotation
}

// NamedQueryName returns the name this method resolves named queries
// under, defaulting to "EntityName.methodName".
func (m Method) NamedQueryName(entityName string) string {
	if ann := m.annotation(); ann.Name != "" {
		return ann.Name
	}
	return entityName + "." + uncapitalize(m.Name)
}

// NamedCountQueryName returns the name this method resolves named count
// queries under.
func (m Method) NamedCountQueryName(entityName string) string {
	if ann := m.annotation(); ann.CountName != "" {
		return ann.CountName
	}
	return m.NamedQueryName(entityName) + ".count"
}

// Factory selects and assembles the queries backing a repository method.
// Dispatch order is declared string query, then named query, then a
// query derived from the method name.
type Factory struct {
	named     NamedQuerySource
	extractor Extractor
	log       *zap.Logger

	templates query.CaseTemplate
	escape    rune
}

// NewFactory creates a Factory. named may be nil when no properties
// resource is configured, extractor may be nil when the provider exposes
// no named queries, and log may be nil.
func NewFactory(named NamedQuerySource, extractor Extractor, log *zap.Logger) *Factory {
	if named == nil {
		named = NoNamedQueries()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{named: named, extractor: extractor, log: log}
}

// Configure overrides the case-folding template and LIKE escape character
// used by derived queries. Zero values keep the defaults.
func (f *Factory) Configure(templates query.CaseTemplate, escape rune) {
	f.templates = templates
	f.escape = escape
}

// CreateQueries compiles the result and count queries for method against
// the given entity, honoring the three-tier count priority: explicit
// countQuery attribute, then named count query, then a derived count
// query.
func (f *Factory) CreateQueries(entity query.EntityModel, returned query.ReturnedType, method Method) (Queries, error) {
	ann := method.annotation()

	if ann.Value != "" {
		return f.buildStringQuery(entity, returned, method)
	}

	queryName := method.NamedQueryName(entity.EntityName())
	if f.hasNamedQuery(returned, queryName) {
		return f.buildNamedQuery(entity, returned, queryName, method)
	}

	return f.buildPartTreeQuery(entity, returned, method)
}

func (f *Factory) hasNamedQuery(returned query.ReturnedType, queryName string) bool {
	if f.named.HasQuery(queryName) {
		return true
	}
	_, ok := f.lookupNamedQuery(returned, queryName)
	return ok
}

func (f *Factory) buildStringQuery(entity query.EntityModel, returned query.ReturnedType, method Method) (Queries, error) {
	ann := method.annotation()

	queryString := resolveEntityName(ann.Value, entity.EntityName())
	pre, err := preprocess(queryString, ann.NativeQuery)
	if err != nil {
		return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
	}
	result := StringQueryOf(pre)

	if returned.IsProjecting() && returned.HasInputProperties() && !returned.IsInterface {
		rewritten, err := query.Rewrite(result.QueryString(), query.Unsorted(), returned)
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: rewriting projection: %w", method.Name, err)
		}
		result = result.Rewrite(rewritten)
		f.log.Debug("rewrote declared query for class projection",
			zap.String("method", method.Name), zap.String("query", rewritten))
	}

	if !method.Paged {
		return Unpaged(result), nil
	}

	if ann.CountQuery != "" {
		countPre, err := preprocess(resolveEntityName(ann.CountQuery, entity.EntityName()), ann.NativeQuery)
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: count query: %w", method.Name, err)
		}
		return PairOf(result, StringQueryOf(countPre)), nil
	}

	countName := method.NamedCountQueryName(entity.EntityName())
	if f.hasNamedQuery(returned, countName) {
		count, err := f.createNamedQuery(returned, countName, ann.NativeQuery)
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
		}
		return PairOf(result, count), nil
	}

	return PairOf(result, deriveCount(result, ann.CountProjection)), nil
}

func (f *Factory) buildNamedQuery(entity query.EntityModel, returned query.ReturnedType, queryName string, method Method) (Queries, error) {
	ann := method.annotation()

	result, err := f.createNamedQuery(returned, queryName, ann.NativeQuery)
	if err != nil {
		return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
	}

	if !method.Paged {
		return Unpaged(result), nil
	}

	if ann.CountQuery != "" {
		countPre, err := preprocess(ann.CountQuery, result.IsNative())
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: count query: %w", method.Name, err)
		}
		return PairOf(result, StringQueryOf(countPre)), nil
	}

	countName := method.NamedCountQueryName(entity.EntityName())
	if f.hasNamedQuery(returned, countName) {
		count, err := f.createNamedQuery(returned, countName, result.IsNative())
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
		}
		return PairOf(result, count), nil
	}

	return PairOf(result, deriveCount(result, ann.CountProjection)), nil
}

func (f *Factory) buildPartTreeQuery(entity query.EntityModel, returned query.ReturnedType, method Method) (Queries, error) {
	ann := method.annotation()

	tree, err := query.ParseTree(uncapitalize(method.Name))
	if err != nil {
		return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
	}

	creator := query.NewCreator(tree, returned, entity)
	if f.templates.Operator() != "" {
		creator.Templates = f.templates
	}
	if f.escape != 0 {
		creator.Escape = f.escape
	}
	derived, err := creator.CreateQuery(query.Unsorted())
	if err != nil {
		return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
	}
	result := DerivedStringQuery(derived)

	if !method.Paged {
		return Unpaged(result), nil
	}

	if ann.CountQuery != "" {
		countPre, err := preprocess(ann.CountQuery, false)
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: count query: %w", method.Name, err)
		}
		return PairOf(result, StringQueryOf(countPre)), nil
	}

	countName := method.NamedCountQueryName(entity.EntityName())
	if f.hasNamedQuery(returned, countName) {
		count, err := f.createNamedQuery(returned, countName, false)
		if err != nil {
			return Queries{}, fmt.Errorf("method %s: %w", method.Name, err)
		}
		return PairOf(result, count), nil
	}

	derivedCount, err := creator.CreateCountQuery()
	if err != nil {
		return Queries{}, fmt.Errorf("method %s: count query: %w", method.Name, err)
	}
	return PairOf(result, DerivedStringQuery(derivedCount)), nil
}

// createNamedQuery resolves a named query, consulting the properties
// source before the provider extractor. A name that resolves to blank
// query text is a hard configuration error; a name that resolves nowhere
// must have been guarded by hasNamedQuery and is reported as such.
func (f *Factory) createNamedQuery(returned query.ReturnedType, queryName string, native bool) (StringQuery, error) {
	queryString, ok := f.named.Query(queryName)
	if !ok {
		extracted, found := f.lookupNamedQuery(returned, queryName)
		if !found {
			return StringQuery{}, fmt.Errorf("named query %q not found", queryName)
		}
		queryString = extracted.Query
		native = native || extracted.Native
	}

	if strings.TrimSpace(queryString) == "" {
		return StringQuery{}, fmt.Errorf("cannot extract query from named query %q", queryName)
	}

	pre, err := preprocess(queryString, native)
	if err != nil {
		return StringQuery{}, fmt.Errorf("named query %q: %w", queryName, err)
	}
	return NamedStringQuery(queryName, pre), nil
}

// lookupNamedQuery probes the provider extractor with result-type
// candidates in decreasing specificity, ending with the numeric types a
// count query may be registered under.
func (f *Factory) lookupNamedQuery(returned query.ReturnedType, queryName string) (NamedQueryText, bool) {
	if f.extractor == nil {
		return NamedQueryText{}, false
	}

	candidates := []string{"", returned.DomainType, returned.ReturnedType, "int64", "int"}
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		if text, ok := f.extractor.Extract(queryName, candidate); ok {
			return text, true
		}
	}
	return NamedQueryText{}, false
}

func preprocess(queryString string, native bool) (query.PreprocessedQuery, error) {
	declared := query.NewJpqlQuery(queryString)
	if native {
		declared = query.NewNativeQuery(queryString)
	}
	return query.Preprocess(declared)
}

// deriveCount derives a count query from the result query by select
// clause replacement. The binding plan is shared with the result query.
func deriveCount(result StringQuery, countProjection string) StringQuery {
	countText := query.DeriveCountQuery(result.QueryString(), result.IsNative(), countProjection)
	count := result.Rewrite(countText)
	count.name = ""
	return count
}

func resolveEntityName(queryString, entityName string) string {
	return strings.ReplaceAll(queryString, entityNameToken, entityName)
}

func uncapitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
