package runtime

import (
	"errors"

	"github.com/veldran/aotq/aot"
	"github.com/veldran/aotq/query"
)

var errAbsentCountQuery = errors.New("count query is absent for this method")

// PrepareQuery builds the executable statement for one invocation of a
// compiled query: the dynamic sort and projection rewrite when the method
// needs one, argument binding, then the fetch limit and page window.
func PrepareQuery(q aot.Query, returned query.ReturnedType, pageable Pageable, args Args) (Statement, error) {
	text := q.QueryString()
	if query.NeedsRuntimeRewrite(pageable.Sort.IsSorted(), returned.IsProjecting()) {
		rewritten, err := query.Rewrite(text, pageable.Sort, returned)
		if err != nil {
			return Statement{}, err
		}
		text = rewritten
	}

	stmt, err := Prepare(text, q.Bindings(), args)
	if err != nil {
		return Statement{}, err
	}
	stmt.SQL = ApplyLimit(stmt.SQL, q.ResultLimit())
	stmt.SQL = ApplyPageable(stmt.SQL, pageable)
	return stmt, nil
}

// PrepareCount builds the executable count statement for a paged method.
// Count queries never carry a sort, a limit, or a page window.
func PrepareCount(q aot.Query, args Args) (Statement, error) {
	if aot.IsAbsent(q) {
		return Statement{}, errAbsentCountQuery
	}
	return Prepare(q.QueryString(), q.Bindings(), args)
}
