package runtime

import (
	"reflect"
	"strings"
	"testing"

	"github.com/veldran/aotq/query"
)

func TestPrepareNamedPlaceholders(t *testing.T) {
	bindings := []query.ParameterBinding{
		query.NewBinding(query.Named("lastname"), query.OriginOfParameter("lastname", 1)),
	}
	stmt, err := Prepare("SELECT u.* FROM users u WHERE u.lastname = :lastname", bindings, Args{
		Named: map[string]any{"lastname": "Doe"},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stmt.SQL != "SELECT u.* FROM users u WHERE u.lastname = $1" {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"Doe"}) {
		t.Fatalf("unexpected args: %#v", stmt.Args)
	}
}

func TestPrepareIndexedPlaceholders(t *testing.T) {
	bindings := []query.ParameterBinding{
		query.NewBinding(query.Indexed(1), query.OriginOfParameter("", 1)),
		query.NewBinding(query.Indexed(2), query.OriginOfParameter("", 2)),
	}
	stmt, err := Prepare("WHERE u.age > ?1 AND u.active = ?2", bindings, Args{
		Positional: []any{21, true},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stmt.SQL != "WHERE u.age > $1 AND u.active = $2" {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{21, true}) {
		t.Fatalf("unexpected args: %#v", stmt.Args)
	}
}

func TestPrepareLikeBindingAppliesWildcards(t *testing.T) {
	bindings := []query.ParameterBinding{
		query.NewLikeBinding(query.Named("lastname"), query.OriginOfParameter("lastname", 1), query.MatchStartingWith),
	}
	stmt, err := Prepare("WHERE u.lastname LIKE :lastname", bindings, Args{
		Named: map[string]any{"lastname": "Do_e"},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !reflect.DeepEqual(stmt.Args, []any{`Do\_e%`}) {
		t.Fatalf("unexpected args: %#v", stmt.Args)
	}
}

func TestPrepareLikeBindingRejectsNonString(t *testing.T) {
	bindings := []query.ParameterBinding{
		query.NewLikeBinding(query.Named("lastname"), query.OriginOfParameter("lastname", 1), query.MatchContaining),
	}
	_, err := Prepare("WHERE u.lastname LIKE :lastname", bindings, Args{
		Named: map[string]any{"lastname": 42},
	})
	if err == nil || !strings.Contains(err.Error(), "needs a string") {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestPrepareExpandsInBinding(t *testing.T) {
	bindings := []query.ParameterBinding{
		query.NewInBinding(query.Indexed(1), query.OriginOfParameter("", 1)),
	}
	stmt, err := Prepare("WHERE u.id IN ?1", bindings, Args{
		Positional: []any{[]int{7, 8, 9}},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stmt.SQL != "WHERE u.id IN ($1, $2, $3)" {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{7, 8, 9}) {
		t.Fatalf("unexpected args: %#v", stmt.Args)
	}
}

func TestPrepareResolvesExpressionValues(t *testing.T) {
	pre, err := query.Preprocess(query.NewJpqlQuery("select u from User u where u.tenant = :#{#tenant.id}"))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	stmt, err := Prepare(pre.QueryString(), pre.Bindings, Args{
		Expressions: map[string]any{"#tenant.id": "t-42"},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"t-42"}) {
		t.Fatalf("unexpected args: %#v", stmt.Args)
	}

	if _, err := Prepare(pre.QueryString(), pre.Bindings, Args{}); err == nil || !strings.Contains(err.Error(), "no value for expression") {
		t.Fatalf("expected missing expression error, got %v", err)
	}
}

func TestPrepareLeavesQuotedTextAndCastsAlone(t *testing.T) {
	bindings := []query.ParameterBinding{
		query.NewBinding(query.Indexed(1), query.OriginOfParameter("", 1)),
	}
	stmt, err := Prepare("WHERE u.note = ':nope' AND u.id::text = ?1", bindings, Args{
		Positional: []any{"1"},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stmt.SQL != "WHERE u.note = ':nope' AND u.id::text = $1" {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}
}

func TestPrepareFailsOnUnknownParameter(t *testing.T) {
	_, err := Prepare("WHERE u.id = :missing", nil, Args{})
	if err == nil || !strings.Contains(err.Error(), "no binding for parameter :missing") {
		t.Fatalf("expected binding error, got %v", err)
	}
}

func TestApplyMatchModes(t *testing.T) {
	cases := []struct {
		mode query.MatchMode
		want string
	}{
		{query.MatchExact, "Doe"},
		{query.MatchStartingWith, "Doe%"},
		{query.MatchEndingWith, "%Doe"},
		{query.MatchContaining, "%Doe%"},
	}
	for _, tc := range cases {
		if got := ApplyMatch(tc.mode, "Doe", '\\'); got != tc.want {
			t.Fatalf("ApplyMatch(%v) = %q, want %q", tc.mode, got, tc.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`50%_off\now`, '\\'); got != `50\%\_off\\now` {
		t.Fatalf("EscapeLike = %q", got)
	}
}

func TestApplyLimit(t *testing.T) {
	sql := "SELECT u.* FROM users u"
	if got := ApplyLimit(sql, query.LimitOf(3)); got != sql+" LIMIT 3" {
		t.Fatalf("ApplyLimit = %q", got)
	}
	if got := ApplyLimit(sql, query.Unlimited()); got != sql {
		t.Fatalf("unlimited changed SQL: %q", got)
	}
}

func TestApplyPageable(t *testing.T) {
	sql := "SELECT u.* FROM users u"
	got := ApplyPageable(sql, Pageable{Page: 2, Size: 20})
	if got != sql+" LIMIT 20 OFFSET 40" {
		t.Fatalf("ApplyPageable = %q", got)
	}
	if got := ApplyPageable(sql, Pageable{Page: 0, Size: 20}); got != sql+" LIMIT 20" {
		t.Fatalf("first page = %q", got)
	}
}

func TestPageTotalPages(t *testing.T) {
	page := Page[string]{Size: 20, TotalElements: 41}
	if page.TotalPages() != 3 {
		t.Fatalf("TotalPages = %d, want 3", page.TotalPages())
	}
}
