package query

import (
	"strings"
	"testing"
)

func TestDeriveCountQuery(t *testing.T) {
	tests := []struct {
		query      string
		native     bool
		projection string
		want       string
	}{
		{"select u from User u", false, "",
			"select count(u) from User u"},
		{"select u from User u where u.name = ?1", false, "",
			"select count(u) from User u where u.name = ?1"},
		{"select distinct u from User u where u.name = ?1", false, "",
			"select count(distinct u) from User u where u.name = ?1"},
		{"from User u", false, "",
			"select count(u) from User u"},
		{"select u from User u order by u.name", false, "",
			"select count(u) from User u"},
		{"select new com.example.NameOnly(u.name) from User u", false, "",
			"select count(u) from User u"},
		{"select u from User u", false, "u.id",
			"select count(u.id) from User u"},
		{"select * from users u", true, "",
			"select count(1) from users u"},
		{"select * from users u", false, "",
			"select count(u) from users u"},
	}
	for _, tt := range tests {
		got := DeriveCountQuery(tt.query, tt.native, tt.projection)
		if got != tt.want {
			t.Errorf("DeriveCountQuery(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestDeriveCountQueryNeverKeepsOrderBy(t *testing.T) {
	got := DeriveCountQuery("select u from User u where u.age > ?1 order by u.name asc, u.age desc", false, "")
	if strings.Contains(strings.ToLower(got), "order by") {
		t.Fatalf("count query must not carry an ORDER BY clause: %q", got)
	}
}

func TestDetectAlias(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"select u from User u", "u"},
		{"select u from User as u", "u"},
		{"from User u where u.active = true", "u"},
		{"select u from User u where u.id in (select a.userId from Attachment a)", "u"},
		{"from User", ""},
		{"select u from User u order by u.name", "u"},
		{"select u from User u join u.roles r where r.name = :name", "u"},
	}
	for _, tt := range tests {
		if got := DetectAlias(tt.query); got != tt.want {
			t.Errorf("DetectAlias(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestHasConstructorExpression(t *testing.T) {
	if !HasConstructorExpression("select new com.example.NameOnly(u.name) from User u") {
		t.Fatalf("expected constructor expression to be detected")
	}
	if HasConstructorExpression("select u from User u") {
		t.Fatalf("plain selects have no constructor expression")
	}
}

func TestApplySorting(t *testing.T) {
	sort := NewSort(Order{Property: "name", Direction: Asc})

	got, err := ApplySorting("select u from User u", sort)
	if err != nil {
		t.Fatalf("ApplySorting failed: %v", err)
	}
	if got != "select u from User u order by u.name asc" {
		t.Fatalf("unexpected sorted query %q", got)
	}
}

func TestApplySortingExtendsExistingOrderBy(t *testing.T) {
	sort := NewSort(Order{Property: "name", Direction: Asc})

	got, err := ApplySorting("select u from User u order by u.age desc", sort)
	if err != nil {
		t.Fatalf("ApplySorting failed: %v", err)
	}
	if got != "select u from User u order by u.age desc, u.name asc" {
		t.Fatalf("unexpected sorted query %q", got)
	}
}

func TestApplySortingIgnoreCase(t *testing.T) {
	sort := NewSort(Order{Property: "name", Direction: Desc, IgnoreCase: true})

	got, err := ApplySorting("select u from User u", sort)
	if err != nil {
		t.Fatalf("ApplySorting failed: %v", err)
	}
	if got != "select u from User u order by lower(u.name) desc" {
		t.Fatalf("unexpected sorted query %q", got)
	}
}

func TestApplySortingLeavesJoinAliasUnqualified(t *testing.T) {
	sort := NewSort(Order{Property: "r.name", Direction: Asc})

	got, err := ApplySorting("select u from User u join u.roles r", sort)
	if err != nil {
		t.Fatalf("ApplySorting failed: %v", err)
	}
	if !strings.HasSuffix(got, "order by r.name asc") {
		t.Fatalf("join alias must not be re-qualified: %q", got)
	}
}

func TestApplySortingFunctionReference(t *testing.T) {
	sort := NewSort(Order{Property: "LENGTH(name)", Direction: Desc})

	got, err := ApplySorting("select u from User u", sort)
	if err != nil {
		t.Fatalf("ApplySorting failed: %v", err)
	}
	if !strings.HasSuffix(got, "order by LENGTH(name) desc") {
		t.Fatalf("function references must stay unqualified: %q", got)
	}
}

func TestApplySortingRejectsUnsafeProperty(t *testing.T) {
	sort := NewSort(Order{Property: "name; drop table users", Direction: Asc})

	if _, err := ApplySorting("select u from User u", sort); err == nil {
		t.Fatalf("expected unsafe sort expression to be rejected")
	}
}

func TestApplySortingUnsorted(t *testing.T) {
	got, err := ApplySorting("select u from User u", Unsorted())
	if err != nil {
		t.Fatalf("ApplySorting failed: %v", err)
	}
	if got != "select u from User u" {
		t.Fatalf("unsorted input must leave the query alone, got %q", got)
	}
}

func TestPreprocessNormalizesPlaceholders(t *testing.T) {
	pre, err := Preprocess(NewJpqlQuery("select u from User u where u.name like %:name%"))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if pre.QueryString() != "select u from User u where u.name like :name" {
		t.Fatalf("unexpected normalized query %q", pre.QueryString())
	}
	if len(pre.Bindings) != 1 || pre.Bindings[0].Match != MatchContaining {
		t.Fatalf("unexpected bindings %v", pre.Bindings)
	}
}

func TestRewriteTextKeepsBindings(t *testing.T) {
	pre, err := Preprocess(NewJpqlQuery("select u from User u where u.name like :name%"))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	count := pre.RewriteText(DeriveCountQuery(pre.QueryString(), false, ""))

	if count.QueryString() != "select count(u) from User u where u.name like :name" {
		t.Fatalf("unexpected count query %q", count.QueryString())
	}
	if len(count.Bindings) != 1 || count.Bindings[0].Match != MatchStartingWith {
		t.Fatalf("rewritten query must keep the parsed bindings, got %v", count.Bindings)
	}
}
