package query

import "testing"

func TestParseTreeSimplePredicate(t *testing.T) {
	tree, err := ParseTree("findByLastname")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	groups := tree.Groups()
	if len(groups) != 1 || len(groups[0]) != 1 {
		t.Fatalf("unexpected groups: %#v", groups)
	}
	part := groups[0][0]
	if part.Property != "lastname" || part.Type != SimpleProperty {
		t.Fatalf("unexpected part: %#v", part)
	}
}

func TestParseTreeOrOfAndGroups(t *testing.T) {
	tree, err := ParseTree("findByLastnameAndFirstnameOrAgeLessThan")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	groups := tree.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 OR-groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("expected 2 AND-parts in first group, got %d", len(groups[0]))
	}
	if groups[0][0].Property != "lastname" || groups[0][1].Property != "firstname" {
		t.Fatalf("unexpected first group: %#v", groups[0])
	}
	if groups[1][0].Property != "age" || groups[1][0].Type != LessThan {
		t.Fatalf("unexpected second group: %#v", groups[1])
	}
}

func TestParseTreeOperatorKeywords(t *testing.T) {
	cases := []struct {
		method   string
		property string
		typ      PartType
	}{
		{"findByAgeGreaterThan", "age", GreaterThan},
		{"findByAgeGreaterThanEqual", "age", GreaterThanEqual},
		{"findByAgeBetween", "age", Between},
		{"findByCreatedAtAfter", "createdAt", After},
		{"findByCreatedAtBefore", "createdAt", Before},
		{"findByLastnameStartingWith", "lastname", StartingWith},
		{"findByLastnameEndsWith", "lastname", EndingWith},
		{"findByLastnameContaining", "lastname", Containing},
		{"findByLastnameNotContaining", "lastname", NotContaining},
		{"findByLastnameLike", "lastname", Like},
		{"findByLastnameNotLike", "lastname", NotLike},
		{"findByRolesIn", "roles", In},
		{"findByRolesNotIn", "roles", NotIn},
		{"findByActiveTrue", "active", True},
		{"findByActiveIsFalse", "active", False},
		{"findByManagerIsNull", "manager", IsNull},
		{"findByManagerNotNull", "manager", IsNotNull},
		{"findByRolesIsEmpty", "roles", IsEmpty},
		{"findByLastnameNot", "lastname", NegatingSimpleProperty},
		{"findByLastnameIs", "lastname", SimpleProperty},
	}
	for _, tc := range cases {
		tree, err := ParseTree(tc.method)
		if err != nil {
			t.Fatalf("ParseTree(%s): %v", tc.method, err)
		}
		part := tree.Groups()[0][0]
		if part.Property != tc.property || part.Type != tc.typ {
			t.Fatalf("%s: got %q/%d, want %q/%d", tc.method, part.Property, part.Type, tc.property, tc.typ)
		}
	}
}

func TestParseTreeSubjectFlags(t *testing.T) {
	tree, err := ParseTree("countByActive")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if !tree.Count {
		t.Fatalf("expected count tree")
	}

	tree, err = ParseTree("existsByLastname")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if !tree.Exists {
		t.Fatalf("expected exists tree")
	}

	for _, method := range []string{"deleteByLastname", "removeByLastname"} {
		tree, err = ParseTree(method)
		if err != nil {
			t.Fatalf("ParseTree(%s): %v", method, err)
		}
		if !tree.Delete {
			t.Fatalf("%s: expected delete tree", method)
		}
	}
}

func TestParseTreeDistinctAndLimit(t *testing.T) {
	tree, err := ParseTree("findDistinctTop3ByLastname")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if !tree.Distinct {
		t.Fatalf("expected distinct tree")
	}
	if !tree.ResultLimit().IsLimited() || tree.ResultLimit().Max() != 3 {
		t.Fatalf("unexpected limit: %#v", tree.ResultLimit())
	}

	tree, err = ParseTree("findFirstByLastname")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if tree.ResultLimit().Max() != 1 {
		t.Fatalf("First should limit to 1, got %#v", tree.ResultLimit())
	}
}

func TestParseTreeOrderBy(t *testing.T) {
	tree, err := ParseTree("findByActiveTrueOrderByLastnameDescFirstnameAsc")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	orders := tree.Sort().Orders()
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %#v", orders)
	}
	if orders[0].Property != "lastname" || orders[0].Direction != Desc {
		t.Fatalf("unexpected first order: %#v", orders[0])
	}
	if orders[1].Property != "firstname" || orders[1].Direction != Asc {
		t.Fatalf("unexpected second order: %#v", orders[1])
	}
}

func TestParseTreeOrderByWithoutPredicate(t *testing.T) {
	tree, err := ParseTree("findByOrderByLastname")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if len(tree.Groups()) != 0 {
		t.Fatalf("expected no predicate groups, got %#v", tree.Groups())
	}
	orders := tree.Sort().Orders()
	if len(orders) != 1 || orders[0].Property != "lastname" {
		t.Fatalf("unexpected orders: %#v", orders)
	}
}

func TestParseTreeIgnoreCase(t *testing.T) {
	tree, err := ParseTree("findByLastnameIgnoreCase")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if tree.Groups()[0][0].IgnoreCase != IgnoreCaseAlways {
		t.Fatalf("expected always ignore case")
	}

	tree, err = ParseTree("findByLastnameAndFirstnameAllIgnoreCase")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	for _, part := range tree.Groups()[0] {
		if part.IgnoreCase != IgnoreCaseWhenPossible {
			t.Fatalf("expected when-possible ignore case on %#v", part)
		}
	}
}

func TestParseTreeNestedPropertyPath(t *testing.T) {
	tree, err := ParseTree("findByAddress_City")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if got := tree.Groups()[0][0].Property; got != "address.city" {
		t.Fatalf("property = %q, want address.city", got)
	}
}

func TestParseTreeExportedNames(t *testing.T) {
	// Exported Go method names parse through the same path once the verb
	// is uncapitalized by the caller; a capitalized verb still yields a
	// usable predicate.
	tree, err := ParseTree("FindByLastname")
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if tree.Groups()[0][0].Property != "lastname" {
		t.Fatalf("unexpected part: %#v", tree.Groups()[0][0])
	}
}

func TestParseTreeRejectsMissingBy(t *testing.T) {
	if _, err := ParseTree("findAllUsers"); err == nil {
		t.Fatalf("expected error for method without By")
	}
	if _, err := ParseTree(""); err == nil {
		t.Fatalf("expected error for empty method name")
	}
}

func TestPartTypeArgumentCounts(t *testing.T) {
	if Between.NumberOfArguments() != 2 {
		t.Fatalf("Between should take 2 arguments")
	}
	if True.NumberOfArguments() != 0 {
		t.Fatalf("True should take no arguments")
	}
	if GreaterThan.NumberOfArguments() != 1 {
		t.Fatalf("GreaterThan should take 1 argument")
	}
	if !Containing.IsLikeType() || In.IsLikeType() {
		t.Fatalf("unexpected like-type classification")
	}
}
