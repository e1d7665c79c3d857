package query

import (
	"fmt"
	"strings"
	"testing"
)

// testModel is a fixed metamodel view for creator tests.
type testModel struct {
	name  string
	ids   []string
	paths map[string]ResolvedPath
}

func (m testModel) EntityName() string     { return m.name }
func (m testModel) IDAttributes() []string { return m.ids }

func (m testModel) AttributeNames() []string {
	names := make([]string, 0, len(m.paths))
	for name := range m.paths {
		if !strings.Contains(name, ".") {
			names = append(names, name)
		}
	}
	return names
}

func (m testModel) ResolvePath(path string) (ResolvedPath, error) {
	if resolved, ok := m.paths[path]; ok {
		return resolved, nil
	}
	return ResolvedPath{}, fmt.Errorf("no attribute %q on managed type %s", path, m.name)
}

func userModel() testModel {
	return testModel{
		name: "User",
		ids:  []string{"id"},
		paths: map[string]ResolvedPath{
			"id":        {Path: "id"},
			"lastname":  {Path: "lastname", IsString: true},
			"firstname": {Path: "firstname", IsString: true},
			"country":   {Path: "country", IsString: true},
			"age":       {Path: "age"},
			"active":    {Path: "active"},
			"roles":     {Path: "roles", IsCollection: true},
		},
	}
}

func deriveQuery(t *testing.T, method string, sort Sort) DerivedQuery {
	t.Helper()
	tree, err := ParseTree(method)
	if err != nil {
		t.Fatalf("ParseTree(%q) failed: %v", method, err)
	}
	derived, err := NewCreator(tree, ReturnedType{DomainType: "User"}, userModel()).CreateQuery(sort)
	if err != nil {
		t.Fatalf("CreateQuery(%q) failed: %v", method, err)
	}
	return derived
}

func TestCreatorSimpleAndStartingWith(t *testing.T) {
	derived := deriveQuery(t, "findByLastnameAndFirstnameStartingWith", Unsorted())

	want := `SELECT u FROM User u WHERE u.lastname = ?1 AND u.firstname LIKE ?2 ESCAPE '\'`
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
	if len(derived.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(derived.Bindings))
	}
	second := derived.Bindings[1]
	if second.Kind != BindLike || second.Match != MatchStartingWith {
		t.Fatalf("second binding must be a STARTS_WITH like binding, got %s", second)
	}
}

func TestCreatorOrGroups(t *testing.T) {
	derived := deriveQuery(t, "findByLastnameOrFirstname", Unsorted())

	want := "SELECT u FROM User u WHERE u.lastname = ?1 OR u.firstname = ?2"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
}

func TestCreatorParenthesizesMultiPartGroups(t *testing.T) {
	derived := deriveQuery(t, "findByLastnameAndAgeOrFirstnameAndActive", Unsorted())

	want := "SELECT u FROM User u WHERE (u.lastname = ?1 AND u.age = ?2) OR (u.firstname = ?3 AND u.active = ?4)"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
}

func TestCreatorStaticOrderBeforeDynamicSort(t *testing.T) {
	derived := deriveQuery(t, "findByCountryOrderByLastnameAsc",
		NewSort(Order{Property: "firstname", Direction: Desc}))

	want := "SELECT u FROM User u WHERE u.country = ?1 ORDER BY u.lastname asc, u.firstname desc"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
}

func TestCreatorDistinct(t *testing.T) {
	derived := deriveQuery(t, "findDistinctByLastname", Unsorted())

	if !strings.HasPrefix(derived.Query, "SELECT DISTINCT u FROM User u") {
		t.Fatalf("expected DISTINCT selection, got %q", derived.Query)
	}
}

func TestCreatorLimitIsNotALiteral(t *testing.T) {
	derived := deriveQuery(t, "findTop3ByCountry", Unsorted())

	if derived.Limit.Max() != 3 {
		t.Fatalf("expected limit 3, got %v", derived.Limit)
	}
	upper := strings.ToUpper(derived.Query)
	if strings.Contains(upper, "LIMIT") || strings.Contains(upper, "FETCH FIRST") {
		t.Fatalf("limit must not be rendered into the query text: %q", derived.Query)
	}
}

func TestCreatorExists(t *testing.T) {
	derived := deriveQuery(t, "existsByLastname", Unsorted())

	want := "SELECT u.id FROM User u WHERE u.lastname = ?1"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
	if !derived.Exists {
		t.Fatalf("exists flag must be set")
	}
}

func TestCreatorDeleteIsSelectWithFlag(t *testing.T) {
	derived := deriveQuery(t, "deleteByLastname", Unsorted())

	want := "SELECT u FROM User u WHERE u.lastname = ?1"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
	if !derived.Delete {
		t.Fatalf("delete flag must be set")
	}
}

func TestCreatorCountProjection(t *testing.T) {
	derived := deriveQuery(t, "countByCountry", Unsorted())

	want := "SELECT COUNT(u) FROM User u WHERE u.country = ?1"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
}

func TestCreatorCountQueryDropsOrderByAndLimit(t *testing.T) {
	tree, err := ParseTree("findTop5ByCountryOrderByLastnameDesc")
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	derived, err := NewCreator(tree, ReturnedType{DomainType: "User"}, userModel()).CreateCountQuery()
	if err != nil {
		t.Fatalf("CreateCountQuery failed: %v", err)
	}
	if strings.Contains(strings.ToUpper(derived.Query), "ORDER BY") {
		t.Fatalf("count query must not carry ORDER BY: %q", derived.Query)
	}
	if derived.Limit.IsLimited() {
		t.Fatalf("count query must not be limited")
	}
	if !strings.HasPrefix(derived.Query, "SELECT COUNT(u) FROM User u") {
		t.Fatalf("unexpected count query %q", derived.Query)
	}
}

func TestCreatorCountDistinct(t *testing.T) {
	tree, err := ParseTree("findDistinctByCountry")
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	derived, err := NewCreator(tree, ReturnedType{DomainType: "User"}, userModel()).CreateCountQuery()
	if err != nil {
		t.Fatalf("CreateCountQuery failed: %v", err)
	}
	if !strings.HasPrefix(derived.Query, "SELECT COUNT(DISTINCT u) FROM User u") {
		t.Fatalf("unexpected count query %q", derived.Query)
	}
}

func TestCreatorIgnoreCaseFoldsBothSides(t *testing.T) {
	derived := deriveQuery(t, "findByLastnameIgnoreCase", Unsorted())

	want := "SELECT u FROM User u WHERE UPPER(u.lastname) = UPPER(?1)"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
}

func TestCreatorIgnoreCaseOnNonStringFails(t *testing.T) {
	tree, err := ParseTree("findByAgeIgnoreCase")
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	_, err = NewCreator(tree, ReturnedType{DomainType: "User"}, userModel()).CreateQuery(Unsorted())
	if err == nil {
		t.Fatalf("expected case folding on a non-string property to fail")
	}
}

func TestCreatorInBetweenNull(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"findByCountryIn", "SELECT u FROM User u WHERE u.country IN (?1)"},
		{"findByAgeBetween", "SELECT u FROM User u WHERE u.age BETWEEN ?1 AND ?2"},
		{"findByLastnameIsNull", "SELECT u FROM User u WHERE u.lastname IS NULL"},
		{"findByAgeGreaterThanEqual", "SELECT u FROM User u WHERE u.age >= ?1"},
		{"findByActiveTrue", "SELECT u FROM User u WHERE u.active = TRUE"},
	}
	for _, tt := range tests {
		derived := deriveQuery(t, tt.method, Unsorted())
		if derived.Query != tt.want {
			t.Errorf("%s: query = %q, want %q", tt.method, derived.Query, tt.want)
		}
	}
}

func TestCreatorInBindingKind(t *testing.T) {
	derived := deriveQuery(t, "findByCountryIn", Unsorted())

	if len(derived.Bindings) != 1 || derived.Bindings[0].Kind != BindIn {
		t.Fatalf("expected a single IN binding, got %v", derived.Bindings)
	}
}

func TestCreatorCollectionContainingUsesMemberOf(t *testing.T) {
	derived := deriveQuery(t, "findByRolesContaining", Unsorted())

	want := "SELECT u FROM User u WHERE ?1 MEMBER OF u.roles"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
	if derived.Bindings[0].Kind != BindAsIs {
		t.Fatalf("member-of bindings carry no LIKE decoration, got %s", derived.Bindings[0])
	}
}

func TestCreatorUnknownPropertyFails(t *testing.T) {
	tree, err := ParseTree("findByNickname")
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	_, err = NewCreator(tree, ReturnedType{DomainType: "User"}, userModel()).CreateQuery(Unsorted())
	if err == nil {
		t.Fatalf("expected unresolvable property to fail")
	}
	if !strings.Contains(err.Error(), "nickname") {
		t.Fatalf("error must name the offending path, got %v", err)
	}
}

func TestCreatorStructProjectionSelection(t *testing.T) {
	tree, err := ParseTree("findByCountry")
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	returned := ReturnedType{
		DomainType:      "User",
		ReturnedType:    "UserName",
		InputProperties: []string{"firstname", "lastname"},
	}
	derived, err := NewCreator(tree, returned, userModel()).CreateQuery(Unsorted())
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	want := "SELECT u.firstname, u.lastname FROM User u WHERE u.country = ?1"
	if derived.Query != want {
		t.Fatalf("query = %q, want %q", derived.Query, want)
	}
}
