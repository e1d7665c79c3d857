package query

// CaseTemplate names the case-folding function wrapped around both sides of
// an ignore-case comparison. Folding both sides keeps the comparison
// case-insensitive regardless of the database collation.
type CaseTemplate struct {
	operator string
}

var (
	UpperCase = CaseTemplate{operator: "UPPER"}
	LowerCase = CaseTemplate{operator: "LOWER"}
)

func (t CaseTemplate) Operator() string { return t.operator }

// Wrap applies the case-folding function to the given expression.
func (t CaseTemplate) Wrap(expression string) string {
	return t.operator + "(" + expression + ")"
}

// DefaultEscapeCharacter escapes LIKE wildcards inside bound values.
const DefaultEscapeCharacter = '\\'
