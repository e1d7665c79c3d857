package query

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// syntheticExpressionPrefix names the parameters minted for extracted value
// expressions when the query binds parameters by name.
const syntheticExpressionPrefix = "__synthetic_"

// expressionCache memoizes validated expressions. Parsing is a pure function
// of the template text, so a small shared LRU is safe across repositories.
var expressionCache, _ = lru.New[string, ValueExpression](32)

// parseValueExpression validates the template text and returns the parsed
// expression. Results are cached.
func parseValueExpression(text string) (ValueExpression, error) {
	if cached, ok := expressionCache.Get(text); ok {
		return cached, nil
	}
	if strings.TrimSpace(text) == "" {
		return ValueExpression{}, fmt.Errorf("value expression must not be empty")
	}
	depth := 0
	for _, r := range text {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return ValueExpression{}, fmt.Errorf("unbalanced braces in value expression %q", text)
			}
		}
	}
	if depth != 0 {
		return ValueExpression{}, fmt.Errorf("unbalanced braces in value expression %q", text)
	}
	expression := ValueExpression{expression: text}
	expressionCache.Add(text, expression)
	return expression, nil
}

// extractedQuery is the result of pulling value-expression templates out of a
// query string before placeholder scanning.
type extractedQuery struct {
	query       string
	expressions map[string]ValueExpression
	quotations  quotedRegions
}

// size returns how many synthetic parameters the extraction introduced.
func (e extractedQuery) size() int { return len(e.expressions) }

// expressionFor looks up the expression bound to the given synthetic
// parameter key (a name or a rendered index).
func (e extractedQuery) expressionFor(key string) (ValueExpression, bool) {
	expression, ok := e.expressions[key]
	return expression, ok
}

// extractExpressions replaces every #{...}, :#{...} and ?#{...} template with
// a synthetic placeholder so the placeholder scanner never needs to
// understand expression syntax. When the query binds by index, synthetic
// parameters are numbered beyond greatestIndex so real and synthetic indices
// never collide.
func extractExpressions(query string, byIndex bool, greatestIndex int) (extractedQuery, error) {
	result := extractedQuery{expressions: map[string]ValueExpression{}}

	var sb strings.Builder
	quotes := scanQuotedRegions(query)
	count := 0

	for i := 0; i < len(query); {
		if quotes.isQuoted(i) {
			sb.WriteByte(query[i])
			i++
			continue
		}

		start, prefixLen := -1, 0
		if strings.HasPrefix(query[i:], ":#{") || strings.HasPrefix(query[i:], "?#{") {
			start, prefixLen = i, 3
		} else if strings.HasPrefix(query[i:], "#{") {
			start, prefixLen = i, 2
		}
		if start < 0 {
			sb.WriteByte(query[i])
			i++
			continue
		}

		end, err := findClosingBrace(query, start+prefixLen)
		if err != nil {
			return extractedQuery{}, err
		}
		expression, err := parseValueExpression(query[start+prefixLen : end])
		if err != nil {
			return extractedQuery{}, err
		}

		count++
		var key, replacement string
		if byIndex {
			key = strconv.Itoa(greatestIndex + count)
			replacement = "?" + key
		} else {
			key = syntheticExpressionPrefix + strconv.Itoa(count)
			replacement = ":" + key
		}
		result.expressions[key] = expression
		sb.WriteString(replacement)
		i = end + 1
	}

	result.query = sb.String()
	result.quotations = scanQuotedRegions(result.query)
	return result, nil
}

func findClosingBrace(query string, from int) (int, error) {
	depth := 1
	for i := from; i < len(query); i++ {
		switch query[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unclosed value expression in query %q", query)
}

// quotedRegions records the character spans of string literals so placeholder
// scanning can skip text inside quotes.
type quotedRegions struct {
	spans [][2]int
}

func (q quotedRegions) isQuoted(pos int) bool {
	for _, span := range q.spans {
		if pos >= span[0] && pos <= span[1] {
			return true
		}
	}
	return false
}

// scanQuotedRegions finds single- and double-quoted literals. A doubled quote
// inside a literal ('it''s') escapes the quote.
func scanQuotedRegions(query string) quotedRegions {
	var regions quotedRegions
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '\'' && c != '"' {
			continue
		}
		start := i
		for i++; i < len(query); i++ {
			if query[i] != c {
				continue
			}
			if i+1 < len(query) && query[i+1] == c {
				i++
				continue
			}
			break
		}
		end := i
		if end >= len(query) {
			end = len(query) - 1
		}
		regions.spans = append(regions.spans, [2]int{start, end})
	}
	return regions
}
