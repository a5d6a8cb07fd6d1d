package engine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Route conditions use the restricted grammar
//
//	<path> == '<literal>'
//
// where the path is a dot-separated field access rooted at the document,
// such as $.type or $.order.status. Evaluation is total: a condition
// that does not conform to the grammar, a path segment that does not
// exist and an intermediate node that is not an object all evaluate to
// false rather than failing the transformation.

// conditionTerm is a parsed route condition.
type conditionTerm struct {
	segments []string
	literal  string
}

// parseCondition splits a condition into path segments and the quoted
// literal. The second return is false when the condition does not
// conform to the grammar.
func parseCondition(condition string) (conditionTerm, bool) {
	parts := strings.SplitN(condition, "==", 2)
	if len(parts) != 2 {
		return conditionTerm{}, false
	}

	path := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(path, "$.") {
		return conditionTerm{}, false
	}
	segments := strings.Split(path[2:], ".")
	for _, segment := range segments {
		if segment == "" {
			return conditionTerm{}, false
		}
	}

	literal := strings.TrimSpace(parts[1])
	if len(literal) < 2 || literal[0] != '\'' || literal[len(literal)-1] != '\'' {
		return conditionTerm{}, false
	}

	return conditionTerm{
		segments: segments,
		literal:  literal[1 : len(literal)-1],
	}, true
}

// evaluateCondition reports whether the condition holds for the
// document. It never fails.
func evaluateCondition(doc map[string]interface{}, condition string) bool {
	term, ok := parseCondition(condition)
	if !ok {
		return false
	}

	value, ok := lookupPath(doc, term.segments)
	if !ok {
		return false
	}

	actual, ok := canonicalScalar(value)
	if !ok {
		return false
	}

	return actual == term.literal
}

// lookupPath walks the document along the path segments.
func lookupPath(doc map[string]interface{}, segments []string) (interface{}, bool) {
	var current interface{} = doc
	for _, segment := range segments {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// canonicalScalar renders a scalar leaf in its canonical string form.
// Objects, arrays and nulls have no canonical form and never match.
func canonicalScalar(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
