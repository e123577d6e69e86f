package workflow

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// execCondition evaluates the configured conditions in order and routes to
// the first match. The output spreads the matched clause's mapping to the top
// level (so downstream placeholders can reach route keys directly) and always
// carries result, matched_condition, input, and condition_type. With no match
// and no default the input itself becomes the result.
func (e *Engine) execCondition(ctx context.Context, node *Node, input any) Outcome {
	conditions, _ := asSlice(node.Config["conditions"])
	condType := stringField(node.Config, "type", "if")

	matchedIdx := -1
	var clauseOutput any

	for i, raw := range conditions {
		clause, ok := asMap(raw)
		if !ok {
			continue
		}
		field, operator, value := clauseTerms(clause)
		if evalCondition(input, field, operator, value) {
			matchedIdx = i
			clauseOutput = clause["output"]
			break
		}
	}
	if matchedIdx < 0 {
		clauseOutput = node.Config["default"]
		if clauseOutput == nil {
			clauseOutput = node.Config["default_output"]
		}
	}
	if clauseOutput == nil {
		clauseOutput = input
	}

	output := make(map[string]any)
	if m, ok := asMap(clauseOutput); ok {
		for k, v := range m {
			output[k] = cloneValue(v)
		}
	}
	output["result"] = cloneValue(clauseOutput)
	if matchedIdx >= 0 {
		output["matched_condition"] = matchedIdx
	} else {
		output["matched_condition"] = nil
	}
	output["input"] = cloneValue(input)
	output["condition_type"] = condType

	stdout := "Condition: no clause matched, default output used"
	if matchedIdx >= 0 {
		stdout = fmt.Sprintf("Condition: clause %d matched", matchedIdx)
	}
	out := successOutcome(output)
	out.Stdout = stdout
	return out
}

// clauseTerms reads the comparison out of a clause. The canonical shape nests
// it under "condition"; a flat clause with field/operator/value at the top
// level is accepted too.
func clauseTerms(clause map[string]any) (field, operator string, value any) {
	src := clause
	if nested, ok := asMap(clause["condition"]); ok {
		src = nested
	}
	field, _ = src["field"].(string)
	operator, _ = src["operator"].(string)
	return field, operator, src["value"]
}

// evalCondition applies one operator to the field value looked up by dotted
// path. A missing or null field is false for everything except exists (false)
// and != (true iff the compared value is non-null).
func evalCondition(input any, field, operator string, expected any) bool {
	fieldVal, found := lookupPath(input, field)
	if !found {
		fieldVal = nil
	}

	switch operator {
	case "exists":
		return found && fieldVal != nil
	case "==", "equals":
		return conditionEqual(fieldVal, expected)
	case "!=", "not_equals":
		return !conditionEqual(fieldVal, expected)
	case ">", ">=", "<", "<=":
		left, lok := toFloat(fieldVal)
		right, rok := toFloat(expected)
		if fieldVal == nil || !lok || !rok {
			return false
		}
		switch operator {
		case ">":
			return left > right
		case ">=":
			return left >= right
		case "<":
			return left < right
		case "<=":
			return left <= right
		}
	case "contains":
		if fieldVal == nil {
			return false
		}
		return strings.Contains(stringifyValue(fieldVal), stringifyValue(expected))
	}
	return false
}

// conditionEqual compares with numeric promotion: "80" equals 80. Everything
// else falls back to deep equality.
func conditionEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	return reflect.DeepEqual(a, b)
}
