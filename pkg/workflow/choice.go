package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lyzr/wkflws/pkg/jsonpath"
	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// SelectNext evaluates a Choice state's rules in declaration order and
// returns the Next of the first matching rule. If none match, Default
// is returned (which may be empty, signaling no transition).
func SelectNext(st *State, input, context interface{}) (string, error) {
	for _, rule := range st.Choices {
		ok, err := evalRule(rule, input, context)
		if err != nil {
			return "", err
		}
		if ok {
			return rule.Next, nil
		}
	}
	return st.Default, nil
}

func evalRule(rule ChoiceRule, input, context interface{}) (bool, error) {
	if len(rule.And) > 0 {
		for _, sub := range rule.And {
			ok, err := evalRule(sub, input, context)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
	if rule.Not != nil {
		ok, err := evalRule(*rule.Not, input, context)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	if rule.Variable == "" {
		return false, &wkerrors.ExecutionError{Msg: "choice rule has neither a combinator nor a Variable"}
	}
	val, present, err := resolveVariable(rule.Variable, input, context)
	if err != nil {
		return false, err
	}

	if rule.IsPresent != nil {
		return present == *rule.IsPresent, nil
	}
	if !present {
		return false, &wkerrors.ExecutionError{Msg: "choice rule variable not present: " + rule.Variable}
	}
	if rule.IsNull != nil {
		return (val == nil) == *rule.IsNull, nil
	}
	if rule.IsNumeric != nil {
		_, ok := val.(decimal.Decimal)
		return ok == *rule.IsNumeric, nil
	}
	if rule.IsString != nil {
		_, ok := val.(string)
		return ok == *rule.IsString, nil
	}
	if rule.IsBoolean != nil {
		_, ok := val.(bool)
		return ok == *rule.IsBoolean, nil
	}
	if rule.StringEquals != nil {
		s, ok := val.(string)
		return ok && s == *rule.StringEquals, nil
	}
	if n := rule.NumericEquals; n != nil {
		v, ok := val.(decimal.Decimal)
		return ok && v.Equal(*n), nil
	}
	if n := rule.NumericGreaterThan; n != nil {
		v, ok := val.(decimal.Decimal)
		return ok && v.GreaterThan(*n), nil
	}
	if n := rule.NumericGreaterThanEquals; n != nil {
		v, ok := val.(decimal.Decimal)
		return ok && v.GreaterThanOrEqual(*n), nil
	}
	if n := rule.NumericLessThan; n != nil {
		v, ok := val.(decimal.Decimal)
		return ok && v.LessThan(*n), nil
	}
	if n := rule.NumericLessThanEquals; n != nil {
		v, ok := val.(decimal.Decimal)
		return ok && v.LessThanOrEqual(*n), nil
	}

	return false, &wkerrors.ExecutionError{Msg: "choice rule has no recognized comparator: " + rule.Variable}
}

// resolveVariable reads a choice rule's Variable path against input,
// or against context when prefixed with "$$". present is false when
// the path was well-formed but simply absent from the data (not an
// error condition for IsPresent checks).
func resolveVariable(expr string, input, context interface{}) (value interface{}, present bool, err error) {
	root := input
	if strings.HasPrefix(expr, "$$") {
		root = context
	}
	v, getErr := jsonpath.Get(root, expr)
	if getErr != nil {
		if _, ok := getErr.(*wkerrors.PathNotFound); ok {
			return nil, false, nil
		}
		return nil, false, getErr
	}
	return v, true, nil
}
