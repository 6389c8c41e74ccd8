package jsonpath

import "github.com/lyzr/wkflws/pkg/wkerrors"

// Set grafts newValue into data at expr (a restricted "reference path":
// dot/bracket field and index segments only, no wildcards/slices/
// filters/descendants). When createIfMissing is true, intermediate
// objects and array slots are created as needed. Set never mutates its
// input in place; it returns a new top-level value sharing untouched
// branches with the original.
func Set(data interface{}, newValue interface{}, expr string, createIfMissing bool) (interface{}, error) {
	rest, isContext := stripRoot(expr)
	if isContext {
		return nil, &wkerrors.PathNotFound{Expr: expr}
	}
	segs, err := parse(rest)
	if err != nil {
		return nil, err
	}
	for _, seg := range segs {
		if seg.kind != segField && seg.kind != segIndex {
			return nil, &MalformedPathError{Expr: expr, Msg: "reference paths support only field and index segments"}
		}
	}
	return setSegments(data, segs, newValue, createIfMissing)
}

func setSegments(cur interface{}, segs []segment, newValue interface{}, create bool) (interface{}, error) {
	if len(segs) == 0 {
		return newValue, nil
	}
	seg := segs[0]
	switch seg.kind {
	case segField:
		m, _ := cur.(map[string]interface{})
		nm := make(map[string]interface{}, len(m)+1)
		for k, v := range m {
			nm[k] = v
		}
		child, exists := nm[seg.name]
		if !exists && !create {
			return nil, &wkerrors.PathNotFound{Expr: seg.name}
		}
		newChild, err := setSegments(child, segs[1:], newValue, create)
		if err != nil {
			return nil, err
		}
		nm[seg.name] = newChild
		return nm, nil
	case segIndex:
		arr, _ := cur.([]interface{})
		na := append([]interface{}{}, arr...)
		idx := normalizeIndex(seg.index, len(na))
		if idx < 0 {
			return nil, &MalformedPathError{Expr: "", Msg: "negative index out of range"}
		}
		if idx >= len(na) {
			if !create {
				return nil, &wkerrors.PathNotFound{Expr: ""}
			}
			for len(na) <= idx {
				na = append(na, nil)
			}
		}
		newChild, err := setSegments(na[idx], segs[1:], newValue, create)
		if err != nil {
			return nil, err
		}
		na[idx] = newChild
		return na, nil
	}
	return nil, &MalformedPathError{Expr: "", Msg: "unsupported segment"}
}
