package jsonpath

import (
	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// Get resolves expr (a "$..." or "$$..." expression) against data.
//
// Return shape:
//   - a path ending in a slice selector always yields a list, even with
//     zero or one elements;
//   - multiple matches yield a list;
//   - exactly one non-slice match that is itself an object or array is
//     returned as-is;
//   - exactly one non-slice scalar match is returned as-is;
//   - zero non-slice matches is reported as wkerrors.PathNotFound.
func Get(data interface{}, expr string) (interface{}, error) {
	rest, _ := stripRoot(expr)
	if rest == "" {
		return data, nil
	}
	segs, err := parse(rest)
	if err != nil {
		return nil, err
	}
	return evalSegments(data, segs, expr)
}

func evalSegments(data interface{}, segs []segment, expr string) (interface{}, error) {
	matches := []interface{}{data}
	endsInSlice := len(segs) > 0 && segs[len(segs)-1].kind == segSlice

	for _, seg := range segs {
		var next []interface{}
		for _, cur := range matches {
			next = append(next, applySegment(cur, seg)...)
		}
		matches = next
	}

	if endsInSlice {
		if matches == nil {
			matches = []interface{}{}
		}
		return matches, nil
	}

	switch len(matches) {
	case 0:
		return nil, &wkerrors.PathNotFound{Expr: expr}
	case 1:
		return matches[0], nil
	default:
		return matches, nil
	}
}

func applySegment(cur interface{}, seg segment) []interface{} {
	switch seg.kind {
	case segField:
		if m, ok := cur.(map[string]interface{}); ok {
			if v, present := m[seg.name]; present {
				return []interface{}{v}
			}
		}
		return nil
	case segWildcard:
		switch v := cur.(type) {
		case map[string]interface{}:
			out := make([]interface{}, 0, len(v))
			for _, val := range v {
				out = append(out, val)
			}
			return out
		case []interface{}:
			return append([]interface{}{}, v...)
		}
		return nil
	case segIndex:
		arr, ok := cur.([]interface{})
		if !ok {
			return nil
		}
		i := normalizeIndex(seg.index, len(arr))
		if i < 0 || i >= len(arr) {
			return nil
		}
		return []interface{}{arr[i]}
	case segIndices:
		arr, ok := cur.([]interface{})
		if !ok {
			return nil
		}
		var out []interface{}
		for _, idx := range seg.indices {
			i := normalizeIndex(idx, len(arr))
			if i >= 0 && i < len(arr) {
				out = append(out, arr[i])
			}
		}
		return out
	case segSlice:
		arr, ok := cur.([]interface{})
		if !ok {
			return nil
		}
		start, end := sliceBounds(seg, len(arr))
		out := make([]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			out = append(out, arr[i])
		}
		return out
	case segRecursive:
		var out []interface{}
		collectDescendants(cur, seg.name, &out)
		return out
	}
	return nil
}

func normalizeIndex(i, length int) int {
	if i < 0 {
		return length + i
	}
	return i
}

// sliceBounds implements Python-style slice clamping: negative indices
// count from the end, and out-of-range bounds clamp to [0, length].
func sliceBounds(seg segment, length int) (int, int) {
	start := 0
	if seg.start != nil {
		start = *seg.start
		if start < 0 {
			start += length
		}
	}
	end := length
	if seg.end != nil {
		end = *seg.end
		if end < 0 {
			end += length
		}
	}
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	if end < 0 {
		end = 0
	}
	if end > length {
		end = length
	}
	if end < start {
		end = start
	}
	return start, end
}

func collectDescendants(cur interface{}, name string, out *[]interface{}) {
	switch v := cur.(type) {
	case map[string]interface{}:
		if val, ok := v[name]; ok {
			*out = append(*out, val)
		}
		for _, val := range v {
			collectDescendants(val, name, out)
		}
	case []interface{}:
		for _, elem := range v {
			collectDescendants(elem, name, out)
		}
	}
}
