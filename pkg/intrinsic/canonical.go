package intrinsic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// CanonicalJSON serializes a runtime value (string, decimal.Decimal,
// bool, nil, []interface{}, map[string]interface{}) to JSON with
// sorted object keys and no incidental whitespace, so that
// States.JsonToString(States.StringToJson(s)) round-trips for any s
// this package itself produced.
func CanonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case decimal.Decimal:
		buf.WriteString(t.String())
	case float64:
		buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical json: unsupported value type %T", v)
	}
	return nil
}

// ParseJSON decodes a JSON document into runtime values, representing
// every number as decimal.Decimal so the intrinsic interpreter's
// arithmetic stays exact.
func ParseJSON(s string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return normalizeDecoded(raw), nil
}

// NormalizeDecoded walks a value decoded with json.Decoder.UseNumber
// and replaces every json.Number with decimal.Decimal, recursing
// through maps and slices. Exported so callers that must decode into a
// typed struct (and so can't route the whole document through
// ParseJSON) can still normalize their own interface{}-typed fields
// after decoding with UseNumber enabled.
func NormalizeDecoded(v interface{}) interface{} {
	return normalizeDecoded(v)
}

func normalizeDecoded(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return t.String()
		}
		return d
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeDecoded(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeDecoded(val)
		}
		return t
	default:
		return v
	}
}

// Stringify coerces a runtime value to the string form used by
// States.Format placeholders and Array.Join elements.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case decimal.Decimal:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := CanonicalJSON(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
