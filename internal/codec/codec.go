// Package codec implements the wire encoding for prop graphs crossing the
// runtime boundary. The restricted side encodes render props into a single
// string, the privileged host decodes the exact inverse, including values
// plain JSON cannot carry (dates, regular expressions, ordered maps, sets).
package codec

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// tagKey marks wrapper objects in the wire format. Plain objects that
// happen to contain the key themselves are escaped with a Literal wrapper.
const tagKey = "$type"

// Wire format tags.
const (
	tagDate    = "Date"
	tagRegExp  = "RegExp"
	tagMap     = "Map"
	tagSet     = "Set"
	tagInt     = "Int"
	tagLiteral = "Literal"
)

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   any
	Value any
}

// Map is an ordered mapping with arbitrary (serializable) keys, the
// analogue of a JS Map. Plain map[string]any values lose ordering and
// restrict keys to strings; Map preserves both.
type Map []Entry

// Set is an ordered collection of unique values, the analogue of a JS Set.
// Uniqueness is the caller's responsibility; the codec only preserves order.
type Set []any

// SerializationError reports a value in the prop graph that cannot cross
// the runtime boundary, most commonly a function.
type SerializationError struct {
	// Path locates the offending value within the graph, e.g. "$.props.onClick".
	Path string
	// Kind names the unsupported kind, e.g. "func".
	Kind string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s value at %s: functions and other runtime-bound values cannot cross into the host process", e.Kind, e.Path)
}

// Encode converts a prop value graph into its wire string. The graph may
// contain nil, booleans, strings, integers, floats, []any, map[string]any,
// time.Time, *regexp.Regexp, Map and Set, nested arbitrarily. Integers are
// canonicalized to int64 on the far side. Any function, channel, or other
// runtime-bound value anywhere in the graph fails with *SerializationError.
func Encode(v any) (string, error) {
	tree, err := marshalValue(v, "$")
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("encoding prop graph: %w", err)
	}
	return string(b), nil
}

// EncodeProps encodes a props mapping, treating nil as an empty object.
func EncodeProps(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	return Encode(props)
}

// Decode is the exact inverse of Encode.
func Decode(s string) (any, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decoding prop graph: %w", err)
	}
	return unmarshalValue(raw)
}

// DecodeProps decodes an encoded props mapping. An empty string means no
// props were supplied and yields an empty map.
func DecodeProps(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	v, err := Decode(s)
	if err != nil {
		return nil, err
	}
	props, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decoding props: expected an object, got %T", v)
	}
	return props, nil
}

func wrap(tag string, fields map[string]any) map[string]any {
	out := map[string]any{tagKey: tag}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func marshalValue(v any, path string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float32, float64:
		return x, nil
	case int:
		return wrap(tagInt, map[string]any{"value": fmt.Sprintf("%d", x)}), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return wrap(tagInt, map[string]any{"value": fmt.Sprintf("%d", x)}), nil
	case time.Time:
		return wrap(tagDate, map[string]any{"value": x.UTC().Format(time.RFC3339Nano)}), nil
	case *regexp.Regexp:
		if x == nil {
			return nil, nil
		}
		return wrap(tagRegExp, map[string]any{"source": x.String()}), nil
	case Map:
		entries := make([]any, 0, len(x))
		for i, e := range x {
			k, err := marshalValue(e.Key, fmt.Sprintf("%s.<key %d>", path, i))
			if err != nil {
				return nil, err
			}
			val, err := marshalValue(e.Value, fmt.Sprintf("%s.<entry %d>", path, i))
			if err != nil {
				return nil, err
			}
			entries = append(entries, []any{k, val})
		}
		return wrap(tagMap, map[string]any{"entries": entries}), nil
	case Set:
		values := make([]any, 0, len(x))
		for i, e := range x {
			val, err := marshalValue(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			values = append(values, val)
		}
		return wrap(tagSet, map[string]any{"values": values}), nil
	case []any:
		out := make([]any, 0, len(x))
		for i, e := range x {
			val, err := marshalValue(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case map[string]any:
		obj := make(map[string]any, len(x))
		for k, e := range x {
			val, err := marshalValue(e, path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = val
		}
		if _, clash := x[tagKey]; clash {
			return wrap(tagLiteral, map[string]any{"value": obj}), nil
		}
		return obj, nil
	}
	return marshalReflected(reflect.ValueOf(v), path)
}

// marshalReflected handles values outside the canonical prop types: typed
// slices, typed maps, pointers, and the unsupported kinds that must fail.
func marshalReflected(rv reflect.Value, path string) (any, error) {
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr:
		return nil, &SerializationError{Path: path, Kind: rv.Kind().String()}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return marshalValue(rv.Elem().Interface(), path)
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := marshalValue(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &SerializationError{Path: path, Kind: "map with non-string keys (use codec.Map)"}
		}
		obj := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = iter.Value().Interface()
		}
		return marshalValue(obj, path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return wrap(tagInt, map[string]any{"value": fmt.Sprintf("%d", rv.Int())}), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return wrap(tagInt, map[string]any{"value": fmt.Sprintf("%d", rv.Uint())}), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	}
	return nil, &SerializationError{Path: path, Kind: rv.Kind().String()}
}

func unmarshalValue(raw any) (any, error) {
	switch x := raw.(type) {
	case map[string]any:
		tag, tagged := x[tagKey].(string)
		if !tagged {
			return unmarshalObject(x)
		}
		return unmarshalTagged(tag, x)
	case []any:
		out := make([]any, 0, len(x))
		for _, e := range x {
			v, err := unmarshalValue(e)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		// nil, bool, string, float64 pass through unchanged.
		return x, nil
	}
}

func unmarshalObject(obj map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, e := range obj {
		v, err := unmarshalValue(e)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func unmarshalTagged(tag string, obj map[string]any) (any, error) {
	switch tag {
	case tagDate:
		s, err := cast.ToStringE(obj["value"])
		if err != nil {
			return nil, fmt.Errorf("decoding Date: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decoding Date %q: %w", s, err)
		}
		return t, nil
	case tagRegExp:
		s, err := cast.ToStringE(obj["source"])
		if err != nil {
			return nil, fmt.Errorf("decoding RegExp: %w", err)
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("decoding RegExp %q: %w", s, err)
		}
		return re, nil
	case tagInt:
		s, err := cast.ToStringE(obj["value"])
		if err != nil {
			return nil, fmt.Errorf("decoding Int: %w", err)
		}
		n, err := cast.ToInt64E(s)
		if err != nil {
			return nil, fmt.Errorf("decoding Int %q: %w", s, err)
		}
		return n, nil
	case tagMap:
		entries, ok := obj["entries"].([]any)
		if !ok {
			return nil, fmt.Errorf("decoding Map: malformed entries")
		}
		m := make(Map, 0, len(entries))
		for _, e := range entries {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("decoding Map: malformed entry %v", e)
			}
			k, err := unmarshalValue(pair[0])
			if err != nil {
				return nil, err
			}
			v, err := unmarshalValue(pair[1])
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: k, Value: v})
		}
		return m, nil
	case tagSet:
		values, ok := obj["values"].([]any)
		if !ok {
			return nil, fmt.Errorf("decoding Set: malformed values")
		}
		s := make(Set, 0, len(values))
		for _, e := range values {
			v, err := unmarshalValue(e)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case tagLiteral:
		inner, ok := obj["value"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decoding Literal: malformed value")
		}
		return unmarshalObject(inner)
	}
	return nil, fmt.Errorf("decoding: unknown wire tag %q", tag)
}
