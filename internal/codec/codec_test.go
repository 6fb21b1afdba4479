package codec

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// valuesEqual compares decoded prop graphs, treating time.Time by instant
// and *regexp.Regexp by source text.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case *regexp.Regexp:
		y, ok := b.(*regexp.Regexp)
		return ok && x.String() == y.String()
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case Set:
		y, ok := b.(Set)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i].Key, y[i].Key) || !valuesEqual(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, present := y[k]
			if !present || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	s, err := Encode(v)
	require.NoError(t, err)
	out, err := Decode(s)
	require.NoError(t, err)
	return out
}

func TestEncodeDecode_Primitives(t *testing.T) {
	for _, v := range []any{nil, true, false, "hello", "", float64(3.5), float64(0)} {
		assert.True(t, valuesEqual(v, roundTrip(t, v)), "value %#v", v)
	}
}

func TestEncodeDecode_IntegersCanonicalizeToInt64(t *testing.T) {
	out := roundTrip(t, map[string]any{"count": 42})
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(42), m["count"])
}

func TestEncodeDecode_Date(t *testing.T) {
	d := time.Date(2024, 7, 14, 9, 30, 0, 123456789, time.UTC)
	out := roundTrip(t, d)
	got, ok := out.(time.Time)
	require.True(t, ok)
	assert.True(t, d.Equal(got))
}

func TestEncodeDecode_DateNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	d := time.Date(2024, 7, 14, 11, 30, 0, 0, loc)
	got := roundTrip(t, d).(time.Time)
	assert.True(t, d.Equal(got))
	assert.Equal(t, time.UTC, got.Location())
}

func TestEncodeDecode_RegExp(t *testing.T) {
	re := regexp.MustCompile(`^h[ae]llo\s+world$`)
	got, ok := roundTrip(t, re).(*regexp.Regexp)
	require.True(t, ok)
	assert.Equal(t, re.String(), got.String())
}

func TestEncodeDecode_MapPreservesOrderAndKeys(t *testing.T) {
	m := Map{
		{Key: int64(1), Value: "one"},
		{Key: "two", Value: int64(2)},
		{Key: true, Value: []any{"a", "b"}},
	}
	got, ok := roundTrip(t, m).(Map)
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.True(t, valuesEqual(m, got))
}

func TestEncodeDecode_Set(t *testing.T) {
	s := Set{"a", int64(2), false}
	got, ok := roundTrip(t, s).(Set)
	require.True(t, ok)
	assert.True(t, valuesEqual(s, got))
}

func TestEncodeDecode_NestedGraph(t *testing.T) {
	v := map[string]any{
		"title": "Hello World",
		"when":  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"match": regexp.MustCompile(`\d+`),
		"tags":  Set{"x", "y"},
		"meta": Map{
			{Key: "inner", Value: map[string]any{"deep": []any{int64(1), int64(2)}}},
		},
	}
	assert.True(t, valuesEqual(v, roundTrip(t, v)))
}

func TestEncode_TagKeyCollisionEscaped(t *testing.T) {
	v := map[string]any{"$type": "Date", "other": "value"}
	got, ok := roundTrip(t, v).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Date", got["$type"])
	assert.Equal(t, "value", got["other"])
}

func TestEncode_FunctionFails(t *testing.T) {
	cases := map[string]any{
		"top level":     func() {},
		"in map":        map[string]any{"onClick": func() {}},
		"nested in map": map[string]any{"a": map[string]any{"b": func(int) int { return 0 }}},
		"in slice":      []any{"ok", func() {}},
		"in Map value":  Map{{Key: "k", Value: func() {}}},
		"in Set":        Set{func() {}},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(v)
			var serr *SerializationError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "func", serr.Kind)
			assert.Contains(t, serr.Error(), serr.Path)
		})
	}
}

func TestEncode_ChannelFails(t *testing.T) {
	_, err := Encode(map[string]any{"ch": make(chan int)})
	var serr *SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "chan", serr.Kind)
}

func TestEncode_NonStringMapKeysFail(t *testing.T) {
	_, err := Encode(map[int]string{1: "x"})
	var serr *SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Kind, "codec.Map")
}

func TestDecodeProps(t *testing.T) {
	t.Run("empty string is empty props", func(t *testing.T) {
		props, err := DecodeProps("")
		require.NoError(t, err)
		assert.Empty(t, props)
	})

	t.Run("round trip", func(t *testing.T) {
		s, err := EncodeProps(map[string]any{"title": "Hi"})
		require.NoError(t, err)
		props, err := DecodeProps(s)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"title": "Hi"}, props)
	})

	t.Run("non-object payload rejected", func(t *testing.T) {
		s, err := Encode([]any{"not", "props"})
		require.NoError(t, err)
		_, err = DecodeProps(s)
		require.Error(t, err)
	})
}

// genValue builds arbitrary serializable prop graphs for the round-trip
// property. Values are drawn pre-canonicalized (int64, float64, UTC dates)
// so the decoded graph compares structurally equal.
func genValue(depth int) *rapid.Generator[any] {
	return rapid.Custom(func(t *rapid.T) any {
		leaf := func(t *rapid.T) any {
			switch rapid.IntRange(0, 6).Draw(t, "leafKind") {
			case 0:
				return nil
			case 1:
				return rapid.Bool().Draw(t, "bool")
			case 2:
				return rapid.String().Draw(t, "string")
			case 3:
				return rapid.Int64().Draw(t, "int")
			case 4:
				// JSON cannot carry NaN or infinities; stay finite.
				return rapid.Float64Range(-1e12, 1e12).Draw(t, "float")
			case 5:
				sec := rapid.Int64Range(0, 4102444800).Draw(t, "sec")
				nsec := rapid.Int64Range(0, 999999999).Draw(t, "nsec")
				return time.Unix(sec, nsec).UTC()
			default:
				sources := []string{`\d+`, `^a.*z$`, `foo|bar`, `[a-f0-9]{8}`}
				return regexp.MustCompile(rapid.SampledFrom(sources).Draw(t, "re"))
			}
		}
		if depth <= 0 {
			return leaf(t)
		}
		switch rapid.IntRange(0, 4).Draw(t, "nodeKind") {
		case 0:
			n := rapid.IntRange(0, 3).Draw(t, "len")
			out := make([]any, 0, n)
			for i := 0; i < n; i++ {
				out = append(out, genValue(depth-1).Draw(t, "elem"))
			}
			return out
		case 1:
			n := rapid.IntRange(0, 3).Draw(t, "len")
			out := make(map[string]any, n)
			for i := 0; i < n; i++ {
				out[rapid.String().Draw(t, "key")] = genValue(depth-1).Draw(t, "val")
			}
			return out
		case 2:
			n := rapid.IntRange(0, 3).Draw(t, "len")
			out := make(Map, 0, n)
			for i := 0; i < n; i++ {
				out = append(out, Entry{
					Key:   leaf(t),
					Value: genValue(depth-1).Draw(t, "val"),
				})
			}
			return out
		case 3:
			n := rapid.IntRange(0, 3).Draw(t, "len")
			out := make(Set, 0, n)
			for i := 0; i < n; i++ {
				out = append(out, genValue(depth-1).Draw(t, "elem"))
			}
			return out
		default:
			return leaf(t)
		}
	})
}

func TestEncodeDecode_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := genValue(3).Draw(t, "graph")
		s, err := Encode(v)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		out, err := Decode(s)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !valuesEqual(v, out) {
			t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v", v, out)
		}
	})
}
