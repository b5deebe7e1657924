package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
)

func TestThatNumbersCompareAcrossRepresentations(t *testing.T) {
	is := is.New(t)

	is.True(ValuesEqual(json.Number("1.10"), 1.1))
	is.True(ValuesEqual(json.Number("2"), int64(2)))
	is.True(ValuesEqual(json.Number("1.0"), json.Number("1.00")))
	is.True(ValuesEqual("1.10", json.Number("1.1")))
	is.True(!ValuesEqual(json.Number("1.1"), json.Number("1.2")))
}

func TestThatNonNumericTextComparesUnequal(t *testing.T) {
	is := is.New(t)

	is.True(ValuesEqual("abc", "abc"))
	is.True(!ValuesEqual("abc", json.Number("5")))
	is.True(!ValuesEqual("abc", "abd"))

	// two strings never compare numerically
	is.True(!ValuesEqual("01", "1"))
}

func TestThatNullsOnlyEqualNulls(t *testing.T) {
	is := is.New(t)

	is.True(ValuesEqual(nil, nil))
	is.True(!ValuesEqual(nil, json.Number("0")))
	is.True(!ValuesEqual("", nil))
}

func TestThatSequencesCompareInOrder(t *testing.T) {
	is := is.New(t)

	is.True(ValuesEqual(
		[]any{json.Number("1"), "two"},
		[]any{1.0, "two"},
	))
	is.True(!ValuesEqual(
		[]any{json.Number("1"), "two"},
		[]any{"two", json.Number("1")},
	))
	is.True(!ValuesEqual(
		[]any{json.Number("1")},
		[]any{json.Number("1"), json.Number("2")},
	))
	is.True(!ValuesEqual([]any{}, "not a sequence"))
}

func TestThatNestedMapsCompareStructurally(t *testing.T) {
	is := is.New(t)

	is.True(ValuesEqual(
		map[string]any{"a": json.Number("1"), "b": map[string]any{"c": "x"}},
		map[string]any{"a": 1.0, "b": map[string]any{"c": "x"}},
	))
	is.True(!ValuesEqual(
		map[string]any{"a": json.Number("1")},
		map[string]any{"a": json.Number("1"), "b": "extra"},
	))
	is.True(!ValuesEqual(map[string]any{}, []any{}))
}

func TestThatComparisonIsSymmetric(t *testing.T) {
	is := is.New(t)

	pairs := [][2]any{
		{json.Number("1.10"), 1.1},
		{json.Number("2"), int64(2)},
		{"abc", json.Number("5")},
		{nil, "x"},
		{[]any{json.Number("1")}, []any{1.0}},
		{map[string]any{"a": "b"}, map[string]any{"a": "b"}},
		{true, "true"},
	}

	for _, pair := range pairs {
		is.Equal(ValuesEqual(pair[0], pair[1]), ValuesEqual(pair[1], pair[0]))
	}
}
