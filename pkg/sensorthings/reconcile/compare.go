package reconcile

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ValuesEqual reports whether two dynamically typed property values should
// be considered equal. Numbers compare by their decimal value regardless of
// representation, so json.Number("1.10") equals float64(1.1). Sequences
// compare pairwise in order, reordering the same elements counts as a
// change. Values that cannot be compared are unequal.
func ValuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	if seqA, ok := asSequence(a); ok {
		seqB, ok := asSequence(b)
		if !ok || len(seqA) != len(seqB) {
			return false
		}

		for i := range seqA {
			if !ValuesEqual(seqA[i], seqB[i]) {
				return false
			}
		}

		return true
	} else if _, ok := asSequence(b); ok {
		return false
	}

	if mapA, ok := asPropertyMap(a); ok {
		mapB, ok := asPropertyMap(b)
		if !ok || len(mapA) != len(mapB) {
			return false
		}

		for key, valueA := range mapA {
			valueB, exists := mapB[key]
			if !exists || !ValuesEqual(valueA, valueB) {
				return false
			}
		}

		return true
	} else if _, ok := asPropertyMap(b); ok {
		return false
	}

	if a == b {
		return true
	}

	// strings only take part in numeric comparison when the other side is
	// an actual number, so "01" and "1" stay different
	if !isNumeric(a) && !isNumeric(b) {
		return false
	}

	decA, okA := asDecimal(a)
	decB, okB := asDecimal(b)

	if okA && okB {
		return decA.Equal(decB)
	}

	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64:
		return true
	}
	return false
}

func asSequence(v any) ([]any, bool) {
	seq, ok := v.([]any)
	return seq, ok
}

func asPropertyMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(value.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(value)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(value), true
	case float32:
		return decimal.NewFromFloat32(value), true
	case int:
		return decimal.NewFromInt(int64(value)), true
	case int64:
		return decimal.NewFromInt(value), true
	}

	return decimal.Decimal{}, false
}
