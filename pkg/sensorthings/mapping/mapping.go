// Package mapping implements the small templating language used to map
// nested feature records onto entity fields. Placeholders have the form
// {path} or {path|default}, where path is a sequence of / separated
// segments with ~0 and ~1 escapes for literal ~ and /, and may carry a
// leading N: marker to normalize decimal separators in numeric values.
package mapping

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^|{}]+)(\|([^}]*))?\}`)

// FieldResolver is implemented by typed values that allow lookups of named
// fields, replacing the reflective accessor discovery of less fortunate
// runtimes. A false return means the field does not exist or is unset.
type FieldResolver interface {
	Field(name string) (any, bool)
}

// Resolve walks path through root and returns the value it ends at. Maps
// are walked by key, sequences by integer index and field resolvers by
// field name. Any miss along the way returns false, never an error.
func Resolve(path string, root any) (any, bool) {
	current := root

	for _, seg := range strings.Split(path, "/") {
		var ok bool
		current, ok = step(current, decodeSegment(seg))
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func step(value any, segment string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[segment]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	case FieldResolver:
		return v.Field(segment)
	}
	return nil, false
}

func decodeSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

// Fill expands every placeholder in template against source. Placeholders
// that resolve to nothing, to a compound value, or (outside URL context) to
// an empty string are replaced by their default, which is the empty string
// when no default clause is given. URL context applies OData string literal
// escaping to the resolved value, other contexts escape double quotes and
// newlines. Text outside placeholders is copied verbatim, and the function
// never fails.
func Fill(template string, source any, forURL bool) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)

		path := parts[1]
		fallback := parts[3]

		numeric := strings.HasPrefix(path, "N:")
		if numeric {
			path = path[2:]
		}

		value, found := Resolve(path, source)
		if !found || value == nil {
			return fallback
		}

		switch value.(type) {
		case map[string]any, []any:
			return fallback
		}

		result := stringify(value)

		if forURL {
			result = EscapeString(result)
		} else {
			if result == "" {
				return fallback
			}
			result = strings.ReplaceAll(result, `"`, `\"`)
			result = strings.ReplaceAll(result, "\n", `\n`)
		}

		if numeric {
			result = strings.ReplaceAll(result, ",", ".")
		}

		return result
	})
}

// EscapeString escapes a value for embedding in an OData string literal,
// i.e. within the quotes of a $filter expression.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
