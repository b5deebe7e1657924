package mapping

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
)

func TestThatFillResolvesNestedPaths(t *testing.T) {
	is := is.New(t)

	result := Fill("Region {properties/NUTS_NAME}", testRecord(), false)

	is.Equal(result, "Region Stuttgart")
}

func TestThatFillFallsBackToDefaultForMissingPaths(t *testing.T) {
	is := is.New(t)

	result := Fill("{missing/path|X}", testRecord(), false)

	is.Equal(result, "X")
}

func TestThatFillFallsBackToEmptyStringWithoutDefaultClause(t *testing.T) {
	is := is.New(t)

	result := Fill("a{missing}b", testRecord(), false)

	is.Equal(result, "ab")
}

func TestThatFillFallsBackForNullValues(t *testing.T) {
	is := is.New(t)

	result := Fill("{properties/empty|fallback}", testRecord(), false)

	is.Equal(result, "fallback")
}

func TestThatFillFallsBackForCompoundValues(t *testing.T) {
	is := is.New(t)

	result := Fill("{properties|nope}", testRecord(), false)

	is.Equal(result, "nope")
}

func TestThatFillEscapesSingleQuotesInURLContext(t *testing.T) {
	is := is.New(t)

	result := Fill("name eq '{properties/owner}'", testRecord(), true)

	is.Equal(result, "name eq 'O''Brien'")
}

func TestThatFillEscapesQuotesAndNewlinesOutsideURLContext(t *testing.T) {
	is := is.New(t)

	result := Fill("{properties/quoted}", testRecord(), false)

	is.Equal(result, `a \"b\"\nc`)
}

func TestThatEmptyValuesFallBackOutsideURLContextOnly(t *testing.T) {
	is := is.New(t)

	is.Equal(Fill("{properties/blank|d}", testRecord(), false), "d")
	is.Equal(Fill("{properties/blank|d}", testRecord(), true), "")
}

func TestThatNumericMarkerNormalizesDecimalSeparator(t *testing.T) {
	is := is.New(t)

	result := Fill("{N:properties/measurement}", testRecord(), false)

	is.Equal(result, "47.11")
}

func TestThatUnmatchedBracesStayLiteral(t *testing.T) {
	is := is.New(t)

	is.Equal(Fill("{unclosed", testRecord(), false), "{unclosed")
	is.Equal(Fill("closed}", testRecord(), false), "closed}")
	is.Equal(Fill("{}", testRecord(), false), "{}")
}

func TestThatResolveIndexesSequences(t *testing.T) {
	is := is.New(t)

	value, found := Resolve("properties/tags/1", testRecord())

	is.True(found)
	is.Equal(value, "beta")
}

func TestThatResolveRejectsBadSequenceIndexes(t *testing.T) {
	is := is.New(t)

	_, found := Resolve("properties/tags/7", testRecord())
	is.True(!found)

	_, found = Resolve("properties/tags/x", testRecord())
	is.True(!found)

	_, found = Resolve("properties/tags/-1", testRecord())
	is.True(!found)
}

func TestThatResolveDecodesSegmentEscapes(t *testing.T) {
	is := is.New(t)

	value, found := Resolve("properties/a~1b/c~0d", testRecord())

	is.True(found)
	is.Equal(value, "escaped")
}

func TestThatResolveWalksFieldResolvers(t *testing.T) {
	is := is.New(t)

	src := fakeEntity{name: "DE1"}

	value, found := Resolve("name", src)
	is.True(found)
	is.Equal(value, "DE1")

	_, found = Resolve("unknown", src)
	is.True(!found)
}

func TestThatResolveStopsAtScalars(t *testing.T) {
	is := is.New(t)

	_, found := Resolve("properties/NUTS_NAME/deeper", testRecord())

	is.True(!found)
}

func TestThatJSONNumbersKeepTheirTextualForm(t *testing.T) {
	is := is.New(t)

	result := Fill("{properties/precise}", testRecord(), false)

	is.Equal(result, "0.10000000000000002")
}

type fakeEntity struct {
	name string
}

func (f fakeEntity) Field(name string) (any, bool) {
	if name == "name" {
		return f.name, true
	}
	return nil, false
}

func testRecord() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"NUTS_ID":     "DE1",
			"NUTS_NAME":   "Stuttgart",
			"owner":       "O'Brien",
			"quoted":      "a \"b\"\nc",
			"blank":       "",
			"empty":       nil,
			"measurement": "47,11",
			"precise":     json.Number("0.10000000000000002"),
			"tags":        []any{"alpha", "beta"},
			"a/b":         map[string]any{"c~d": "escaped"},
		},
	}
}
