package importer

import (
	"strings"
	"testing"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/matryer/is"
)

func TestThatPreviewRendersTheWouldBeEntities(t *testing.T) {
	is, _, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  description: 'Region {properties/NUTS_NAME|-}'
  properties: '{"nutsId":"{properties/NUTS_ID}"}'
  cache:
    key: '{properties/nutsId}'
things:
  mirrorLocations: true
datastreams:
  name: '{properties/NUTS_ID} level'
  thingKey: '{properties/NUTS_ID}'
observations:
  result: '{properties/value|0}'
  phenomenonTime: '{properties/time|2021-03-04T10:00:00Z}'
  datastreamKey: '{properties/NUTS_ID} level'
`, emptyStore())

	preview := imp.PreviewRecord(parseFeatures(t, stuttgartFeature)[0])

	location := preview.Location.Entity.(*entities.Location)
	is.Equal(location.Name, "DE1")
	is.Equal(location.Description, "Region Stuttgart")
	is.Equal(preview.Location.EqualsFilter, "name eq 'DE1'")
	is.Equal(preview.Location.CacheKey, "DE1")

	thing := preview.Thing.Entity.(*entities.Thing)
	is.Equal(thing.Name, "DE1")
	is.Equal(len(thing.Locations), 1)

	is.Equal(preview.Datastream.Entity.(*entities.Datastream).Name, "DE1 level")
	is.Equal(preview.Datastream.ThingKey, "DE1")

	is.Equal(preview.Observation.DatastreamKey, "DE1 level")
	is.True(preview.Observation.Entity != nil)
}

func TestThatPreviewShowsAnEscapedEqualsFilter(t *testing.T) {
	is, _, imp := setupImporter(t, `
locations:
  name: "{properties/owner}"
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"owner":"O'Brien"}}
	]}`)

	preview := imp.PreviewRecord(records[0])

	is.Equal(preview.Location.EqualsFilter, "name eq 'O''Brien'")
}

func TestThatMalformedJsonShowsAsAPlaceholder(t *testing.T) {
	is, _, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  properties: '{properties/extra}'
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUTS_ID":"DE1","extra":"not json"}}
	]}`)

	preview := imp.PreviewRecord(records[0])

	is.True(strings.HasPrefix(preview.Location.Error, "!!! failed to parse json"))
	is.True(preview.Location.Entity == nil)
}

func TestThatUnconfiguredKindsSaySo(t *testing.T) {
	is, _, imp := setupImporter(t, "", emptyStore())

	preview := imp.PreviewRecord(parseFeatures(t, stuttgartFeature)[0])

	is.Equal(preview.Location.Note, "not configured")
	is.Equal(preview.Thing.Note, "not configured")
	is.Equal(preview.Sensor.Note, "not configured")
	is.Equal(preview.Observation.Note, "not configured")
	is.True(preview.Location.Entity == nil)
}

func TestThatTheGateShowsInThePreview(t *testing.T) {
	is, _, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  ifNotEmpty: '{properties/GEO}'
`, emptyStore())

	preview := imp.PreviewRecord(parseFeatures(t, stuttgartFeature)[0])

	is.Equal(preview.Location.Note, "ifNotEmpty template is empty")
}

func TestThatPreviewNeverTouchesTheStore(t *testing.T) {
	is, sta, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
things:
  mirrorLocations: true
`, emptyStore())

	previews := imp.PreviewRecords(parseFeatures(t, stuttgartFeature))

	is.Equal(len(previews), 1)
	is.Equal(len(sta.QueryCalls()), 0)
	is.Equal(len(sta.CreateCalls()), 0)
}
