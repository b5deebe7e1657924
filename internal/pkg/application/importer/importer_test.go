package importer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	staerrors "github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/test"
	"github.com/matryer/is"
)

func TestThatAFeatureCreatesALocationAndAMirroredThing(t *testing.T) {
	is, sta, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  description: 'Region {properties/NUTS_NAME|-}'
  properties: '{"nutsId":"{properties/NUTS_ID}"}'
things:
  mirrorLocations: true
`, emptyStore())

	report, err := imp.Run(context.Background(), parseFeatures(t, stuttgartFeature))

	is.NoErr(err)
	is.Equal(report.Features, 1)
	is.Equal(report.Processed, 1)
	is.Equal(report.Failed, 0)
	is.Equal(report.Created, 2)

	is.Equal(len(sta.CreateCalls()), 2)
	is.Equal(sta.CreateCalls()[0].Set, entities.SetLocations)
	is.Equal(sta.CreateCalls()[1].Set, entities.SetThings)

	location := sta.CreateCalls()[0].Entity.(*entities.Location)
	is.Equal(location.Name, "DE1")
	is.Equal(location.Description, "Region Stuttgart")
	is.Equal(location.Properties["nutsId"], "DE1")
	is.Equal(location.EncodingType, entities.EncodingGeoJSON)

	thing := sta.CreateCalls()[1].Entity.(*entities.Thing)
	is.Equal(thing.Name, "DE1")
	is.Equal(thing.Description, "Region Stuttgart")
	is.Equal(len(thing.Locations), 1)
	is.Equal(thing.Locations[0].ID.String(), "1")
}

func TestThatASecondRunChangesNothing(t *testing.T) {
	is, sta, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  description: 'Region {properties/NUTS_NAME|-}'
  properties: '{"nutsId":"{properties/NUTS_ID}"}'
things:
  mirrorLocations: true
`, storeWith(map[string][]string{
		entities.SetLocations: {`{"@iot.id":10,"name":"DE1","description":"Region Stuttgart","properties":{"nutsId":"DE1"},"encodingType":"application/geo+json","location":{"type":"Point","coordinates":[9.18,48.78]}}`},
		entities.SetThings:    {`{"@iot.id":11,"name":"DE1","description":"Region Stuttgart","properties":{"nutsId":"DE1"},"Locations":[{"@iot.id":10}]}`},
	}))

	report, err := imp.Run(context.Background(), parseFeatures(t, stuttgartFeature))

	is.NoErr(err)
	is.Equal(report.Processed, 1)
	is.Equal(report.Unchanged, 2)
	is.Equal(report.Created, 0)
	is.Equal(report.Updated, 0)
	is.Equal(len(sta.CreateCalls()), 0)
	is.Equal(len(sta.UpdateCalls()), 0)
}

func TestThatAChangedDescriptionUpdates(t *testing.T) {
	is, sta, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  description: 'Region {properties/NUTS_NAME|-}'
`, storeWith(map[string][]string{
		entities.SetLocations: {`{"@iot.id":10,"name":"DE1","description":"old text","location":{"type":"Point","coordinates":[9.18,48.78]}}`},
	}))

	report, err := imp.Run(context.Background(), parseFeatures(t, stuttgartFeature))

	is.NoErr(err)
	is.Equal(report.Updated, 1)
	is.Equal(len(sta.UpdateCalls()), 1)
	is.Equal(sta.UpdateCalls()[0].ID.String(), "10")

	updated := sta.UpdateCalls()[0].Fragment.(*entities.Location)
	is.Equal(updated.Description, "Region Stuttgart")
}

func TestThatAFailingFeatureDoesNotStopTheRun(t *testing.T) {
	is, sta, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  properties: '{properties/extra}'
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUTS_ID":"DE1","extra":"not json"}},
		{"type":"Feature","properties":{"NUTS_ID":"DE2","extra":"{\"source\":\"nuts\"}"}}
	]}`)

	report, err := imp.Run(context.Background(), records)

	is.NoErr(err)
	is.Equal(report.Features, 2)
	is.Equal(report.Failed, 1)
	is.Equal(report.Processed, 1)
	is.Equal(report.Created, 1)
	is.Equal(len(report.Errors), 1)
	is.True(strings.Contains(report.Errors[0], "feature 0"))

	is.Equal(len(sta.CreateCalls()), 1)
	is.Equal(sta.CreateCalls()[0].Entity.(*entities.Location).Name, "DE2")
}

func TestThatIfNotEmptyGatesACreator(t *testing.T) {
	is, sta, imp := setupImporter(t, `
locations:
  name: '{properties/NUTS_ID}'
  ifNotEmpty: '{properties/GEO}'
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUTS_ID":"DE1","GEO":"x"}},
		{"type":"Feature","properties":{"NUTS_ID":"DE2"}}
	]}`)

	report, err := imp.Run(context.Background(), records)

	is.NoErr(err)
	is.Equal(report.Processed, 2)
	is.Equal(report.Failed, 0)
	is.Equal(report.Created, 1)
	is.Equal(len(sta.CreateCalls()), 1)
	is.Equal(sta.CreateCalls()[0].Entity.(*entities.Location).Name, "DE1")
}

func TestThatSensorsAreEvaluatedOnce(t *testing.T) {
	is, sta, imp := setupImporter(t, `
sensors:
  name: '{properties/NUTS_ID} sensor'
  evaluateOnce: true
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUTS_ID":"DE1"}},
		{"type":"Feature","properties":{"NUTS_ID":"DE2"}}
	]}`)

	report, err := imp.Run(context.Background(), records)

	is.NoErr(err)
	is.Equal(report.Processed, 2)
	is.Equal(len(sta.CreateCalls()), 1)
	is.Equal(sta.CreateCalls()[0].Entity.(*entities.Sensor).Name, "DE1 sensor")
}

func TestThatObservationsAreUploadedInBatches(t *testing.T) {
	is, sta, imp := setupImporter(t, `
datastreams:
  name: '{properties/NUTS_ID} level'
observations:
  result: '{properties/value}'
  phenomenonTime: '{properties/time}'
  datastreamKey: '{properties/NUTS_ID} level'
  batchSize: 2
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUTS_ID":"DE1","value":1.5,"time":"2021-03-04T10:00:00Z"}},
		{"type":"Feature","properties":{"NUTS_ID":"DE1","value":2.5,"time":"2021-03-04T11:00:00Z"}},
		{"type":"Feature","properties":{"NUTS_ID":"DE1","value":3.5,"time":"2021-03-04T12:00:00Z"}}
	]}`)

	report, err := imp.Run(context.Background(), records)

	is.NoErr(err)
	is.Equal(report.Observations, 3)

	calls := sta.CreateObservationsCalls()
	is.Equal(len(calls), 2)

	first := calls[0].Groups[0]
	is.Equal(first.Datastream.ID.String(), "1")
	is.Equal(first.Components, []string{"phenomenonTime", "result"})
	is.Equal(len(first.Rows), 2)
	is.Equal(first.Rows[0][0], "2021-03-04T10:00:00Z")
	is.Equal(first.Rows[0][1], json.Number("1.5"))

	second := calls[1].Groups[0]
	is.Equal(len(second.Rows), 1)
	is.Equal(second.Rows[0][1], json.Number("3.5"))
}

func TestThatADryRunLeavesTheStoreUntouched(t *testing.T) {
	is, sta, imp := setupImporter(t, `
dryRun: true
locations:
  name: '{properties/NUTS_ID}'
datastreams:
  name: '{properties/NUTS_ID} level'
observations:
  result: '{properties/value}'
  phenomenonTime: '{properties/time}'
  datastreamKey: '{properties/NUTS_ID} level'
`, emptyStore())

	records := parseFeatures(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUTS_ID":"DE1","value":1.5,"time":"2021-03-04T10:00:00Z"}}
	]}`)

	report, err := imp.Run(context.Background(), records)

	is.NoErr(err)
	is.Equal(report.DryRun, true)
	is.Equal(report.Created, 2)
	is.Equal(report.Observations, 1)
	is.Equal(len(sta.CreateCalls()), 0)
	is.Equal(len(sta.UpdateCalls()), 0)
	is.Equal(len(sta.CreateObservationsCalls()), 0)
}

func TestThatACacheLoadFailureAbortsTheRun(t *testing.T) {
	is := is.New(t)

	sta := &test.SensorThingsClientMock{
		QueryFunc: func(ctx context.Context, set string, parameters ...client.RequestDecoratorFunc) (*client.QueryResult, error) {
			return nil, staerrors.NewRemoteCallError("connection refused")
		},
	}

	cfg := loadMapping(t, `
locations:
  name: '{properties/NUTS_ID}'
  cache:
    filter: "properties/source eq 'nuts'"
`)

	_, err := New(cfg, sta).Run(context.Background(), parseFeatures(t, stuttgartFeature))

	is.True(err != nil)
}

const stuttgartFeature = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"NUTS_ID":"DE1","NUTS_NAME":"Stuttgart"},"geometry":{"type":"Point","coordinates":[9.18,48.78]}}
]}`

func setupImporter(t *testing.T, mapping string, query queryFunc) (*is.I, *test.SensorThingsClientMock, *Importer) {
	is := is.New(t)

	nextID := 0
	sta := &test.SensorThingsClientMock{
		QueryFunc: query,
		CreateFunc: func(ctx context.Context, set string, entity any) (entities.ID, error) {
			nextID++
			return entities.NewID(nextID), nil
		},
		UpdateFunc: func(ctx context.Context, set string, id entities.ID, fragment any) error {
			return nil
		},
		CreateObservationsFunc: func(ctx context.Context, groups []entities.DataArray) ([]string, error) {
			results := []string{}
			for _, group := range groups {
				for range group.Rows {
					results = append(results, "created")
				}
			}
			return results, nil
		},
	}

	return is, sta, New(loadMapping(t, mapping), sta)
}

func loadMapping(t *testing.T, mapping string) *Config {
	is := is.New(t)
	cfg, err := LoadConfiguration(strings.NewReader(mapping))
	is.NoErr(err)
	return cfg
}

func parseFeatures(t *testing.T, collection string) []Record {
	is := is.New(t)
	records, err := ParseFeatureCollection([]byte(collection))
	is.NoErr(err)
	return records
}

type queryFunc func(context.Context, string, ...client.RequestDecoratorFunc) (*client.QueryResult, error)

func emptyStore() queryFunc {
	return storeWith(nil)
}

func storeWith(existing map[string][]string) queryFunc {
	return func(ctx context.Context, set string, parameters ...client.RequestDecoratorFunc) (*client.QueryResult, error) {
		values := make([]json.RawMessage, 0, 2)
		for _, raw := range existing[set] {
			values = append(values, json.RawMessage(raw))
		}
		return &client.QueryResult{Values: values}, nil
	}
}
