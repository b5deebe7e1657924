package importer

import (
	"strings"

	"github.com/diwise/sensorthings-importer/internal/pkg/application/projection"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/mapping"
	"github.com/paulmach/orb/geojson"
)

// The build functions turn one record into one entity by filling the
// configured templates. They never talk to the remote store, so the same
// builders back both imports and previews.

func buildThing(cfg ThingSettings, record Record) (*entities.Thing, error) {
	properties, err := templateProperties(cfg.Properties, record)
	if err != nil {
		return nil, err
	}

	return &entities.Thing{
		Name:        mapping.Fill(cfg.Name, record, false),
		Description: mapping.Fill(cfg.Description, record, false),
		Properties:  properties,
	}, nil
}

func buildLocation(cfg LocationSettings, record Record) (*entities.Location, error) {
	properties, err := templateProperties(cfg.Properties, record)
	if err != nil {
		return nil, err
	}

	geometry, err := recordGeometry(record, cfg.CRS, cfg.NumberScale, cfg.FlipAxes)
	if err != nil {
		return nil, err
	}

	return &entities.Location{
		Name:         mapping.Fill(cfg.Name, record, false),
		Description:  mapping.Fill(cfg.Description, record, false),
		EncodingType: entities.EncodingGeoJSON,
		Location:     geometry,
		Properties:   properties,
	}, nil
}

func buildSensor(cfg SensorSettings, record Record) (*entities.Sensor, error) {
	properties, err := templateProperties(cfg.Properties, record)
	if err != nil {
		return nil, err
	}

	return &entities.Sensor{
		Name:         mapping.Fill(cfg.Name, record, false),
		Description:  mapping.Fill(cfg.Description, record, false),
		EncodingType: mapping.Fill(cfg.EncodingType, record, false),
		Metadata:     mapping.Fill(cfg.Metadata, record, false),
		Properties:   properties,
	}, nil
}

func buildObservedProperty(cfg ObservedPropertySettings, record Record) (*entities.ObservedProperty, error) {
	properties, err := templateProperties(cfg.Properties, record)
	if err != nil {
		return nil, err
	}

	return &entities.ObservedProperty{
		Name:        mapping.Fill(cfg.Name, record, false),
		Definition:  mapping.Fill(cfg.Definition, record, false),
		Description: mapping.Fill(cfg.Description, record, false),
		Properties:  properties,
	}, nil
}

// buildDatastream builds the datastream itself. The links to the thing,
// sensor and observed property are resolved from the run caches by the
// caller, previews leave them out.
func buildDatastream(cfg DatastreamSettings, record Record) (*entities.Datastream, error) {
	properties, err := templateProperties(cfg.Properties, record)
	if err != nil {
		return nil, err
	}

	observationType := mapping.Fill(cfg.ObservationType, record, false)
	if observationType == "" {
		observationType = entities.ObservationTypeMeasurement
	}

	return &entities.Datastream{
		Name:            mapping.Fill(cfg.Name, record, false),
		Description:     mapping.Fill(cfg.Description, record, false),
		ObservationType: observationType,
		UnitOfMeasurement: &entities.UnitOfMeasurement{
			Name:       mapping.Fill(cfg.Unit.Name, record, false),
			Symbol:     mapping.Fill(cfg.Unit.Symbol, record, false),
			Definition: mapping.Fill(cfg.Unit.Definition, record, false),
		},
		Properties: properties,
	}, nil
}

func buildFeatureOfInterest(cfg FeatureOfInterestSettings, record Record) (*entities.FeatureOfInterest, error) {
	properties, err := templateProperties(cfg.Properties, record)
	if err != nil {
		return nil, err
	}

	geometry, err := recordGeometry(record, cfg.CRS, cfg.NumberScale, cfg.FlipAxes)
	if err != nil {
		return nil, err
	}

	return &entities.FeatureOfInterest{
		Name:         mapping.Fill(cfg.Name, record, false),
		Description:  mapping.Fill(cfg.Description, record, false),
		EncodingType: entities.EncodingGeoJSON,
		Feature:      geometry,
		Properties:   properties,
	}, nil
}

// buildObservation builds the observation sans datastream and feature of
// interest links. The result template must fill to a JSON value, the
// phenomenon time template to an RFC3339 instant or start/end interval.
func buildObservation(cfg ObservationSettings, record Record) (*entities.Observation, error) {
	resultString := mapping.Fill(cfg.Result, record, false)

	var result any
	if err := unmarshalWithNumbers([]byte(resultString), &result); err != nil {
		return nil, errors.NewMalformedPayloadError("failed to parse json: " + err.Error())
	}

	phenomenonTime, err := entities.ParseTimeObject(mapping.Fill(cfg.PhenomenonTime, record, false))
	if err != nil {
		return nil, errors.NewMalformedPayloadError(err.Error())
	}

	parameters, err := templateProperties(cfg.Parameters, record)
	if err != nil {
		return nil, err
	}

	return &entities.Observation{
		PhenomenonTime: phenomenonTime,
		Result:         result,
		Parameters:     parameters,
	}, nil
}

// skipped implements the ifNotEmpty gate: a creator is skipped for a
// record when its gating template is configured but fills to blank.
func skipped(ifNotEmpty string, record Record) bool {
	if strings.TrimSpace(ifNotEmpty) == "" {
		return false
	}
	return strings.TrimSpace(mapping.Fill(ifNotEmpty, record, false)) == ""
}

// templateProperties fills a properties template and parses the output as
// a JSON object. A template filling to blank means no properties at all.
func templateProperties(template string, record Record) (map[string]any, error) {
	filled := mapping.Fill(template, record, false)
	if strings.TrimSpace(filled) == "" {
		return nil, nil
	}

	properties := map[string]any{}
	if err := unmarshalWithNumbers([]byte(filled), &properties); err != nil {
		return nil, errors.NewMalformedPayloadError("failed to parse json: " + err.Error())
	}

	return properties, nil
}

func recordGeometry(record Record, crsTemplate string, scale *int, flipAxes bool) (*geojson.Geometry, error) {
	crs := mapping.Fill(crsTemplate, record, false)
	return projection.Reproject(record.Geometry(), crs, scaleOrDefault(scale), flipAxes)
}
