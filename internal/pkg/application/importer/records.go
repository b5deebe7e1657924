package importer

import (
	"bytes"
	"encoding/json"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/paulmach/orb/geojson"
)

// Record is one feature of the input: an optional geometry and a nested
// property tree. Records are never mutated during an import, every entity
// is built from fresh template output.
type Record struct {
	id         any
	geometry   *geojson.Geometry
	properties map[string]any
}

func (r Record) Geometry() *geojson.Geometry {
	return r.geometry
}

func (r Record) Properties() map[string]any {
	return r.properties
}

// Field exposes the record to template paths, so {properties/NUTS_ID} and
// friends resolve.
func (r Record) Field(name string) (any, bool) {
	switch name {
	case "id":
		return r.id, r.id != nil
	case "geometry":
		return r.geometry, r.geometry != nil
	case "properties":
		return r.properties, true
	}
	return nil, false
}

// ParseFeatureCollection decodes a GeoJSON feature collection into records.
// Property values are decoded with json.Number so numeric values survive
// templating and comparison without loss.
func ParseFeatureCollection(data []byte) ([]Record, error) {
	var collection struct {
		Type     string `json:"type"`
		Features []struct {
			ID         any               `json:"id"`
			Geometry   *geojson.Geometry `json:"geometry"`
			Properties json.RawMessage   `json:"properties"`
		} `json:"features"`
	}

	if err := unmarshalWithNumbers(data, &collection); err != nil {
		return nil, errors.NewMalformedPayloadError("failed to parse feature collection: " + err.Error())
	}

	if collection.Type != "FeatureCollection" {
		return nil, errors.NewMalformedPayloadError("input is not a FeatureCollection")
	}

	records := make([]Record, 0, len(collection.Features))

	for _, feature := range collection.Features {
		record := Record{id: feature.ID, geometry: feature.Geometry}

		if len(feature.Properties) > 0 && !bytes.Equal(feature.Properties, []byte("null")) {
			properties := map[string]any{}
			if err := unmarshalWithNumbers(feature.Properties, &properties); err != nil {
				return nil, errors.NewMalformedPayloadError("failed to parse feature properties: " + err.Error())
			}
			record.properties = properties
		}

		records = append(records, record)
	}

	return records, nil
}

func unmarshalWithNumbers(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(target)
}
