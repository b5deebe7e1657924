package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Entity set names as they appear in service URLs.
const (
	SetThings             = "Things"
	SetLocations          = "Locations"
	SetSensors            = "Sensors"
	SetObservedProperties = "ObservedProperties"
	SetDatastreams        = "Datastreams"
	SetFeaturesOfInterest = "FeaturesOfInterest"
	SetObservations       = "Observations"
)

// EncodingGeoJSON is the encoding type for GeoJSON valued locations and features.
const EncodingGeoJSON = "application/geo+json"

// ObservationTypeMeasurement is the default observation type for created
// datastreams.
const ObservationTypeMeasurement = "http://www.opengis.net/def/observationType/OGC-OM/2.0/OM_Measurement"

// Entity is the small capability set shared by the entity kinds that take
// part in reconciliation. Everything else about a kind stays on its own
// concrete struct.
type Entity interface {
	Identity() ID
	SetIdentity(ID)
	EntityName() string
	PropertyMap() map[string]any
}

// ID is a remote assigned entity identity. The service may use numbers or
// strings, so the raw JSON form is kept as is.
type ID struct {
	raw json.RawMessage
}

// NewID creates an ID from a number or string, mainly useful in tests and
// when referencing entities by a known identity.
func NewID(v any) ID {
	raw, err := json.Marshal(v)
	if err != nil {
		return ID{}
	}
	return ID{raw: raw}
}

func (id ID) IsZero() bool {
	return len(id.raw) == 0
}

func (id ID) Equal(other ID) bool {
	return bytes.Equal(id.raw, other.raw)
}

// String renders the identity the way it is embedded in a service URL,
// i.e. Things(1) for numeric ids and Things('abc') for string ids.
func (id ID) String() string {
	if len(id.raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}

	return string(id.raw)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.raw = nil
		return nil
	}
	id.raw = append(id.raw[0:0], data...)
	return nil
}

// TimeObject is a phenomenon time, either an instant or a closed interval.
type TimeObject struct {
	Start time.Time
	End   time.Time
}

// ParseTimeObject parses an RFC3339 instant or a start/end interval.
func ParseTimeObject(value string) (TimeObject, error) {
	if start, end, found := strings.Cut(value, "/"); found {
		s, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return TimeObject{}, fmt.Errorf("invalid interval start %q: %w", start, err)
		}
		e, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return TimeObject{}, fmt.Errorf("invalid interval end %q: %w", end, err)
		}
		return TimeObject{Start: s, End: e}, nil
	}

	s, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return TimeObject{}, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return TimeObject{Start: s}, nil
}

func (t TimeObject) IsZero() bool {
	return t.Start.IsZero() && t.End.IsZero()
}

func (t TimeObject) IsInterval() bool {
	return !t.End.IsZero()
}

// Midpoint reduces the time object to a single instant, halfway into the
// interval for intervals.
func (t TimeObject) Midpoint() time.Time {
	if !t.IsInterval() {
		return t.Start
	}
	return t.Start.Add(t.End.Sub(t.Start) / 2)
}

func (t TimeObject) String() string {
	if t.IsInterval() {
		return t.Start.UTC().Format(time.RFC3339) + "/" + t.End.UTC().Format(time.RFC3339)
	}
	return t.Start.UTC().Format(time.RFC3339)
}

func (t TimeObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeObject) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	to, err := ParseTimeObject(s)
	if err != nil {
		return err
	}
	*t = to
	return nil
}

// UnitOfMeasurement is the datastream unit triple.
type UnitOfMeasurement struct {
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	Definition string `json:"definition"`
}

// NullUnit is used for datastreams whose observations carry no numeric unit.
func NullUnit() *UnitOfMeasurement {
	return &UnitOfMeasurement{}
}

type Thing struct {
	ID          ID             `json:"@iot.id,omitzero"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Locations   []*Location    `json:"Locations,omitempty"`
}

// Ref returns a reference carrying only the identity, for linking.
func (t *Thing) Ref() *Thing {
	return &Thing{ID: t.ID}
}

func (t *Thing) Identity() ID                { return t.ID }
func (t *Thing) SetIdentity(id ID)           { t.ID = id }
func (t *Thing) EntityName() string          { return t.Name }
func (t *Thing) PropertyMap() map[string]any { return t.Properties }

func (t *Thing) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return t.ID, !t.ID.IsZero()
	case "name":
		return t.Name, true
	case "description":
		return t.Description, true
	case "properties":
		return t.Properties, true
	case "Locations":
		return t.Locations, true
	}
	return nil, false
}

type Location struct {
	ID           ID                `json:"@iot.id,omitzero"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	EncodingType string            `json:"encodingType,omitempty"`
	Location     *geojson.Geometry `json:"location,omitempty"`
	Properties   map[string]any    `json:"properties,omitempty"`
}

func (l *Location) Ref() *Location {
	return &Location{ID: l.ID}
}

func (l *Location) Identity() ID                { return l.ID }
func (l *Location) SetIdentity(id ID)           { l.ID = id }
func (l *Location) EntityName() string          { return l.Name }
func (l *Location) PropertyMap() map[string]any { return l.Properties }

func (l *Location) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return l.ID, !l.ID.IsZero()
	case "name":
		return l.Name, true
	case "description":
		return l.Description, true
	case "encodingType":
		return l.EncodingType, true
	case "location":
		return l.Location, l.Location != nil
	case "properties":
		return l.Properties, true
	}
	return nil, false
}

type Sensor struct {
	ID           ID             `json:"@iot.id,omitzero"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	EncodingType string         `json:"encodingType,omitempty"`
	Metadata     string         `json:"metadata,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

func (s *Sensor) Ref() *Sensor {
	return &Sensor{ID: s.ID}
}

func (s *Sensor) Identity() ID                { return s.ID }
func (s *Sensor) SetIdentity(id ID)           { s.ID = id }
func (s *Sensor) EntityName() string          { return s.Name }
func (s *Sensor) PropertyMap() map[string]any { return s.Properties }

func (s *Sensor) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return s.ID, !s.ID.IsZero()
	case "name":
		return s.Name, true
	case "description":
		return s.Description, true
	case "encodingType":
		return s.EncodingType, true
	case "metadata":
		return s.Metadata, true
	case "properties":
		return s.Properties, true
	}
	return nil, false
}

type ObservedProperty struct {
	ID          ID             `json:"@iot.id,omitzero"`
	Name        string         `json:"name,omitempty"`
	Definition  string         `json:"definition,omitempty"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

func (o *ObservedProperty) Ref() *ObservedProperty {
	return &ObservedProperty{ID: o.ID}
}

func (o *ObservedProperty) Identity() ID                { return o.ID }
func (o *ObservedProperty) SetIdentity(id ID)           { o.ID = id }
func (o *ObservedProperty) EntityName() string          { return o.Name }
func (o *ObservedProperty) PropertyMap() map[string]any { return o.Properties }

func (o *ObservedProperty) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return o.ID, !o.ID.IsZero()
	case "name":
		return o.Name, true
	case "definition":
		return o.Definition, true
	case "description":
		return o.Description, true
	case "properties":
		return o.Properties, true
	}
	return nil, false
}

type Datastream struct {
	ID                ID                 `json:"@iot.id,omitzero"`
	Name              string             `json:"name,omitempty"`
	Description       string             `json:"description,omitempty"`
	ObservationType   string             `json:"observationType,omitempty"`
	UnitOfMeasurement *UnitOfMeasurement `json:"unitOfMeasurement,omitempty"`
	Properties        map[string]any     `json:"properties,omitempty"`
	Thing             *Thing             `json:"Thing,omitempty"`
	Sensor            *Sensor            `json:"Sensor,omitempty"`
	ObservedProperty  *ObservedProperty  `json:"ObservedProperty,omitempty"`
}

func (d *Datastream) Ref() *Datastream {
	return &Datastream{ID: d.ID}
}

func (d *Datastream) Identity() ID                { return d.ID }
func (d *Datastream) SetIdentity(id ID)           { d.ID = id }
func (d *Datastream) EntityName() string          { return d.Name }
func (d *Datastream) PropertyMap() map[string]any { return d.Properties }

func (d *Datastream) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return d.ID, !d.ID.IsZero()
	case "name":
		return d.Name, true
	case "description":
		return d.Description, true
	case "observationType":
		return d.ObservationType, true
	case "unitOfMeasurement":
		return d.UnitOfMeasurement, d.UnitOfMeasurement != nil
	case "properties":
		return d.Properties, true
	case "Thing":
		return d.Thing, d.Thing != nil
	case "Sensor":
		return d.Sensor, d.Sensor != nil
	case "ObservedProperty":
		return d.ObservedProperty, d.ObservedProperty != nil
	}
	return nil, false
}

func (u *UnitOfMeasurement) Field(name string) (any, bool) {
	switch name {
	case "name":
		return u.Name, true
	case "symbol":
		return u.Symbol, true
	case "definition":
		return u.Definition, true
	}
	return nil, false
}

type FeatureOfInterest struct {
	ID           ID                `json:"@iot.id,omitzero"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	EncodingType string            `json:"encodingType,omitempty"`
	Feature      *geojson.Geometry `json:"feature,omitempty"`
	Properties   map[string]any    `json:"properties,omitempty"`
}

func (f *FeatureOfInterest) Ref() *FeatureOfInterest {
	return &FeatureOfInterest{ID: f.ID}
}

func (f *FeatureOfInterest) Identity() ID                { return f.ID }
func (f *FeatureOfInterest) SetIdentity(id ID)           { f.ID = id }
func (f *FeatureOfInterest) EntityName() string          { return f.Name }
func (f *FeatureOfInterest) PropertyMap() map[string]any { return f.Properties }

func (f *FeatureOfInterest) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return f.ID, !f.ID.IsZero()
	case "name":
		return f.Name, true
	case "description":
		return f.Description, true
	case "encodingType":
		return f.EncodingType, true
	case "feature":
		return f.Feature, f.Feature != nil
	case "properties":
		return f.Properties, true
	}
	return nil, false
}

type Observation struct {
	ID                ID                 `json:"@iot.id,omitzero"`
	PhenomenonTime    TimeObject         `json:"phenomenonTime,omitzero"`
	ResultTime        TimeObject         `json:"resultTime,omitzero"`
	Result            any                `json:"result"`
	Parameters        map[string]any     `json:"parameters,omitempty"`
	Datastream        *Datastream        `json:"Datastream,omitempty"`
	FeatureOfInterest *FeatureOfInterest `json:"FeatureOfInterest,omitempty"`
}

func (o *Observation) Field(name string) (any, bool) {
	switch name {
	case "id", "@iot.id":
		return o.ID, !o.ID.IsZero()
	case "phenomenonTime":
		return o.PhenomenonTime, !o.PhenomenonTime.IsZero()
	case "resultTime":
		return o.ResultTime, !o.ResultTime.IsZero()
	case "result":
		return o.Result, true
	case "parameters":
		return o.Parameters, true
	case "Datastream":
		return o.Datastream, o.Datastream != nil
	case "FeatureOfInterest":
		return o.FeatureOfInterest, o.FeatureOfInterest != nil
	}
	return nil, false
}

// DataArray is one group of a bulk observation creation request. All rows
// belong to the same datastream and share the same component layout.
type DataArray struct {
	Datastream *Datastream `json:"Datastream"`
	Components []string    `json:"components"`
	Rows       [][]any     `json:"dataArray"`
}

// GeometriesEqual compares two geometries by their serialized JSON form.
// This is intentionally an exact comparison, so differently formatted but
// numerically equal coordinates count as different.
func GeometriesEqual(a, b *geojson.Geometry) bool {
	if a == nil || b == nil {
		return a == b
	}

	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}

	return bytes.Equal(aj, bj)
}
