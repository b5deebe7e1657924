package importer

import (
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/mapping"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/reconcile"
)

// Preview shows what a single feature record would turn into, with every
// template filled in, without touching the remote store. Reference keys
// are rendered as the cache keys they would be resolved through, since no
// identities exist before an actual import.
type Preview struct {
	Location          *PreviewSection `json:"location,omitempty"`
	Thing             *PreviewSection `json:"thing,omitempty"`
	Sensor            *PreviewSection `json:"sensor,omitempty"`
	ObservedProperty  *PreviewSection `json:"observedProperty,omitempty"`
	Datastream        *PreviewSection `json:"datastream,omitempty"`
	FeatureOfInterest *PreviewSection `json:"featureOfInterest,omitempty"`
	Observation       *PreviewSection `json:"observation,omitempty"`
}

// PreviewSection previews one entity kind. Kinds that would not produce an
// entity carry a note saying why, and templates that fail to parse carry a
// placeholder in Error instead of failing the preview.
type PreviewSection struct {
	Note  string `json:"note,omitempty"`
	Error string `json:"error,omitempty"`

	Entity any `json:"entity,omitempty"`

	EqualsFilter string `json:"equalsFilter,omitempty"`
	CacheKey     string `json:"cacheKey,omitempty"`

	ThingKey            string `json:"thingKey,omitempty"`
	SensorKey           string `json:"sensorKey,omitempty"`
	ObservedPropertyKey string `json:"observedPropertyKey,omitempty"`

	DatastreamKey        string `json:"datastreamKey,omitempty"`
	FeatureOfInterestKey string `json:"featureOfInterestKey,omitempty"`
}

const (
	noteNotConfigured = "not configured"
	noteGatedEmpty    = "ifNotEmpty template is empty"
)

func failedSection(err error) *PreviewSection {
	return &PreviewSection{Error: "!!! " + err.Error()}
}

// equalsFilter previews the filter reconciliation would use, falling back
// to the name match that applies when no template is configured.
func equalsFilter(template string, entity entities.Entity) string {
	if filter := mapping.Fill(template, entity, true); filter != "" {
		return filter
	}
	return reconcile.DefaultEqualsFilter(entity.EntityName())
}

// PreviewRecord fills every template for one record and renders the
// entities an import would create or match against.
func (i *Importer) PreviewRecord(record Record) *Preview {
	location := i.previewLocation(record)

	return &Preview{
		Location:          location,
		Thing:             i.previewThing(record, location),
		Sensor:            i.previewSensor(record),
		ObservedProperty:  i.previewObservedProperty(record),
		Datastream:        i.previewDatastream(record),
		FeatureOfInterest: i.previewFeatureOfInterest(record),
		Observation:       i.previewObservation(record),
	}
}

// PreviewRecords previews every record in a collection.
func (i *Importer) PreviewRecords(records []Record) []*Preview {
	previews := make([]*Preview, 0, len(records))

	for _, record := range records {
		previews = append(previews, i.PreviewRecord(record))
	}

	return previews
}

func (i *Importer) previewLocation(record Record) *PreviewSection {
	cfg := i.cfg.Locations
	if cfg.Name == "" {
		return &PreviewSection{Note: noteNotConfigured}
	}
	if skipped(cfg.IfNotEmpty, record) {
		return &PreviewSection{Note: noteGatedEmpty}
	}

	location, err := buildLocation(cfg, record)
	if err != nil {
		return failedSection(err)
	}

	return &PreviewSection{
		Entity:       location,
		EqualsFilter: equalsFilter(cfg.EqualsFilter, location),
		CacheKey:     i.caches.Locations.KeyFor(location),
	}
}

func (i *Importer) previewThing(record Record, location *PreviewSection) *PreviewSection {
	cfg := i.cfg.Things

	var thing *entities.Thing

	switch {
	case cfg.MirrorLocations && location != nil && location.Entity != nil:
		mirrored := location.Entity.(*entities.Location)
		thing = &entities.Thing{
			Name:        mirrored.Name,
			Description: mirrored.Description,
			Properties:  mirrored.Properties,
			Locations:   []*entities.Location{mirrored.Ref()},
		}
	case cfg.Name != "":
		if skipped(cfg.IfNotEmpty, record) {
			return &PreviewSection{Note: noteGatedEmpty}
		}

		var err error
		thing, err = buildThing(cfg, record)
		if err != nil {
			return failedSection(err)
		}
	default:
		return &PreviewSection{Note: noteNotConfigured}
	}

	return &PreviewSection{
		Entity:       thing,
		EqualsFilter: equalsFilter(cfg.EqualsFilter, thing),
		CacheKey:     i.caches.Things.KeyFor(thing),
	}
}

func (i *Importer) previewSensor(record Record) *PreviewSection {
	cfg := i.cfg.Sensors
	if cfg.Name == "" {
		return &PreviewSection{Note: noteNotConfigured}
	}
	if skipped(cfg.IfNotEmpty, record) {
		return &PreviewSection{Note: noteGatedEmpty}
	}

	sensor, err := buildSensor(cfg, record)
	if err != nil {
		return failedSection(err)
	}

	return &PreviewSection{
		Entity:       sensor,
		EqualsFilter: equalsFilter(cfg.EqualsFilter, sensor),
		CacheKey:     i.caches.Sensors.KeyFor(sensor),
	}
}

func (i *Importer) previewObservedProperty(record Record) *PreviewSection {
	cfg := i.cfg.ObservedProperties
	if cfg.Name == "" {
		return &PreviewSection{Note: noteNotConfigured}
	}
	if skipped(cfg.IfNotEmpty, record) {
		return &PreviewSection{Note: noteGatedEmpty}
	}

	observedProperty, err := buildObservedProperty(cfg, record)
	if err != nil {
		return failedSection(err)
	}

	return &PreviewSection{
		Entity:       observedProperty,
		EqualsFilter: equalsFilter(cfg.EqualsFilter, observedProperty),
		CacheKey:     i.caches.ObservedProperties.KeyFor(observedProperty),
	}
}

func (i *Importer) previewDatastream(record Record) *PreviewSection {
	cfg := i.cfg.Datastreams
	if cfg.Name == "" {
		return &PreviewSection{Note: noteNotConfigured}
	}
	if skipped(cfg.IfNotEmpty, record) {
		return &PreviewSection{Note: noteGatedEmpty}
	}

	datastream, err := buildDatastream(cfg, record)
	if err != nil {
		return failedSection(err)
	}

	return &PreviewSection{
		Entity:              datastream,
		EqualsFilter:        equalsFilter(cfg.EqualsFilter, datastream),
		CacheKey:            i.caches.Datastreams.KeyFor(datastream),
		ThingKey:            mapping.Fill(cfg.ThingKey, record, false),
		SensorKey:           mapping.Fill(cfg.SensorKey, record, false),
		ObservedPropertyKey: mapping.Fill(cfg.ObservedPropertyKey, record, false),
	}
}

func (i *Importer) previewFeatureOfInterest(record Record) *PreviewSection {
	cfg := i.cfg.FeaturesOfInterest
	if cfg.Name == "" {
		return &PreviewSection{Note: noteNotConfigured}
	}
	if skipped(cfg.IfNotEmpty, record) {
		return &PreviewSection{Note: noteGatedEmpty}
	}

	foi, err := buildFeatureOfInterest(cfg, record)
	if err != nil {
		return failedSection(err)
	}

	return &PreviewSection{
		Entity:       foi,
		EqualsFilter: equalsFilter(cfg.EqualsFilter, foi),
		CacheKey:     i.caches.FeaturesOfInterest.KeyFor(foi),
	}
}

func (i *Importer) previewObservation(record Record) *PreviewSection {
	cfg := i.cfg.Observations
	if cfg.Result == "" {
		return &PreviewSection{Note: noteNotConfigured}
	}
	if skipped(cfg.IfNotEmpty, record) {
		return &PreviewSection{Note: noteGatedEmpty}
	}

	observation, err := buildObservation(cfg, record)
	if err != nil {
		return failedSection(err)
	}

	section := &PreviewSection{
		Entity:        observation,
		DatastreamKey: mapping.Fill(cfg.DatastreamKey, record, false),
	}

	if cfg.FeatureOfInterestKey != "" {
		section.FeatureOfInterestKey = mapping.Fill(cfg.FeatureOfInterestKey, record, false)
	}

	return section
}
