package importer

import (
	"io"

	"github.com/diwise/sensorthings-importer/internal/pkg/application/projection"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/reconcile"
	yaml "gopkg.in/yaml.v2"
)

// DefaultObservationBatchSize bounds the number of observations sent per
// dataArray request.
const DefaultObservationBatchSize = 1000

const defaultKeyTemplate = "{name}"

// Config is the mapping configuration of one import. Every template uses
// {path/to/field|default} placeholders, filled against the feature record
// unless noted otherwise. A kind without a name template (result template
// for observations) is not imported at all.
type Config struct {
	DryRun bool `yaml:"dryRun"`

	CSV CSVSettings `yaml:"csv"`

	Things             ThingSettings             `yaml:"things"`
	Locations          LocationSettings          `yaml:"locations"`
	Sensors            SensorSettings            `yaml:"sensors"`
	ObservedProperties ObservedPropertySettings  `yaml:"observedProperties"`
	Datastreams        DatastreamSettings        `yaml:"datastreams"`
	FeaturesOfInterest FeatureOfInterestSettings `yaml:"featuresOfInterest"`
	Observations       ObservationSettings       `yaml:"observations"`
}

// CacheSettings configures the entity cache of one kind. The key template
// and the equals filter template run against the new entity, not against
// the record.
type CacheSettings struct {
	Key    string `yaml:"key"`
	Filter string `yaml:"filter"`
	Select string `yaml:"select"`
	Expand string `yaml:"expand"`
}

type ThingSettings struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Properties   string `yaml:"properties"`
	EqualsFilter string `yaml:"equalsFilter"`
	IfNotEmpty   string `yaml:"ifNotEmpty"`

	// MirrorLocations derives one thing per imported location, carrying the
	// location's name, description and properties and linked to it.
	MirrorLocations bool `yaml:"mirrorLocations"`
	// KeepLocations adds new location links to existing things instead of
	// replacing the linked set.
	KeepLocations bool `yaml:"keepLocations"`

	Cache CacheSettings `yaml:"cache"`
}

type LocationSettings struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Properties   string `yaml:"properties"`
	CRS          string `yaml:"crs"`
	FlipAxes     bool   `yaml:"flipAxes"`
	NumberScale  *int   `yaml:"numberScale"`
	EqualsFilter string `yaml:"equalsFilter"`
	IfNotEmpty   string `yaml:"ifNotEmpty"`

	Cache CacheSettings `yaml:"cache"`
}

type SensorSettings struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	EncodingType string `yaml:"encodingType"`
	Metadata     string `yaml:"metadata"`
	Properties   string `yaml:"properties"`
	EqualsFilter string `yaml:"equalsFilter"`
	IfNotEmpty   string `yaml:"ifNotEmpty"`
	EvaluateOnce bool   `yaml:"evaluateOnce"`

	Cache CacheSettings `yaml:"cache"`
}

type ObservedPropertySettings struct {
	Name         string `yaml:"name"`
	Definition   string `yaml:"definition"`
	Description  string `yaml:"description"`
	Properties   string `yaml:"properties"`
	EqualsFilter string `yaml:"equalsFilter"`
	IfNotEmpty   string `yaml:"ifNotEmpty"`
	EvaluateOnce bool   `yaml:"evaluateOnce"`

	Cache CacheSettings `yaml:"cache"`
}

type UnitTemplates struct {
	Name       string `yaml:"name"`
	Symbol     string `yaml:"symbol"`
	Definition string `yaml:"definition"`
}

type DatastreamSettings struct {
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Properties      string        `yaml:"properties"`
	ObservationType string        `yaml:"observationType"`
	Unit            UnitTemplates `yaml:"unit"`
	EqualsFilter    string        `yaml:"equalsFilter"`
	IfNotEmpty      string        `yaml:"ifNotEmpty"`

	// Cache key templates locating the entities this datastream links to,
	// filled against the record.
	ThingKey            string `yaml:"thingKey"`
	SensorKey           string `yaml:"sensorKey"`
	ObservedPropertyKey string `yaml:"observedPropertyKey"`

	Cache CacheSettings `yaml:"cache"`
}

type FeatureOfInterestSettings struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Properties   string `yaml:"properties"`
	CRS          string `yaml:"crs"`
	FlipAxes     bool   `yaml:"flipAxes"`
	NumberScale  *int   `yaml:"numberScale"`
	EqualsFilter string `yaml:"equalsFilter"`
	IfNotEmpty   string `yaml:"ifNotEmpty"`

	Cache CacheSettings `yaml:"cache"`
}

type ObservationSettings struct {
	Result         string `yaml:"result"`
	PhenomenonTime string `yaml:"phenomenonTime"`
	Parameters     string `yaml:"parameters"`
	IfNotEmpty     string `yaml:"ifNotEmpty"`

	DatastreamKey        string `yaml:"datastreamKey"`
	FeatureOfInterestKey string `yaml:"featureOfInterestKey"`

	BatchSize int `yaml:"batchSize"`
}

// CSVSettings describes how delimited text converts to feature records.
type CSVSettings struct {
	Enabled       bool   `yaml:"enabled"`
	Delimiter     string `yaml:"delimiter"`
	TabDelimited  bool   `yaml:"tabDelimited"`
	CommentMarker string `yaml:"commentMarker"`
	HasHeader     bool   `yaml:"hasHeader"`
	RowSkip       int    `yaml:"rowSkip"`

	// AxisOne and AxisTwo name the coordinate columns, in the axis order of
	// the reference system. CRS is the name of a column holding the
	// reference system, or the reference system itself when no such column
	// exists.
	AxisOne     string `yaml:"axisOne"`
	AxisTwo     string `yaml:"axisTwo"`
	CRS         string `yaml:"crs"`
	NumberScale *int   `yaml:"numberScale"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Datastreams.ThingKey == "" {
		cfg.Datastreams.ThingKey = defaultKeyTemplate
	}
	if cfg.Datastreams.SensorKey == "" {
		cfg.Datastreams.SensorKey = defaultKeyTemplate
	}
	if cfg.Datastreams.ObservedPropertyKey == "" {
		cfg.Datastreams.ObservedPropertyKey = defaultKeyTemplate
	}
	if cfg.Observations.DatastreamKey == "" {
		cfg.Observations.DatastreamKey = defaultKeyTemplate
	}
	if cfg.Observations.BatchSize <= 0 {
		cfg.Observations.BatchSize = DefaultObservationBatchSize
	}
	if cfg.CSV.Delimiter == "" {
		cfg.CSV.Delimiter = ","
	}
}

// CacheConfig translates the per kind cache sections into the shape the
// reconciler caches are constructed from.
func (cfg *Config) CacheConfig() reconcile.CacheConfig {
	settings := func(s CacheSettings) reconcile.CacheSettings {
		return reconcile.CacheSettings{
			Key:    s.Key,
			Filter: s.Filter,
			Select: s.Select,
			Expand: s.Expand,
		}
	}

	return reconcile.CacheConfig{
		Things:             settings(cfg.Things.Cache),
		Locations:          settings(cfg.Locations.Cache),
		Sensors:            settings(cfg.Sensors.Cache),
		ObservedProperties: settings(cfg.ObservedProperties.Cache),
		Datastreams:        settings(cfg.Datastreams.Cache),
		FeaturesOfInterest: settings(cfg.FeaturesOfInterest.Cache),
	}
}

func scaleOrDefault(scale *int) int {
	if scale == nil {
		return projection.DefaultScale
	}
	return *scale
}
