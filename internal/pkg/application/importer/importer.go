// Package importer drives one import: it turns feature records into typed
// entities using the mapping configuration, reconciles them against the
// remote store and bulk uploads the derived observations.
package importer

import (
	"context"
	"fmt"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/mapping"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/reconcile"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("sensorthings-importer/importer")

// Report sums up one import run. Failed counts features, not entities, and
// every failure also leaves a message in Errors.
type Report struct {
	RunID  string `json:"runId"`
	DryRun bool   `json:"dryRun"`

	Features  int `json:"features"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`

	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	Observations int `json:"observations"`

	Errors []string `json:"errors,omitempty"`
}

func (r *Report) count(outcome reconcile.Outcome) {
	switch outcome {
	case reconcile.Created:
		r.Created++
	case reconcile.Updated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

type Importer struct {
	cfg    *Config
	sta    client.SensorThingsClient
	caches *reconcile.Caches
	rec    *reconcile.Reconciler
}

// New creates an importer for one run. The caches it builds are part of
// the run's state, so a new importer is needed for every run.
func New(cfg *Config, sta client.SensorThingsClient) *Importer {
	caches := reconcile.NewCaches(cfg.CacheConfig())

	return &Importer{
		cfg:    cfg,
		sta:    sta,
		caches: caches,
		rec:    reconcile.NewReconciler(sta, caches, reconcile.DryRun(cfg.DryRun)),
	}
}

type runState struct {
	sensorDone  bool
	obsPropDone bool

	observations *observationBatcher
}

// Run imports the records in input order. Caches are bulk loaded up front
// and a load failure ends the run, while a failing feature is reported and
// skipped. Observations are collected along the way and uploaded in
// batches at the end.
func (i *Importer) Run(ctx context.Context, records []Record) (*Report, error) {
	var err error
	ctx, span := tracer.Start(ctx, "import-run")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	report := &Report{
		RunID:    uuid.NewString(),
		DryRun:   i.cfg.DryRun,
		Features: len(records),
	}

	ctx = logging.NewContextWithLogger(ctx, logging.GetFromContext(ctx), "run_id", report.RunID)
	log := logging.GetFromContext(ctx)

	err = i.caches.Load(ctx, i.sta)
	if err != nil {
		return nil, err
	}

	state := &runState{observations: newObservationBatcher()}

	for index, record := range records {
		if recordErr := i.importRecord(ctx, record, state, report); recordErr != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("feature %d: %s", index, recordErr.Error()))
			log.Error("failed to import feature", "index", index, "err", recordErr.Error())
			continue
		}

		report.Processed++
	}

	err = i.uploadObservations(ctx, state, report)
	if err != nil {
		return report, err
	}

	log.Info("import finished",
		"processed", report.Processed,
		"failed", report.Failed,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"observations", report.Observations,
	)

	return report, nil
}

func (i *Importer) importRecord(ctx context.Context, record Record, state *runState, report *Report) error {
	location, err := i.importLocation(ctx, record, report)
	if err != nil {
		return err
	}

	if err := i.importThing(ctx, record, location, report); err != nil {
		return err
	}

	if err := i.importSensor(ctx, record, state, report); err != nil {
		return err
	}

	if err := i.importObservedProperty(ctx, record, state, report); err != nil {
		return err
	}

	if err := i.importDatastream(ctx, record, report); err != nil {
		return err
	}

	if err := i.importFeatureOfInterest(ctx, record, report); err != nil {
		return err
	}

	return i.collectObservation(record, state)
}

func (i *Importer) importLocation(ctx context.Context, record Record, report *Report) (*entities.Location, error) {
	cfg := i.cfg.Locations
	if cfg.Name == "" || skipped(cfg.IfNotEmpty, record) {
		return nil, nil
	}

	incoming, err := buildLocation(cfg, record)
	if err != nil {
		return nil, err
	}

	location, outcome, err := i.rec.Location(ctx, incoming, mapping.Fill(cfg.EqualsFilter, incoming, true))
	if err != nil {
		return nil, err
	}

	report.count(outcome)

	return location, nil
}

func (i *Importer) importThing(ctx context.Context, record Record, location *entities.Location, report *Report) error {
	cfg := i.cfg.Things

	var incoming *entities.Thing

	switch {
	case cfg.MirrorLocations && location != nil:
		incoming = &entities.Thing{
			Name:        location.Name,
			Description: location.Description,
			Properties:  location.Properties,
			Locations:   []*entities.Location{location.Ref()},
		}
	case cfg.Name != "" && !skipped(cfg.IfNotEmpty, record):
		var err error
		incoming, err = buildThing(cfg, record)
		if err != nil {
			return err
		}
		if location != nil {
			incoming.Locations = []*entities.Location{location.Ref()}
		}
	default:
		return nil
	}

	_, outcome, err := i.rec.Thing(ctx, incoming, mapping.Fill(cfg.EqualsFilter, incoming, true), cfg.KeepLocations)
	if err != nil {
		return err
	}

	report.count(outcome)

	return nil
}

func (i *Importer) importSensor(ctx context.Context, record Record, state *runState, report *Report) error {
	cfg := i.cfg.Sensors
	if cfg.Name == "" || skipped(cfg.IfNotEmpty, record) {
		return nil
	}
	if cfg.EvaluateOnce && state.sensorDone {
		return nil
	}

	incoming, err := buildSensor(cfg, record)
	if err != nil {
		return err
	}

	_, outcome, err := i.rec.Sensor(ctx, incoming, mapping.Fill(cfg.EqualsFilter, incoming, true))
	if err != nil {
		return err
	}

	state.sensorDone = true
	report.count(outcome)

	return nil
}

func (i *Importer) importObservedProperty(ctx context.Context, record Record, state *runState, report *Report) error {
	cfg := i.cfg.ObservedProperties
	if cfg.Name == "" || skipped(cfg.IfNotEmpty, record) {
		return nil
	}
	if cfg.EvaluateOnce && state.obsPropDone {
		return nil
	}

	incoming, err := buildObservedProperty(cfg, record)
	if err != nil {
		return err
	}

	_, outcome, err := i.rec.ObservedProperty(ctx, incoming, mapping.Fill(cfg.EqualsFilter, incoming, true))
	if err != nil {
		return err
	}

	state.obsPropDone = true
	report.count(outcome)

	return nil
}

func (i *Importer) importDatastream(ctx context.Context, record Record, report *Report) error {
	cfg := i.cfg.Datastreams
	if cfg.Name == "" || skipped(cfg.IfNotEmpty, record) {
		return nil
	}

	incoming, err := buildDatastream(cfg, record)
	if err != nil {
		return err
	}

	if thing, ok := i.caches.Things.ByKey(mapping.Fill(cfg.ThingKey, record, false)); ok {
		incoming.Thing = thing.Ref()
	}
	if sensor, ok := i.caches.Sensors.ByKey(mapping.Fill(cfg.SensorKey, record, false)); ok {
		incoming.Sensor = sensor.Ref()
	}
	if obsProp, ok := i.caches.ObservedProperties.ByKey(mapping.Fill(cfg.ObservedPropertyKey, record, false)); ok {
		incoming.ObservedProperty = obsProp.Ref()
	}

	_, outcome, err := i.rec.Datastream(ctx, incoming, mapping.Fill(cfg.EqualsFilter, incoming, true))
	if err != nil {
		return err
	}

	report.count(outcome)

	return nil
}

func (i *Importer) importFeatureOfInterest(ctx context.Context, record Record, report *Report) error {
	cfg := i.cfg.FeaturesOfInterest
	if cfg.Name == "" || skipped(cfg.IfNotEmpty, record) {
		return nil
	}

	incoming, err := buildFeatureOfInterest(cfg, record)
	if err != nil {
		return err
	}

	_, outcome, err := i.rec.FeatureOfInterest(ctx, incoming, mapping.Fill(cfg.EqualsFilter, incoming, true))
	if err != nil {
		return err
	}

	report.count(outcome)

	return nil
}
