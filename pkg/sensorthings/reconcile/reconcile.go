package reconcile

import (
	"context"
	"fmt"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/mapping"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/paulmach/orb/geojson"
)

// Outcome says what reconciling one entity amounted to. Dry runs report
// the outcome the calls would have had.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

// Reconciler aligns freshly templated entities with the remote store. An
// entity that already exists remotely is merged and updated when anything
// differs, one that does not is created. Reconciled entities end up in the
// run's caches so later features and cross references reuse them without
// further queries.
type Reconciler struct {
	sta    client.SensorThingsClient
	caches *Caches
	dryRun bool
}

func NewReconciler(sta client.SensorThingsClient, caches *Caches, options ...func(*Reconciler)) *Reconciler {
	r := &Reconciler{
		sta:    sta,
		caches: caches,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// DryRun replaces create and update calls with log entries, for previewing
// the effect of a mapping configuration without touching the remote store.
func DryRun(enabled bool) func(*Reconciler) {
	return func(r *Reconciler) {
		r.dryRun = enabled
	}
}

// DefaultEqualsFilter matches on the entity name. It is used whenever a
// kind has no equals filter template configured.
func DefaultEqualsFilter(name string) string {
	return "name eq '" + mapping.EscapeString(name) + "'"
}

// Thing reconciles a thing. When keepLocations is set, locations on the
// incoming thing are added to the existing ones, otherwise they replace
// them whenever the two sets of location ids differ.
func (r *Reconciler) Thing(ctx context.Context, incoming *entities.Thing, filter string, keepLocations bool) (*entities.Thing, Outcome, error) {
	merge := func(existing *entities.Thing) bool {
		changed := false
		if mergeString(&existing.Name, incoming.Name) {
			changed = true
		}
		if mergeString(&existing.Description, incoming.Description) {
			changed = true
		}
		if mergeProps(&existing.Properties, incoming.Properties, DefaultMergeDepth) {
			changed = true
		}
		if mergeLocationRefs(existing, incoming, keepLocations) {
			changed = true
		}
		return changed
	}

	return findOrCreate(ctx, r, entities.SetThings, r.caches.Things, incoming, filter, merge,
		client.Expand("Locations($select=id)"),
	)
}

func (r *Reconciler) Location(ctx context.Context, incoming *entities.Location, filter string) (*entities.Location, Outcome, error) {
	merge := func(existing *entities.Location) bool {
		changed := false
		if mergeString(&existing.Name, incoming.Name) {
			changed = true
		}
		if mergeString(&existing.Description, incoming.Description) {
			changed = true
		}
		if mergeString(&existing.EncodingType, incoming.EncodingType) {
			changed = true
		}
		if mergeProps(&existing.Properties, incoming.Properties, LocationMergeDepth) {
			changed = true
		}
		if mergeGeometry(&existing.Location, incoming.Location) {
			changed = true
		}
		return changed
	}

	return findOrCreate(ctx, r, entities.SetLocations, r.caches.Locations, incoming, filter, merge)
}

func (r *Reconciler) Sensor(ctx context.Context, incoming *entities.Sensor, filter string) (*entities.Sensor, Outcome, error) {
	merge := func(existing *entities.Sensor) bool {
		changed := false
		if mergeString(&existing.Name, incoming.Name) {
			changed = true
		}
		if mergeString(&existing.Description, incoming.Description) {
			changed = true
		}
		if mergeString(&existing.EncodingType, incoming.EncodingType) {
			changed = true
		}
		if mergeString(&existing.Metadata, incoming.Metadata) {
			changed = true
		}
		if mergeProps(&existing.Properties, incoming.Properties, DefaultMergeDepth) {
			changed = true
		}
		return changed
	}

	return findOrCreate(ctx, r, entities.SetSensors, r.caches.Sensors, incoming, filter, merge)
}

func (r *Reconciler) ObservedProperty(ctx context.Context, incoming *entities.ObservedProperty, filter string) (*entities.ObservedProperty, Outcome, error) {
	merge := func(existing *entities.ObservedProperty) bool {
		changed := false
		if mergeString(&existing.Name, incoming.Name) {
			changed = true
		}
		if mergeString(&existing.Definition, incoming.Definition) {
			changed = true
		}
		if mergeString(&existing.Description, incoming.Description) {
			changed = true
		}
		if mergeProps(&existing.Properties, incoming.Properties, DefaultMergeDepth) {
			changed = true
		}
		return changed
	}

	return findOrCreate(ctx, r, entities.SetObservedProperties, r.caches.ObservedProperties, incoming, filter, merge)
}

// Datastream reconciles a datastream. References to the thing, sensor and
// observed property are linked at creation and never relinked on update.
func (r *Reconciler) Datastream(ctx context.Context, incoming *entities.Datastream, filter string) (*entities.Datastream, Outcome, error) {
	merge := func(existing *entities.Datastream) bool {
		changed := false
		if mergeString(&existing.Name, incoming.Name) {
			changed = true
		}
		if mergeString(&existing.Description, incoming.Description) {
			changed = true
		}
		if mergeString(&existing.ObservationType, incoming.ObservationType) {
			changed = true
		}
		if mergeProps(&existing.Properties, incoming.Properties, DefaultMergeDepth) {
			changed = true
		}
		if mergeUnit(&existing.UnitOfMeasurement, incoming.UnitOfMeasurement) {
			changed = true
		}
		return changed
	}

	return findOrCreate(ctx, r, entities.SetDatastreams, r.caches.Datastreams, incoming, filter, merge)
}

func (r *Reconciler) FeatureOfInterest(ctx context.Context, incoming *entities.FeatureOfInterest, filter string) (*entities.FeatureOfInterest, Outcome, error) {
	merge := func(existing *entities.FeatureOfInterest) bool {
		changed := false
		if mergeString(&existing.Name, incoming.Name) {
			changed = true
		}
		if mergeString(&existing.Description, incoming.Description) {
			changed = true
		}
		if mergeString(&existing.EncodingType, incoming.EncodingType) {
			changed = true
		}
		if mergeGeometry(&existing.Feature, incoming.Feature) {
			changed = true
		}
		if mergeProps(&existing.Properties, incoming.Properties, DefaultMergeDepth) {
			changed = true
		}
		return changed
	}

	return findOrCreate(ctx, r, entities.SetFeaturesOfInterest, r.caches.FeaturesOfInterest, incoming, filter, merge)
}

func findOrCreate[T any, PT interface {
	*T
	entities.Entity
}](ctx context.Context, r *Reconciler, set string, cache *Cache[PT], incoming PT, filter string, merge func(existing PT) bool, params ...client.RequestDecoratorFunc) (PT, Outcome, error) {
	var none PT

	if existing, ok := cache.ByKey(cache.KeyFor(incoming)); ok {
		return applyMerge(ctx, r, set, cache, existing, merge)
	}

	if filter == "" {
		filter = DefaultEqualsFilter(incoming.EntityName())
	}

	params = append(params, client.Filter(filter), client.Top(2))

	matches := make([]PT, 0, 2)
	_, err := client.QueryAll(ctx, r.sta, set, func(e *T) error {
		matches = append(matches, PT(e))
		return nil
	}, params...)
	if err != nil {
		return none, Unchanged, err
	}

	if len(matches) > 1 {
		return none, Unchanged, errors.NewAmbiguousMatchError(
			fmt.Sprintf("more than one entity in %s matches filter %s", set, filter),
		)
	}

	if len(matches) == 1 {
		return applyMerge(ctx, r, set, cache, matches[0], merge)
	}

	log := logging.GetFromContext(ctx)

	if r.dryRun {
		log.Info("dry run: not creating entity", "set", set, "name", incoming.EntityName())
	} else {
		log.Info("creating entity", "set", set, "name", incoming.EntityName())

		id, err := r.sta.Create(ctx, set, incoming)
		if err != nil {
			return none, Unchanged, err
		}

		incoming.SetIdentity(id)
	}

	cache.Put(incoming)

	return incoming, Created, nil
}

func applyMerge[PT entities.Entity](ctx context.Context, r *Reconciler, set string, cache *Cache[PT], existing PT, merge func(PT) bool) (PT, Outcome, error) {
	outcome := Unchanged

	if merge(existing) {
		log := logging.GetFromContext(ctx)

		if r.dryRun {
			log.Info("dry run: not updating entity", "set", set, "name", existing.EntityName())
		} else {
			log.Info("updating entity", "set", set, "name", existing.EntityName())

			if err := r.sta.Update(ctx, set, existing.Identity(), existing); err != nil {
				var none PT
				return none, Unchanged, err
			}
		}

		outcome = Updated
	}

	cache.Put(existing)

	return existing, outcome, nil
}

func mergeString(target *string, value string) bool {
	if *target == value {
		return false
	}

	*target = value
	return true
}

// mergeProps backfills a missing property map wholesale and merges into an
// existing one.
func mergeProps(target *map[string]any, source map[string]any, maxDepth int) bool {
	if *target == nil && len(source) > 0 {
		*target = source
		return true
	}

	return MergeProperties(*target, source, maxDepth)
}

func mergeUnit(target **entities.UnitOfMeasurement, unit *entities.UnitOfMeasurement) bool {
	if unit == nil {
		return false
	}

	if *target != nil && **target == *unit {
		return false
	}

	*target = unit
	return true
}

func mergeGeometry(target **geojson.Geometry, geometry *geojson.Geometry) bool {
	if entities.GeometriesEqual(*target, geometry) {
		return false
	}

	*target = geometry
	return true
}

func mergeLocationRefs(existing, incoming *entities.Thing, keepLocations bool) bool {
	if incoming.Locations == nil {
		return false
	}

	if keepLocations {
		changed := false
		for _, location := range incoming.Locations {
			if !containsLocation(existing.Locations, location.ID) {
				existing.Locations = append(existing.Locations, location.Ref())
				changed = true
			}
		}
		return changed
	}

	if locationIDsEqual(existing.Locations, incoming.Locations) {
		return false
	}

	refs := make([]*entities.Location, 0, len(incoming.Locations))
	for _, location := range incoming.Locations {
		refs = append(refs, location.Ref())
	}

	existing.Locations = refs
	return true
}

func containsLocation(list []*entities.Location, id entities.ID) bool {
	for _, entry := range list {
		if entry.ID.Equal(id) {
			return true
		}
	}
	return false
}

func locationIDsEqual(first, second []*entities.Location) bool {
	if len(first) != len(second) {
		return false
	}

	for _, entry := range first {
		if !containsLocation(second, entry.ID) {
			return false
		}
	}

	return true
}
