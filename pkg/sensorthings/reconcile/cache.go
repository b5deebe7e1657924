package reconcile

import (
	"context"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/mapping"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// CacheSettings configures one entity cache: the template its keys are
// computed from and the query that bulk loads it from the remote store.
// A cache without a load filter starts out empty and fills up as entities
// are reconciled.
type CacheSettings struct {
	Key    string
	Filter string
	Select string
	Expand string
}

const defaultCacheKey = "{name}"

// Cache indexes the entities of one kind by computed cache key and by name.
// Both indexes keep insertion order. Colliding keys silently overwrite the
// earlier entry.
type Cache[T entities.Entity] struct {
	keyTemplate string

	byKey     map[string]T
	keyOrder  []string
	byName    map[string]T
	nameOrder []string

	loaded bool
}

func NewCache[T entities.Entity](keyTemplate string) *Cache[T] {
	if keyTemplate == "" {
		keyTemplate = defaultCacheKey
	}

	return &Cache[T]{
		keyTemplate: keyTemplate,
		byKey:       map[string]T{},
		byName:      map[string]T{},
	}
}

// KeyFor computes the cache key for an entity by evaluating the configured
// key template against it.
func (c *Cache[T]) KeyFor(e T) string {
	return mapping.Fill(c.keyTemplate, e, false)
}

// Put indexes an entity under its computed key and under its name.
func (c *Cache[T]) Put(e T) {
	key := c.KeyFor(e)

	if _, exists := c.byKey[key]; !exists {
		c.keyOrder = append(c.keyOrder, key)
	}
	c.byKey[key] = e

	name := e.EntityName()
	if name == "" {
		return
	}

	if _, exists := c.byName[name]; !exists {
		c.nameOrder = append(c.nameOrder, name)
	}
	c.byName[name] = e
}

func (c *Cache[T]) ByKey(key string) (T, bool) {
	e, ok := c.byKey[key]
	return e, ok
}

func (c *Cache[T]) ByName(name string) (T, bool) {
	e, ok := c.byName[name]
	return e, ok
}

func (c *Cache[T]) Len() int {
	return len(c.byKey)
}

// All returns the cached entities in insertion order.
func (c *Cache[T]) All() []T {
	all := make([]T, 0, len(c.keyOrder))
	for _, key := range c.keyOrder {
		all = append(all, c.byKey[key])
	}
	return all
}

// Loaded reports whether the cache has been bulk loaded this run.
func (c *Cache[T]) Loaded() bool {
	return c.loaded
}

// LoadCache bulk loads a cache from the remote store using the filter,
// select and expand from the cache settings, following pagination until
// the full result set has been indexed.
func LoadCache[T any, PT interface {
	*T
	entities.Entity
}](ctx context.Context, sta client.SensorThingsClient, cache *Cache[PT], set string, settings CacheSettings) (int, error) {
	params := make([]client.RequestDecoratorFunc, 0, 3)

	if settings.Filter != "" {
		params = append(params, client.Filter(settings.Filter))
	}
	if settings.Select != "" {
		params = append(params, client.Select(settings.Select))
	}
	if settings.Expand != "" {
		params = append(params, client.Expand(settings.Expand))
	}

	count, err := client.QueryAll(ctx, sta, set, func(e *T) error {
		cache.Put(PT(e))
		return nil
	}, params...)
	if err != nil {
		return count, err
	}

	cache.loaded = true

	return count, nil
}

// CacheConfig holds the cache settings for every entity kind.
type CacheConfig struct {
	Things             CacheSettings
	Locations          CacheSettings
	Sensors            CacheSettings
	ObservedProperties CacheSettings
	Datastreams        CacheSettings
	FeaturesOfInterest CacheSettings
}

// Caches is the working set of one import run: one cache per entity kind,
// constructed when the run starts and discarded when it ends.
type Caches struct {
	Things             *Cache[*entities.Thing]
	Locations          *Cache[*entities.Location]
	Sensors            *Cache[*entities.Sensor]
	ObservedProperties *Cache[*entities.ObservedProperty]
	Datastreams        *Cache[*entities.Datastream]
	FeaturesOfInterest *Cache[*entities.FeatureOfInterest]

	cfg CacheConfig
}

func NewCaches(cfg CacheConfig) *Caches {
	applyDefaults(&cfg)

	return &Caches{
		Things:             NewCache[*entities.Thing](cfg.Things.Key),
		Locations:          NewCache[*entities.Location](cfg.Locations.Key),
		Sensors:            NewCache[*entities.Sensor](cfg.Sensors.Key),
		ObservedProperties: NewCache[*entities.ObservedProperty](cfg.ObservedProperties.Key),
		Datastreams:        NewCache[*entities.Datastream](cfg.Datastreams.Key),
		FeaturesOfInterest: NewCache[*entities.FeatureOfInterest](cfg.FeaturesOfInterest.Key),
		cfg:                cfg,
	}
}

func applyDefaults(cfg *CacheConfig) {
	if cfg.Things.Select == "" {
		cfg.Things.Select = "id,name,description,properties"
	}
	if cfg.Things.Expand == "" {
		cfg.Things.Expand = "Locations($select=id)"
	}
	if cfg.Locations.Select == "" {
		cfg.Locations.Select = "id,name,description,properties,encodingType,location"
	}
	if cfg.Sensors.Select == "" {
		cfg.Sensors.Select = "id,name,description,properties,encodingType,metadata"
	}
	if cfg.ObservedProperties.Select == "" {
		cfg.ObservedProperties.Select = "id,name,description,properties,definition"
	}
	if cfg.Datastreams.Select == "" {
		cfg.Datastreams.Select = "id,name,description,properties,observationType,unitOfMeasurement"
	}
	if cfg.FeaturesOfInterest.Select == "" {
		cfg.FeaturesOfInterest.Select = "id,name,description,properties,encodingType,feature"
	}
}

// Load bulk loads every cache that has a load filter configured. A load
// failure is fatal for the run, not for a single feature.
func (c *Caches) Load(ctx context.Context, sta client.SensorThingsClient) error {
	log := logging.GetFromContext(ctx)

	type loader struct {
		set      string
		settings CacheSettings
		load     func(context.Context) (int, error)
	}

	loaders := []loader{
		{entities.SetThings, c.cfg.Things, func(ctx context.Context) (int, error) {
			return LoadCache(ctx, sta, c.Things, entities.SetThings, c.cfg.Things)
		}},
		{entities.SetLocations, c.cfg.Locations, func(ctx context.Context) (int, error) {
			return LoadCache(ctx, sta, c.Locations, entities.SetLocations, c.cfg.Locations)
		}},
		{entities.SetSensors, c.cfg.Sensors, func(ctx context.Context) (int, error) {
			return LoadCache(ctx, sta, c.Sensors, entities.SetSensors, c.cfg.Sensors)
		}},
		{entities.SetObservedProperties, c.cfg.ObservedProperties, func(ctx context.Context) (int, error) {
			return LoadCache(ctx, sta, c.ObservedProperties, entities.SetObservedProperties, c.cfg.ObservedProperties)
		}},
		{entities.SetDatastreams, c.cfg.Datastreams, func(ctx context.Context) (int, error) {
			return LoadCache(ctx, sta, c.Datastreams, entities.SetDatastreams, c.cfg.Datastreams)
		}},
		{entities.SetFeaturesOfInterest, c.cfg.FeaturesOfInterest, func(ctx context.Context) (int, error) {
			return LoadCache(ctx, sta, c.FeaturesOfInterest, entities.SetFeaturesOfInterest, c.cfg.FeaturesOfInterest)
		}},
	}

	for _, l := range loaders {
		if l.settings.Filter == "" {
			continue
		}

		count, err := l.load(ctx)
		if err != nil {
			return err
		}

		log.Info("cache loaded", "set", l.set, "count", count)
	}

	return nil
}
