package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/mapping"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

func (i *Importer) collectObservation(record Record, state *runState) error {
	cfg := i.cfg.Observations
	if cfg.Result == "" || skipped(cfg.IfNotEmpty, record) {
		return nil
	}

	observation, err := buildObservation(cfg, record)
	if err != nil {
		return err
	}

	dsKey := mapping.Fill(cfg.DatastreamKey, record, false)

	datastream, ok := i.caches.Datastreams.ByKey(dsKey)
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("no datastream cached under key %q", dsKey))
	}

	observation.Datastream = datastream

	if cfg.FeatureOfInterestKey != "" {
		foiKey := mapping.Fill(cfg.FeatureOfInterestKey, record, false)

		foi, ok := i.caches.FeaturesOfInterest.ByKey(foiKey)
		if !ok {
			return errors.NewNotFoundError(fmt.Sprintf("no feature of interest cached under key %q", foiKey))
		}

		observation.FeatureOfInterest = foi.Ref()
	}

	state.observations.add(observation)

	return nil
}

// observationBatcher groups observations into dataArray payloads. Rows end
// up in one group per datastream and component layout, in the order the
// observations arrived.
type observationBatcher struct {
	groups map[string]*entities.DataArray
	order  []string
	count  int
}

func newObservationBatcher() *observationBatcher {
	return &observationBatcher{groups: map[string]*entities.DataArray{}}
}

func (b *observationBatcher) add(o *entities.Observation) {
	components := []string{"phenomenonTime", "result"}
	row := []any{o.PhenomenonTime.String(), o.Result}

	if o.Parameters != nil {
		components = append(components, "parameters")
		row = append(row, o.Parameters)
	}

	if o.FeatureOfInterest != nil {
		components = append(components, "FeatureOfInterest/id")
		row = append(row, o.FeatureOfInterest.ID)
	}

	key := o.Datastream.ID.String() + "|" + strings.Join(components, ",")

	group, ok := b.groups[key]
	if !ok {
		group = &entities.DataArray{
			Datastream: o.Datastream.Ref(),
			Components: components,
		}
		b.groups[key] = group
		b.order = append(b.order, key)
	}

	group.Rows = append(group.Rows, row)
	b.count++
}

// batches splits the groups into chunks of at most size rows per request,
// slicing groups that do not fit into one chunk.
func (b *observationBatcher) batches(size int) [][]entities.DataArray {
	var result [][]entities.DataArray

	var current []entities.DataArray
	remaining := size

	flush := func() {
		if len(current) > 0 {
			result = append(result, current)
			current = nil
			remaining = size
		}
	}

	for _, key := range b.order {
		group := b.groups[key]
		rows := group.Rows

		for len(rows) > 0 {
			if remaining == 0 {
				flush()
			}

			n := min(remaining, len(rows))
			current = append(current, entities.DataArray{
				Datastream: group.Datastream,
				Components: group.Components,
				Rows:       rows[:n],
			})
			rows = rows[n:]
			remaining -= n
		}
	}

	flush()

	return result
}

func (i *Importer) uploadObservations(ctx context.Context, state *runState, report *Report) error {
	if state.observations.count == 0 {
		return nil
	}

	log := logging.GetFromContext(ctx)

	if i.cfg.DryRun {
		log.Info("dry run: not uploading observations", "count", state.observations.count)
		report.Observations = state.observations.count
		return nil
	}

	index := 0

	for _, batch := range state.observations.batches(i.cfg.Observations.BatchSize) {
		results, err := i.sta.CreateObservations(ctx, batch)
		if err != nil {
			return err
		}

		for _, result := range results {
			if strings.EqualFold(result, "error") {
				report.Errors = append(report.Errors, fmt.Sprintf("observation %d was rejected by the store", index))
			} else {
				report.Observations++
			}
			index++
		}
	}

	return nil
}
