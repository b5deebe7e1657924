package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
)

// QueryAll queries an entity set and invokes the callback once for every
// entity in the result, transparently following pagination links until the
// result set is exhausted or the callback returns an error.
//
// Entities are decoded with json.Number so that numeric property values
// keep their exact textual form.
func QueryAll[T any](ctx context.Context, c SensorThingsClient, set string, callback func(*T) error, parameters ...RequestDecoratorFunc) (int, error) {
	count := 0

	page, err := c.Query(ctx, set, parameters...)

	for {
		if err != nil {
			return count, err
		}

		for _, raw := range page.Values {
			entity := new(T)

			decoder := json.NewDecoder(bytes.NewReader(raw))
			decoder.UseNumber()

			if err := decoder.Decode(entity); err != nil {
				return count, fmt.Errorf("failed to unmarshal entity: %s (%w)", err.Error(), errors.ErrBadResponse)
			}

			count++

			if err := callback(entity); err != nil {
				return count, err
			}
		}

		if page.NextLink == "" {
			break
		}

		page, err = c.QueryNext(ctx, page.NextLink)
	}

	return count, nil
}
