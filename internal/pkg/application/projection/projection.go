// Package projection converts feature geometries from their source
// reference system into EPSG:4326 and rounds the resulting coordinates.
package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
	"github.com/wroge/wgs84"
)

// DefaultScale is the number of fractional digits coordinates are rounded
// to when the mapping configuration does not specify a scale.
const DefaultScale = 6

type transformFunc func(first, second float64) (lon, lat float64, err error)

// Reproject converts a geometry from the given source reference system to
// EPSG:4326, rounding every coordinate half even to scale fractional
// digits. An empty source system means the coordinates are already
// geographic: they are only rounded, and swapped when flipAxes is set.
// With a source system, flipAxes controls which coordinate slot feeds
// which transform axis. Ring and part structure is preserved exactly.
func Reproject(geometry *geojson.Geometry, sourceCRS string, scale int, flipAxes bool) (*geojson.Geometry, error) {
	if geometry == nil {
		return nil, nil
	}

	transform, err := resolveTransform(sourceCRS)
	if err != nil {
		return nil, err
	}

	projected, err := reprojectGeometry(geometry.Geometry(), transform, scale, flipAxes)
	if err != nil {
		return nil, err
	}

	return geojson.NewGeometry(projected), nil
}

func reprojectGeometry(g orb.Geometry, transform transformFunc, scale int, flip bool) (orb.Geometry, error) {
	switch geometry := g.(type) {
	case orb.Point:
		return reprojectPoint(geometry, transform, scale, flip)

	case orb.Polygon:
		out := make(orb.Polygon, 0, len(geometry))
		for _, ring := range geometry {
			outRing := make(orb.Ring, 0, len(ring))
			for _, point := range ring {
				p, err := reprojectPoint(point, transform, scale, flip)
				if err != nil {
					return nil, err
				}
				outRing = append(outRing, p)
			}
			out = append(out, outRing)
		}
		return out, nil

	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(geometry))
		for _, polygon := range geometry {
			outPolygon, err := reprojectGeometry(polygon, transform, scale, flip)
			if err != nil {
				return nil, err
			}
			out = append(out, outPolygon.(orb.Polygon))
		}
		return out, nil
	}

	return nil, errors.NewProjectionError(fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType()))
}

func reprojectPoint(p orb.Point, transform transformFunc, scale int, flip bool) (orb.Point, error) {
	if transform == nil {
		if flip {
			return orb.Point{round(p[1], scale), round(p[0], scale)}, nil
		}
		return orb.Point{round(p[0], scale), round(p[1], scale)}, nil
	}

	first, second := p[1], p[0]
	if flip {
		first, second = p[0], p[1]
	}

	lon, lat, err := transform(first, second)
	if err != nil {
		return orb.Point{}, err
	}

	return orb.Point{round(lon, scale), round(lat, scale)}, nil
}

// resolveTransform turns a reference system identifier into a transform to
// EPSG:4326. Bare numeric codes are treated as EPSG codes.
func resolveTransform(sourceCRS string) (transformFunc, error) {
	if sourceCRS == "" {
		return nil, nil
	}

	code := sourceCRS
	if i := strings.LastIndex(code, ":"); i >= 0 {
		code = code[i+1:]
	}

	epsgCode, err := strconv.Atoi(code)
	if err != nil {
		return nil, errors.NewProjectionError(fmt.Sprintf("unsupported reference system %q", sourceCRS))
	}

	registry := wgs84.EPSG()

	source := registry.Code(epsgCode)
	if source == nil {
		return nil, errors.NewProjectionError(fmt.Sprintf("unknown reference system %q", sourceCRS))
	}

	toGeographic := wgs84.Transform(source, registry.Code(4326))

	return func(first, second float64) (float64, float64, error) {
		lon, lat, _ := toGeographic(first, second, 0)

		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			return 0, 0, errors.NewProjectionError(fmt.Sprintf("failed to transform coordinates from %q", sourceCRS))
		}

		return lon, lat, nil
	}, nil
}

func round(value float64, scale int) float64 {
	rounded, _ := decimal.NewFromFloat(value).RoundBank(int32(scale)).Float64()
	return rounded
}
