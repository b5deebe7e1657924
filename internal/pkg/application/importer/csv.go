package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/diwise/sensorthings-importer/internal/pkg/application/projection"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseRecords decodes input into feature records, reading it as CSV when
// the configuration says so and as a GeoJSON feature collection otherwise.
func ParseRecords(data []byte, cfg *Config) ([]Record, error) {
	if cfg.CSV.Enabled {
		return LoadCSV(data, cfg.CSV)
	}

	return ParseFeatureCollection(data)
}

// LoadCSV converts rows of delimited text into feature records. Columns
// become properties keyed by header name, or by column index when the file
// has no header row. A point geometry is built from the two axis columns
// when both are present, passed through the coordinate transformer using
// the configured reference system (a column name or a literal value).
func LoadCSV(data []byte, cfg CSVSettings) ([]Record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	reader.Comma = ','
	if cfg.Delimiter != "" {
		reader.Comma = []rune(cfg.Delimiter)[0]
	}
	if cfg.TabDelimited {
		reader.Comma = '\t'
	}
	if cfg.CommentMarker != "" {
		reader.Comment = []rune(cfg.CommentMarker)[0]
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewMalformedPayloadError("failed to parse csv: " + err.Error())
	}

	var header []string
	if cfg.HasHeader && len(rows) > 0 {
		header = rows[0]
		rows = rows[1:]
	}

	records := make([]Record, 0, len(rows))

	for index, row := range rows {
		if index+1 < cfg.RowSkip {
			continue
		}

		record := Record{properties: rowProperties(header, row)}

		record.geometry, err = rowGeometry(record.properties, cfg)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

func rowProperties(header []string, row []string) map[string]any {
	properties := make(map[string]any, len(row))

	for i, value := range row {
		if i < len(header) {
			properties[header[i]] = value
		} else if len(header) == 0 {
			properties[strconv.Itoa(i)] = value
		}
	}

	return properties
}

func rowGeometry(properties map[string]any, cfg CSVSettings) (*geojson.Geometry, error) {
	first, firstFound := columnValue(properties, cfg.AxisOne)
	second, secondFound := columnValue(properties, cfg.AxisTwo)

	if !firstFound || !secondFound {
		return nil, nil
	}

	axisOne, err := parseCoordinate(first, cfg.AxisOne)
	if err != nil {
		return nil, err
	}

	axisTwo, err := parseCoordinate(second, cfg.AxisTwo)
	if err != nil {
		return nil, err
	}

	crs := cfg.CRS
	if value, found := columnValue(properties, cfg.CRS); found {
		crs = value
	}

	point := geojson.NewGeometry(orb.Point{axisOne, axisTwo})

	return projection.Reproject(point, crs, scaleOrDefault(cfg.NumberScale), true)
}

func columnValue(properties map[string]any, column string) (string, bool) {
	if column == "" {
		return "", false
	}

	value, found := properties[column]
	if !found {
		return "", false
	}

	s, ok := value.(string)

	return s, ok
}

func parseCoordinate(value, column string) (float64, error) {
	coordinate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, errors.NewMalformedPayloadError(fmt.Sprintf("invalid coordinate %q in column %q", value, column))
	}

	return coordinate, nil
}
