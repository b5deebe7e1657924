package importer

import (
	"errors"
	"testing"

	staerrors "github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/matryer/is"
	"github.com/paulmach/orb"
)

func TestThatCsvRowsBecomeRecords(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("name,lat,lon\nStuttgart,48.78,9.18\nKarlsruhe,49.01,8.4"), CSVSettings{
		HasHeader: true,
		AxisOne:   "lat",
		AxisTwo:   "lon",
	})

	is.NoErr(err)
	is.Equal(len(records), 2)
	is.Equal(records[0].Properties()["name"], "Stuttgart")
	is.Equal(records[0].Properties()["lat"], "48.78")

	// axis one and two are read in that order and come out as lon/lat
	point := records[0].Geometry().Geometry().(orb.Point)
	is.Equal(point, orb.Point{9.18, 48.78})
}

func TestThatTabDelimitedFilesLoad(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("name\tvalue\nA\t1"), CSVSettings{
		TabDelimited: true,
		HasHeader:    true,
	})

	is.NoErr(err)
	is.Equal(len(records), 1)
	is.Equal(records[0].Properties()["value"], "1")
}

func TestThatCommentLinesAreSkipped(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("name\n# just a note\nA\nB"), CSVSettings{
		HasHeader:     true,
		CommentMarker: "#",
	})

	is.NoErr(err)
	is.Equal(len(records), 2)
	is.Equal(records[0].Properties()["name"], "A")
}

func TestThatRowSkipDropsLeadingRows(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("name\nA\nB\nC\nD"), CSVSettings{
		HasHeader: true,
		RowSkip:   3,
	})

	is.NoErr(err)
	is.Equal(len(records), 2)
	is.Equal(records[0].Properties()["name"], "C")
}

func TestThatHeaderlessColumnsAreIndexedByPosition(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("A,1\nB,2"), CSVSettings{})

	is.NoErr(err)
	is.Equal(len(records), 2)
	is.Equal(records[0].Properties()["0"], "A")
	is.Equal(records[1].Properties()["1"], "2")
}

func TestThatTheReferenceSystemCanComeFromAColumn(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("name,e,n,srs\nP1,513223,5402911,EPSG:25832"), CSVSettings{
		HasHeader: true,
		AxisOne:   "e",
		AxisTwo:   "n",
		CRS:       "srs",
	})

	is.NoErr(err)

	point := records[0].Geometry().Geometry().(orb.Point)
	is.True(point[0] > 8.9 && point[0] < 9.5)
	is.True(point[1] > 48.5 && point[1] < 49.0)
}

func TestThatAnUnknownReferenceSystemFailsTheLoad(t *testing.T) {
	is := is.New(t)

	_, err := LoadCSV([]byte("e,n\n513223,5402911"), CSVSettings{
		HasHeader: true,
		AxisOne:   "e",
		AxisTwo:   "n",
		CRS:       "EPSG:999999",
	})

	is.True(errors.Is(err, staerrors.ErrProjectionFailure))
}

func TestThatAMissingAxisColumnYieldsNoGeometry(t *testing.T) {
	is := is.New(t)

	records, err := LoadCSV([]byte("name,lon\nA,9.18"), CSVSettings{
		HasHeader: true,
		AxisOne:   "lat",
		AxisTwo:   "lon",
	})

	is.NoErr(err)
	is.Equal(len(records), 1)
	is.True(records[0].Geometry() == nil)
}

func TestThatAMalformedCoordinateFailsTheLoad(t *testing.T) {
	is := is.New(t)

	_, err := LoadCSV([]byte("lat,lon\nnot-a-number,9.18"), CSVSettings{
		HasHeader: true,
		AxisOne:   "lat",
		AxisTwo:   "lon",
	})

	is.True(errors.Is(err, staerrors.ErrMalformedPayload))
}

func TestThatParseRecordsHonoursTheCsvSwitch(t *testing.T) {
	is := is.New(t)

	cfg := loadMapping(t, "csv:\n  enabled: true\n  hasHeader: true")

	records, err := ParseRecords([]byte("name\nA"), cfg)
	is.NoErr(err)
	is.Equal(records[0].Properties()["name"], "A")

	cfg.CSV.Enabled = false
	records, err = ParseRecords([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"B"}}]}`), cfg)
	is.NoErr(err)
	is.Equal(records[0].Properties()["name"], "B")
}
