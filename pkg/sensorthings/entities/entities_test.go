package entities

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestThatNumericIdentitiesSurviveARoundtrip(t *testing.T) {
	is := is.New(t)

	var thing Thing
	is.NoErr(json.Unmarshal([]byte(`{"@iot.id":42,"name":"DE1"}`), &thing))
	is.Equal(thing.ID.String(), "42")

	out, err := json.Marshal(&thing)
	is.NoErr(err)
	is.True(strings.Contains(string(out), `"@iot.id":42`))
}

func TestThatStringIdentitiesAreQuotedForURLs(t *testing.T) {
	is := is.New(t)

	is.Equal(NewID("abc-123").String(), "'abc-123'")
	is.Equal(NewID("O'Brien").String(), "'O''Brien'")
	is.Equal(NewID(7).String(), "7")
}

func TestThatZeroIdentitiesAreLeftOut(t *testing.T) {
	is := is.New(t)

	out, err := json.Marshal(&Thing{Name: "DE1"})
	is.NoErr(err)
	is.True(!strings.Contains(string(out), "@iot.id"))

	var id ID
	is.True(id.IsZero())
	is.Equal(id.String(), "")
}

func TestThatInstantsNormalizeToUTC(t *testing.T) {
	is := is.New(t)

	to, err := ParseTimeObject("2021-03-04T11:00:00+01:00")
	is.NoErr(err)
	is.True(!to.IsInterval())
	is.Equal(to.String(), "2021-03-04T10:00:00Z")
}

func TestThatIntervalsParseAndHaveAMidpoint(t *testing.T) {
	is := is.New(t)

	to, err := ParseTimeObject("2021-03-04T10:00:00Z/2021-03-04T12:00:00Z")
	is.NoErr(err)
	is.True(to.IsInterval())
	is.Equal(to.Midpoint(), time.Date(2021, 3, 4, 11, 0, 0, 0, time.UTC))
	is.Equal(to.String(), "2021-03-04T10:00:00Z/2021-03-04T12:00:00Z")
}

func TestThatMalformedTimesFail(t *testing.T) {
	is := is.New(t)

	_, err := ParseTimeObject("the fourth of march")
	is.True(err != nil)

	_, err = ParseTimeObject("2021-03-04T10:00:00Z/later")
	is.True(err != nil)
}

func TestThatTimeObjectsMarshalAsStrings(t *testing.T) {
	is := is.New(t)

	observation := Observation{
		PhenomenonTime: TimeObject{Start: time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)},
		Result:         json.Number("1.5"),
	}

	out, err := json.Marshal(&observation)
	is.NoErr(err)
	is.True(strings.Contains(string(out), `"phenomenonTime":"2021-03-04T10:00:00Z"`))
	is.True(!strings.Contains(string(out), "resultTime"))
}

func TestThatGeometriesCompareBySerializedForm(t *testing.T) {
	is := is.New(t)

	a := geojson.NewGeometry(orb.Point{9.18, 48.78})
	b := geojson.NewGeometry(orb.Point{9.18, 48.78})
	c := geojson.NewGeometry(orb.Point{9.181, 48.78})

	is.True(GeometriesEqual(a, b))
	is.True(!GeometriesEqual(a, c))
	is.True(GeometriesEqual(nil, nil))
	is.True(!GeometriesEqual(a, nil))
}

func TestThatRefsCarryOnlyTheIdentity(t *testing.T) {
	is := is.New(t)

	location := &Location{ID: NewID(10), Name: "DE1", Description: "Region Stuttgart"}
	ref := location.Ref()

	is.True(ref.ID.Equal(location.ID))
	is.Equal(ref.Name, "")
	is.Equal(ref.Description, "")
}

func TestThatFieldLookupsMirrorTheWireNames(t *testing.T) {
	is := is.New(t)

	datastream := &Datastream{
		Name:              "DE1 level",
		UnitOfMeasurement: &UnitOfMeasurement{Symbol: "m"},
	}

	name, ok := datastream.Field("name")
	is.True(ok)
	is.Equal(name, "DE1 level")

	unit, ok := datastream.Field("unitOfMeasurement")
	is.True(ok)
	is.Equal(unit.(*UnitOfMeasurement).Symbol, "m")

	_, ok = datastream.Field("Thing")
	is.True(!ok)

	_, ok = datastream.Field("no-such-field")
	is.True(!ok)
}
