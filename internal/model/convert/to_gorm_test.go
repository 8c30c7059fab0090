package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dronelab/tellosim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWGS84Point(t *testing.T) {
	pt := wgs84Point(47.5, 8.5, 500)

	coord, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 8.5, coord.XY.X)
	assert.Equal(t, 47.5, coord.XY.Y)
	assert.Equal(t, 5.0, coord.Z)
	assert.Equal(t, geom.DimXYZ, coord.Type)
}

func TestTrackToLineString(t *testing.T) {
	ls := trackToLineString([]core.Position3D{
		{X: 0, Y: 0},
		{X: 0, Y: -100},
		{X: 300, Y: -500, Z: 900},
	})

	seq := ls.Coordinates()
	require.Equal(t, 3, seq.Length())
	assert.Equal(t, 0.0, seq.GetXY(0).X)
	assert.Equal(t, -100.0, seq.GetXY(1).Y)
	assert.Equal(t, 300.0, seq.GetXY(2).X)
	assert.Equal(t, 600.0, ls.Length())
}

func TestTrackToLineString_TooShort(t *testing.T) {
	assert.True(t, trackToLineString(nil).IsEmpty())
	assert.True(t, trackToLineString([]core.Position3D{{X: 1}}).IsEmpty())
}

func TestTelemetryToJSON(t *testing.T) {
	assert.Equal(t, "{}", string(telemetryToJSON(nil)))

	raw := telemetryToJSON(map[string]string{"bat": "99", "h": "50"})
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "99", decoded["bat"])
	assert.Equal(t, "50", decoded["h"])
}

func TestCoreToFlight(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := CoreToFlight(core.Flight{
		ID:            7,
		Name:          "morning",
		StartTime:     start,
		HomeLatitude:  47.3977,
		HomeLongitude: 8.5456,
		Version:       "dev",
	})

	assert.Equal(t, uint(7), m.ID)
	assert.Equal(t, "morning", m.Name)
	assert.Equal(t, start, m.StartTime)
	assert.Nil(t, m.EndTime)
	assert.Equal(t, 47.3977, m.HomeLatitude)

	m = CoreToFlight(core.Flight{EndTime: start.Add(time.Minute)})
	require.NotNil(t, m.EndTime)
	assert.Equal(t, start.Add(time.Minute), *m.EndTime)
}

func TestSummaryColumns(t *testing.T) {
	end := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	cols := SummaryColumns(core.FlightSummary{
		EndTime:        end,
		Commands:       12,
		Samples:        300,
		FlightSeconds:  42.5,
		DistanceMetres: 6,
		Track:          []core.Position3D{{X: 0, Y: 0}, {X: 600, Y: 0}},
	})

	assert.Equal(t, end, cols["end_time"])
	assert.Equal(t, 12, cols["commands"])
	assert.Equal(t, 300, cols["samples"])
	assert.Equal(t, 42.5, cols["flight_seconds"])
	ls, ok := cols["track"].(geom.LineString)
	require.True(t, ok)
	assert.Equal(t, 2, ls.Coordinates().Length())
}

func TestCoreToCommandLog(t *testing.T) {
	now := time.Now()
	m := CoreToCommandLog(core.CommandRecord{
		FlightID: 3,
		Time:     now,
		Verb:     "forward",
		Command:  "forward 100",
		Result:   "ok",
		Latency:  750 * time.Millisecond,
	})

	assert.Equal(t, uint(3), m.FlightID)
	assert.Equal(t, now, m.Time)
	assert.Equal(t, "forward", m.Verb)
	assert.Equal(t, "forward 100", m.Command)
	assert.Equal(t, "ok", m.Result)
	assert.Equal(t, 750.0, m.LatencyMs)
}

func TestCoreToStateSample(t *testing.T) {
	now := time.Now()
	m := CoreToStateSample(core.StateSample{
		FlightID:   3,
		Time:       now,
		Position:   core.Position3D{X: 100, Y: -200, Z: 500},
		Latitude:   47.4,
		Longitude:  8.5,
		Heading:    90,
		Speed:      30,
		Phase:      "flying",
		InFlight:   true,
		FlightTime: 12.5,
		Telemetry:  map[string]string{"bat": "98"},
	})

	assert.Equal(t, uint(3), m.FlightID)
	assert.Equal(t, 100.0, m.X)
	assert.Equal(t, -200.0, m.Y)
	assert.Equal(t, 500.0, m.Elevation)
	assert.Equal(t, 90.0, m.Heading)
	assert.Equal(t, 30, m.Speed)
	assert.Equal(t, "flying", m.Phase)
	assert.True(t, m.InFlight)
	assert.JSONEq(t, `{"bat":"98"}`, string(m.Telemetry))

	coord, ok := m.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 8.5, coord.XY.X)
	assert.Equal(t, 47.4, coord.XY.Y)
	assert.Equal(t, 5.0, coord.Z)
}
