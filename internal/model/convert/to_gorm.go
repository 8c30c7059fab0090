// Package convert turns core flight records into GORM models.
package convert

import (
	"encoding/json"

	"github.com/dronelab/tellosim/internal/model"
	"github.com/dronelab/tellosim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// wgs84Point builds a lon/lat point with elevation in metres.
func wgs84Point(lat, lon, elevation float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: lon, Y: lat},
		Z:    elevation / 100,
		Type: geom.DimXYZ,
	})
}

// trackToLineString converts a ground track to a LineString in simulation
// units. Fewer than two points give an empty LineString.
func trackToLineString(track []core.Position3D) geom.LineString {
	if len(track) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, len(track)*2)
	for _, p := range track {
		coords = append(coords, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// telemetryToJSON encodes telemetry fields, "{}" when there are none.
func telemetryToJSON(fields map[string]string) datatypes.JSON {
	if len(fields) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToFlight converts a core.Flight to a GORM model.Flight.
func CoreToFlight(f core.Flight) model.Flight {
	m := model.Flight{
		Name:          f.Name,
		StartTime:     f.StartTime,
		HomeLatitude:  f.HomeLatitude,
		HomeLongitude: f.HomeLongitude,
		Version:       f.Version,
	}
	m.ID = f.ID
	if !f.EndTime.IsZero() {
		end := f.EndTime
		m.EndTime = &end
	}
	return m
}

// SummaryColumns returns the column updates that close a flight.
func SummaryColumns(s core.FlightSummary) map[string]any {
	return map[string]any{
		"end_time":        s.EndTime,
		"commands":        s.Commands,
		"samples":         s.Samples,
		"flight_seconds":  s.FlightSeconds,
		"distance_metres": s.DistanceMetres,
		"track":           trackToLineString(s.Track),
	}
}

// CoreToCommandLog converts a core.CommandRecord to a GORM model.CommandLog.
func CoreToCommandLog(c core.CommandRecord) model.CommandLog {
	return model.CommandLog{
		Time:      c.Time,
		FlightID:  c.FlightID,
		Verb:      c.Verb,
		Command:   c.Command,
		Result:    c.Result,
		LatencyMs: float64(c.Latency.Microseconds()) / 1000,
	}
}

// CoreToStateSample converts a core.StateSample to a GORM model.StateSample.
func CoreToStateSample(s core.StateSample) model.StateSample {
	return model.StateSample{
		Time:       s.Time,
		FlightID:   s.FlightID,
		Position:   wgs84Point(s.Latitude, s.Longitude, s.Position.Z),
		X:          s.Position.X,
		Y:          s.Position.Y,
		Elevation:  s.Position.Z,
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
		Heading:    s.Heading,
		Speed:      s.Speed,
		Phase:      s.Phase,
		InFlight:   s.InFlight,
		FlightTime: s.FlightTime,
		Telemetry:  telemetryToJSON(s.Telemetry),
	}
}
