package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dronelab/tellosim/pkg/core"
)

// FlightExport is the root JSON structure of an exported flight.
type FlightExport struct {
	Name           string        `json:"name"`
	Version        string        `json:"version"`
	Home           [2]float64    `json:"home"` // lat, lon
	StartTime      time.Time     `json:"startTime"`
	EndTime        time.Time     `json:"endTime"`
	FlightSeconds  float64       `json:"flightSeconds"`
	DistanceMetres float64       `json:"distanceMetres"`
	Track          [][2]float64  `json:"track"`
	Commands       []CommandJSON `json:"commands"`
	Samples        []SampleJSON  `json:"samples"`
}

// CommandJSON is one exported command.
type CommandJSON struct {
	Offset    float64 `json:"t"` // seconds since start
	Command   string  `json:"command"`
	Result    string  `json:"result"`
	LatencyMs int64   `json:"latencyMs"`
}

// SampleJSON is one exported state sample. Position is [x, y, elevation].
type SampleJSON struct {
	Offset    float64           `json:"t"`
	Position  [3]float64        `json:"position"`
	LatLon    [2]float64        `json:"latLon"`
	Heading   float64           `json:"heading"`
	Speed     int               `json:"speed"`
	Phase     string            `json:"phase"`
	Telemetry map[string]string `json:"telemetry,omitempty"`
}

func fileSafe(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "flight"
	}
	return strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(name)
}

// exportJSON writes the flight to a (possibly gzipped) JSON file.
func (b *Backend) exportJSON(summary core.FlightSummary) error {
	export := b.buildExport(summary)

	filename := fmt.Sprintf("%s_%s.json", fileSafe(b.flight.Name), b.flight.StartTime.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(summary core.FlightSummary) FlightExport {
	start := b.flight.StartTime
	export := FlightExport{
		Name:           b.flight.Name,
		Version:        b.flight.Version,
		Home:           [2]float64{b.flight.HomeLatitude, b.flight.HomeLongitude},
		StartTime:      start,
		EndTime:        summary.EndTime,
		FlightSeconds:  summary.FlightSeconds,
		DistanceMetres: summary.DistanceMetres,
		Track:          make([][2]float64, 0, len(summary.Track)),
		Commands:       make([]CommandJSON, 0, len(b.commands)),
		Samples:        make([]SampleJSON, 0, len(b.samples)),
	}

	for _, p := range summary.Track {
		export.Track = append(export.Track, [2]float64{p.X, p.Y})
	}

	for _, c := range b.commands {
		export.Commands = append(export.Commands, CommandJSON{
			Offset:    c.Time.Sub(start).Seconds(),
			Command:   c.Command,
			Result:    c.Result,
			LatencyMs: c.Latency.Milliseconds(),
		})
	}

	for _, s := range b.samples {
		export.Samples = append(export.Samples, SampleJSON{
			Offset:    s.Time.Sub(start).Seconds(),
			Position:  [3]float64{s.Position.X, s.Position.Y, s.Position.Z},
			LatLon:    [2]float64{s.Latitude, s.Longitude},
			Heading:   s.Heading,
			Speed:     s.Speed,
			Phase:     s.Phase,
			Telemetry: s.Telemetry,
		})
	}

	return export
}

func writeJSON(path string, data FlightExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data FlightExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
