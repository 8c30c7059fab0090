// Package influx ships flight telemetry to InfluxDB, falling back to a
// gzipped line protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dronelab/tellosim/internal/config"
	"github.com/dronelab/tellosim/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

const (
	MeasurementState   = "drone_state"
	MeasurementCommand = "drone_command"

	retention = 60 * 60 * 24 * 30 // 30 days
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger

	cfg        config.InfluxConfig
	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		Logger: log,
		cfg:    cfg,
	}
}

// Connect pings the server. When it is not reachable, points go to the
// backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.Logger.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB not reachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("url", m.cfg.URL).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backup != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retention,
		})
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return nil
	}
	err := m.backup.Close()
	if cerr := m.backupFile.Close(); err == nil {
		err = cerr
	}
	m.backup = nil
	return err
}

// SamplePoint builds the drone_state point for a state sample. Numeric
// telemetry values become fields, the rest are skipped.
func SamplePoint(s core.StateSample) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(MeasurementState).
		AddTag("flight", strconv.FormatUint(uint64(s.FlightID), 10)).
		AddTag("phase", s.Phase).
		AddField("x", s.Position.X).
		AddField("y", s.Position.Y).
		AddField("elevation", s.Position.Z).
		AddField("lat", s.Latitude).
		AddField("lon", s.Longitude).
		AddField("heading", s.Heading).
		AddField("speed", s.Speed).
		AddField("in_flight", s.InFlight).
		AddField("flight_time", s.FlightTime).
		SetTime(s.Time).
		SortTags()

	for key, value := range TelemetryFields(s.Telemetry) {
		point.AddField("tlm_"+key, value)
	}
	return point
}

// CommandPoint builds the drone_command point for a command record.
func CommandPoint(c core.CommandRecord) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementCommand).
		AddTag("flight", strconv.FormatUint(uint64(c.FlightID), 10)).
		AddTag("verb", c.Verb).
		AddTag("result", c.Result).
		AddField("command", c.Command).
		AddField("latency_ms", float64(c.Latency.Microseconds())/1000).
		SetTime(c.Time).
		SortTags()
}

// TelemetryFields converts telemetry strings to ints or floats, dropping
// values that are neither.
func TelemetryFields(fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for key, raw := range fields {
		if i, err := strconv.Atoi(raw); err == nil {
			out[key] = i
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			out[key] = f
		}
	}
	return out
}
