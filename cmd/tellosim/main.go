// Command tellosim runs the quadcopter simulator behind the Tello SDK's UDP
// ports and an HTTP relay, recording each session as a flight.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dronelab/tellosim/internal/api"
	"github.com/dronelab/tellosim/internal/bus"
	"github.com/dronelab/tellosim/internal/clock"
	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/config"
	"github.com/dronelab/tellosim/internal/drone"
	"github.com/dronelab/tellosim/internal/geo"
	"github.com/dronelab/tellosim/internal/httpserver"
	"github.com/dronelab/tellosim/internal/influx"
	"github.com/dronelab/tellosim/internal/logging"
	"github.com/dronelab/tellosim/internal/loop"
	"github.com/dronelab/tellosim/internal/monitor"
	intOtel "github.com/dronelab/tellosim/internal/otel"
	"github.com/dronelab/tellosim/internal/presenter"
	"github.com/dronelab/tellosim/internal/recorder"
	"github.com/dronelab/tellosim/internal/storage"
	"github.com/dronelab/tellosim/internal/telemetry"
	"github.com/dronelab/tellosim/internal/udpserver"
	"github.com/dronelab/tellosim/pkg/core"
	"github.com/dronelab/tellosim/pkg/streaming"
)

// BuildDate and CurrentVersion can be set at build time via ldflags
var (
	CurrentVersion = "0.0.1"
	BuildDate      = "unknown"
)

const (
	appName      = "tellosim"
	loopCapacity = 1024
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tellosim: %v\n", err)
		os.Exit(1)
	}
}

func configDir() string {
	if dir := os.Getenv("TELLOSIM_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

func run(ctx context.Context) error {
	sessionStart := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir()); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir())
	}

	lc := config.GetLoggingConfig()
	if err := os.MkdirAll(lc.LogsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile := logging.RotatingFile(lc.LogsDir, appName, sessionStart, lc.MaxSizeMB, lc.MaxBackups)
	defer logFile.Close()

	otelProvider, err := setupOTel(logFile, logger)
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
	}

	// filled in once the simulator and recorder exist
	var (
		sim *drone.Simulator
		rec *recorder.Recorder
	)
	logOpts := []logging.Option{
		logging.WithContext(func() (logging.DroneContext, bool) {
			if sim == nil {
				return logging.DroneContext{}, false
			}
			snap := sim.Latest()
			dc := logging.DroneContext{
				Powered:  snap.Powered,
				InFlight: snap.InFlight,
				Phase:    string(snap.Phase),
			}
			if rec != nil {
				dc.FlightID = rec.Stats().FlightID
			}
			return dc, true
		}),
	}
	if lc.GraylogEnabled {
		gelf, err := logging.Graylog(lc.GraylogAddress, appName)
		if err != nil {
			logger.Error("Failed to set up Graylog", "error", err)
		} else {
			defer gelf.Close()
			logOpts = append(logOpts, logging.WithJSONSink(gelf))
		}
	}

	slogManager.Setup(logFile, lc.Level, otelProvider.LoggerProvider(), logOpts...)
	logger = slogManager.Logger()
	slog.SetDefault(logger)
	logger.Info("Starting tellosim", "version", CurrentVersion, "buildDate", BuildDate, "logFile", logFile.Filename)

	zlLevel, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		zlLevel = zerolog.InfoLevel
	}
	zl := zerolog.New(logFile).Level(zlLevel).With().Timestamp().Logger()

	// simulation core
	simCfg := config.GetSimConfig()
	if err := simCfg.Validate(); err != nil {
		return fmt.Errorf("invalid sim config: %w", err)
	}

	l := loop.New(loopCapacity, loop.WithPanicHandler(func(r any) {
		logger.Error("Recovered panic on simulation loop", "panic", r)
	}))
	b, err := bus.New(logging.NewBusLogger(zl.With().Str("component", "bus").Logger()))
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", err)
	}
	sim, err = drone.New(simCfg.Drone, l, drone.WithLogger(logger.With("component", "drone")))
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}
	sim.Attach(b)
	clk := clock.New(b, l, simCfg.FrameRate)
	commands := command.NewChannel(b, l)

	home := config.GetHomeConfig()
	projector, err := geo.NewProjector(home.Latitude, home.Longitude)
	if err != nil {
		return fmt.Errorf("invalid home coordinate: %w", err)
	}
	gen := telemetry.NewGenerator(nil)

	// flight log
	sc := config.GetStorageConfig()
	flog, err := newFlightLog(sc, zl, logger)
	if err != nil {
		return err
	}
	if err := flog.backend.Init(); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	recOpts := []recorder.Option{recorder.WithLogger(logger.With("component", "recorder"))}
	var influxManager *influx.Manager
	if ic := config.GetInfluxConfig(); ic.Enabled {
		influxManager = influx.NewManager(zl.With().Str("component", "influx").Logger(), ic)
		if err := influxManager.Connect(ctx); err != nil {
			logger.Warn("InfluxDB unavailable, writing to backup file", "error", err, "backup", ic.BackupPath)
		}
		recOpts = append(recOpts, recorder.WithPointWriter(influxManager))
	}

	rec = recorder.New(recorder.Config{
		SampleInterval: sc.SampleInterval,
		Version:        CurrentVersion,
	}, flog.backend, projector, gen, recOpts...)
	rec.Attach(b)
	flight, err := rec.Start(fmt.Sprintf("%s_%s", appName, sessionStart.Format("20060102_150405")))
	if err != nil {
		return err
	}

	// front ends
	srvCfg := config.GetServerConfig()
	hub := presenter.New(presenter.Config{
		MinInterval: srvCfg.StateInterval,
		Hello: streaming.HelloPayload{
			Version:   CurrentVersion,
			FrameRate: simCfg.FrameRate,
			HomeLat:   home.Latitude,
			HomeLon:   home.Longitude,
		},
	}, commands, gen, logger.With("component", "presenter"))
	hub.Attach(b)

	var mon *monitor.Service
	if mc := config.GetMonitorConfig(); mc.Enabled {
		deps := monitor.Dependencies{
			Logger:      logger.With("component", "monitor"),
			Interval:    mc.Interval,
			StatusFile:  mc.StatusFile,
			Snapshot:    sim.Latest,
			Telemetry:   func(s drone.Snapshot) map[string]string { return gen.Generate(s).Map() },
			Flight:      rec.Stats,
			WriteQueues: flog.queues,
			LoopPending: l.Pending,
			Viewers:     hub.Clients,
		}
		if influxManager != nil {
			deps.Points = influxManager
		}
		mon = monitor.NewService(deps)
		_ = mon.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })
	g.Go(func() error { return clk.Run(gctx) })

	if srvCfg.UDPEnabled {
		udp := udpserver.New(srvCfg, commands, func() string {
			return gen.Generate(sim.Latest()).String()
		}, logger.With("component", "udp"))
		g.Go(func() error { return udp.Serve(gctx) })
	}
	if srvCfg.HTTPEnabled {
		relay := httpserver.New(srvCfg, commands, httpserver.Sources{
			Stats: func() map[string]string { return gen.Generate(sim.Latest()).Map() },
			Flight: func() any {
				return struct {
					recorder.Stats
					Track string `json:"track"`
				}{rec.Stats(), rec.TrackWKT()}
			},
			Phase:   func() string { return string(sim.Latest().Phase) },
			Viewers: hub.Clients,
			Live:    hub,
		}, CurrentVersion, logger.With("component", "http"))
		g.Go(func() error { return relay.ListenAndServe(gctx) })
	}

	logger.Info("Simulator running", "flightId", flight.ID, "frameRate", simCfg.FrameRate)
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, loop.ErrStopped) {
		runErr = nil
	}

	logger.Info("Shutting down")
	if mon != nil {
		mon.Stop()
	}
	hub.Close()
	shutdown(rec, flight.Name, flog, influxManager, otelProvider, logger)

	return runErr
}

func setupOTel(logFile io.Writer, logger *slog.Logger) (*intOtel.Provider, error) {
	oc := config.GetOTelConfig()
	if !oc.Enabled {
		return nil, nil
	}
	p, err := intOtel.New(intOtel.Config{
		Enabled:        oc.Enabled,
		ServiceName:    oc.ServiceName,
		ServiceVersion: CurrentVersion,
		BatchTimeout:   oc.BatchTimeout,
		LogWriter:      logFile,
		Endpoint:       oc.Endpoint,
		Insecure:       oc.Insecure,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("OTel provider initialized", "endpoint", oc.Endpoint)
	return p, nil
}

// shutdown closes the flight and everything downstream of it, in order.
func shutdown(rec *recorder.Recorder, name string, flog *flightLog, im *influx.Manager, op *intOtel.Provider, logger *slog.Logger) {
	summary, err := rec.Stop()
	if err != nil {
		logger.Error("Failed to close flight", "error", err)
	}
	if err := flog.Close(); err != nil {
		logger.Error("Failed to close storage", "error", err)
	}
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	if err := op.Flush(flushCtx); err != nil {
		logger.Error("Failed to flush OTel logs", "error", err)
	}
	cancelFlush()

	if exp, ok := flog.backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		logger.Info("Flight exported", "path", exp.ExportedFilePath())
		uploadExport(exp.ExportedFilePath(), name, summary, logger)
	}

	if im != nil {
		if err := im.Close(); err != nil {
			logger.Error("Failed to close InfluxDB", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := op.Shutdown(ctx); err != nil {
		logger.Error("Failed to shut down OTel", "error", err)
	}
}

func uploadExport(path, name string, summary core.FlightSummary, logger *slog.Logger) {
	uc := config.GetUploadConfig()
	if !uc.Enabled {
		return
	}

	client := api.New(uc.URL, uc.APIKey)
	if err := client.Healthcheck(); err != nil {
		logger.Warn("Flight archive is offline, keeping local export", "error", err)
		return
	}
	err := client.Upload(path, core.UploadMetadata{
		FlightName:      name,
		DurationSeconds: summary.FlightSeconds,
		DistanceMetres:  summary.DistanceMetres,
		Tag:             uc.Tag,
	})
	if err != nil {
		logger.Error("Failed to upload flight", "path", path, "error", err)
		return
	}
	logger.Info("Uploaded flight", "path", path, "archive", uc.URL)
}
