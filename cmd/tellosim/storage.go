package main

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/dronelab/tellosim/internal/config"
	"github.com/dronelab/tellosim/internal/database"
	"github.com/dronelab/tellosim/internal/storage"
	gormstorage "github.com/dronelab/tellosim/internal/storage/gorm"
	"github.com/dronelab/tellosim/internal/storage/memory"
	"github.com/dronelab/tellosim/internal/storage/websocket"
)

// flightLog bundles the chosen backend with what must be closed after it.
type flightLog struct {
	backend storage.Backend
	db      *database.Manager
	queues  func() map[string]int
}

func (f *flightLog) Close() error {
	err := f.backend.Close()
	if f.db != nil {
		if dbErr := f.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// newFlightLog builds the storage backend named by cfg.Type. A postgres
// backend that cannot connect falls back to SQLite.
func newFlightLog(cfg config.StorageConfig, zl zerolog.Logger, logger *slog.Logger) (*flightLog, error) {
	switch cfg.Type {
	case "memory":
		logger.Info("Memory storage mode initialized", "outputDir", cfg.Memory.OutputDir)
		return &flightLog{backend: memory.New(cfg.Memory)}, nil

	case "websocket":
		logger.Info("Streaming flight log to collector", "url", cfg.WebSocket.URL)
		return &flightLog{backend: websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, logger)}, nil

	case "postgres", "sqlite":
		db := database.NewManager(zl.With().Str("component", "database").Logger())
		if err := openDB(db, cfg, logger); err != nil {
			return nil, err
		}
		if err := db.Setup(); err != nil {
			db.Close()
			return nil, err
		}
		b := gormstorage.New(gormstorage.Dependencies{
			DB:            db.DB,
			Logger:        zl.With().Str("component", "storage").Logger(),
			FlushInterval: cfg.FlushInterval,
		})
		return &flightLog{
			backend: b,
			db:      db,
			queues: func() map[string]int {
				commands, samples := b.QueueLengths()
				return map[string]int{"commands": commands, "samples": samples}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func openDB(db *database.Manager, cfg config.StorageConfig, logger *slog.Logger) error {
	if cfg.Type == "postgres" {
		err := db.OpenPostgres(config.GetPostgresDSN())
		if err == nil {
			return nil
		}
		logger.Error("Failed to connect to Postgres DB, trying SQLite", "error", err)
	}
	if err := db.OpenSqlite(cfg.SQLite.Path); err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	return nil
}
