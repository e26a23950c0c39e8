// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"path/filepath"
	"time"

	"github.com/ManuGH/rcsshare/internal/capability"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
	"github.com/ManuGH/rcsshare/internal/telemetry"
)

const (
	DefaultDataDir    = "/var/lib/rcsshare"
	DefaultListenAddr = "127.0.0.1:9464"
)

// Defaults returns the configuration used before any file or environment
// override is applied.
func Defaults() AppConfig {
	caps := capability.DefaultConfig()
	return AppConfig{
		DataDir: DefaultDataDir,
		Log:     LogConfig{Level: "info", Service: "rcsshare"},
		Store:   StoreConfig{Backend: store.BackendSqlite},
		Signaling: SignalingConfig{
			ByeTimeout:     5 * time.Second,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			InviteTimeout:  60 * time.Second,
			IncomingPolicy: "ring",
		},
		Media: MediaConfig{ChunkSize: 2048, Port: 2855},
		Capability: CapabilityConfig{
			Backend:       "memory",
			TTL:           caps.TTL,
			RatePerSecond: caps.RatePerSecond,
			Burst:         caps.Burst,
			QueueSize:     caps.QueueSize,
			QueryTimeout:  caps.QueryTimeout,

			BreakerThreshold: caps.BreakerThreshold,
			BreakerReset:     caps.BreakerReset,
		},
		Retention: RetentionConfig{
			TerminalTTL: 30 * 24 * time.Hour,
			Interval:    time.Hour,
			OrphanGrace: time.Minute,
		},
		Telemetry: telemetry.Config{
			ServiceName:  "rcsshare",
			Environment:  "production",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			Insecure:     true,
			SamplingRate: 0.1,
		},
		HTTP: HTTPConfig{
			ListenAddr: DefaultListenAddr,
			RateLimit:  120,
			RateWindow: time.Minute,
		},
	}
}

// resolvePaths fills paths derived from DataDir.
func resolvePaths(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Backend {
		case store.BackendSqlite:
			cfg.Store.Path = filepath.Join(cfg.DataDir, "sessions.db")
		case store.BackendBadger:
			cfg.Store.Path = filepath.Join(cfg.DataDir, "sessions.badger")
		}
	}
	if cfg.Recovery.ReportPath == "" {
		cfg.Recovery.ReportPath = filepath.Join(cfg.DataDir, "recovery-report.json")
	}
}

// Target is the argument store.OpenStateStore expects for the backend.
func (c StoreConfig) Target() string {
	if c.Backend == store.BackendPostgres {
		return c.DSN
	}
	return c.Path
}
