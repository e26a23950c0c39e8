// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration: defaults, then a strict YAML
// file, then RCS_* environment overrides, then validation.
package config

import (
	"time"

	"github.com/ManuGH/rcsshare/internal/capability"
	"github.com/ManuGH/rcsshare/internal/telemetry"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`
	DataDir string `yaml:"dataDir" validate:"required"`

	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Signaling  SignalingConfig  `yaml:"signaling"`
	Media      MediaConfig      `yaml:"media"`
	Capability CapabilityConfig `yaml:"capability"`
	Recovery   RecoveryConfig   `yaml:"recovery"`
	Retention  RetentionConfig  `yaml:"retention"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type LogConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Service string `yaml:"service"`
}

// StoreConfig selects the session state backend. Path is used by the file
// backends, DSN by postgres.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory sqlite badger postgres"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
}

type SignalingConfig struct {
	URL          string        `yaml:"url" validate:"required,url"`
	LocalURI     string        `yaml:"localUri" validate:"required"`
	Domain       string        `yaml:"domain" validate:"required,hostname_rfc1123"`
	ByeTimeout   time.Duration `yaml:"byeTimeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"gte=0"`
	PingInterval time.Duration `yaml:"pingInterval" validate:"gte=0"`
	// InviteTimeout ends invitations left without a final answer.
	InviteTimeout time.Duration `yaml:"inviteTimeout" validate:"gte=0"`
	// IncomingPolicy answers received invitations: ring, accept or decline.
	IncomingPolicy string `yaml:"incomingPolicy" validate:"omitempty,oneof=ring accept decline"`
}

type MediaConfig struct {
	// ChunkSize is the MSRP chunk payload size in bytes.
	ChunkSize int `yaml:"chunkSize" validate:"gte=0"`
	// Port is the MSRP port advertised in offers and answers.
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

type CapabilityConfig struct {
	// Backend holds the recently-requested set: "memory" or "redis".
	Backend       string                 `yaml:"backend" validate:"oneof=memory redis"`
	Redis         capability.RedisConfig `yaml:"redis"`
	TTL           time.Duration          `yaml:"ttl" validate:"gte=0"`
	RatePerSecond float64                `yaml:"ratePerSecond" validate:"gte=0"`
	Burst         int                    `yaml:"burst" validate:"gte=0"`
	QueueSize     int                    `yaml:"queueSize" validate:"gte=0"`
	QueryTimeout  time.Duration          `yaml:"queryTimeout" validate:"gte=0"`
	// BreakerThreshold failed queries in a row pause refreshes for BreakerReset.
	BreakerThreshold int           `yaml:"breakerThreshold" validate:"gte=0"`
	BreakerReset     time.Duration `yaml:"breakerReset" validate:"gte=0"`
}

// RequesterConfig converts the section for capability.NewRequester.
func (c CapabilityConfig) RequesterConfig() capability.Config {
	return capability.Config{
		TTL:           c.TTL,
		RatePerSecond: c.RatePerSecond,
		Burst:         c.Burst,
		QueueSize:     c.QueueSize,
		QueryTimeout:  c.QueryTimeout,

		BreakerThreshold: c.BreakerThreshold,
		BreakerReset:     c.BreakerReset,
	}
}

type RecoveryConfig struct {
	ReportPath string `yaml:"reportPath"`
}

type RetentionConfig struct {
	TerminalTTL time.Duration `yaml:"terminalTtl" validate:"gte=0"`
	Interval    time.Duration `yaml:"interval" validate:"gte=0"`
	OrphanGrace time.Duration `yaml:"orphanGrace" validate:"gte=0"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listenAddr" validate:"required,hostname_port"`
	// RateLimit is the number of requests per RateWindow and client IP. Zero disables it.
	RateLimit   int           `yaml:"rateLimit" validate:"gte=0"`
	RateWindow  time.Duration `yaml:"rateWindow" validate:"gte=0"`
	EventStream bool          `yaml:"eventStream"`
}
