// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath loads
// from defaults and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load runs defaults, strict file parse, environment overrides and
// validation, in that order.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	resolvePaths(&cfg)
	cfg.Version = l.version
	cfg.Telemetry.ServiceVersion = l.version
	cfg.Telemetry.IMSDomain = cfg.Signaling.Domain

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// UnknownEnvKeys lists RCS_* variables in the environment that Load did not
// consume, which are usually typos.
func (l *Loader) UnknownEnvKeys() []string {
	var out []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// loadFile decodes path onto cfg. Unknown fields and multiple documents are
// rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("RCS_DATA_DIR", cfg.DataDir)
	cfg.Log.Level = l.envString("RCS_LOG_LEVEL", cfg.Log.Level)

	cfg.Store.Backend = l.envString("RCS_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("RCS_STORE_PATH", cfg.Store.Path)
	cfg.Store.DSN = l.envString("RCS_STORE_DSN", cfg.Store.DSN)

	cfg.Signaling.URL = l.envString("RCS_SIGNALING_URL", cfg.Signaling.URL)
	cfg.Signaling.LocalURI = l.envString("RCS_LOCAL_URI", cfg.Signaling.LocalURI)
	cfg.Signaling.Domain = l.envString("RCS_DOMAIN", cfg.Signaling.Domain)
	cfg.Signaling.ByeTimeout = l.envDuration("RCS_BYE_TIMEOUT", cfg.Signaling.ByeTimeout)
	cfg.Signaling.InviteTimeout = l.envDuration("RCS_INVITE_TIMEOUT", cfg.Signaling.InviteTimeout)
	cfg.Signaling.IncomingPolicy = l.envString("RCS_INCOMING_POLICY", cfg.Signaling.IncomingPolicy)

	cfg.Media.ChunkSize = l.envInt("RCS_MEDIA_CHUNK_SIZE", cfg.Media.ChunkSize)
	cfg.Media.Port = l.envInt("RCS_MEDIA_PORT", cfg.Media.Port)

	cfg.Capability.Backend = l.envString("RCS_CAPABILITY_BACKEND", cfg.Capability.Backend)
	cfg.Capability.Redis.Addr = l.envString("RCS_REDIS_ADDR", cfg.Capability.Redis.Addr)
	cfg.Capability.Redis.Password = l.envString("RCS_REDIS_PASSWORD", cfg.Capability.Redis.Password)
	cfg.Capability.Redis.DB = l.envInt("RCS_REDIS_DB", cfg.Capability.Redis.DB)
	cfg.Capability.TTL = l.envDuration("RCS_CAPABILITY_TTL", cfg.Capability.TTL)
	cfg.Capability.RatePerSecond = l.envFloat("RCS_CAPABILITY_RATE", cfg.Capability.RatePerSecond)

	cfg.Recovery.ReportPath = l.envString("RCS_RECOVERY_REPORT", cfg.Recovery.ReportPath)

	cfg.Retention.TerminalTTL = l.envDuration("RCS_RETENTION_TTL", cfg.Retention.TerminalTTL)
	cfg.Retention.Interval = l.envDuration("RCS_RETENTION_INTERVAL", cfg.Retention.Interval)

	cfg.Telemetry.Enabled = l.envBool("RCS_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("RCS_OTEL_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("RCS_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Insecure = l.envBool("RCS_OTEL_INSECURE", cfg.Telemetry.Insecure)
	cfg.Telemetry.SamplingRate = l.envFloat("RCS_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.HTTP.ListenAddr = l.envString("RCS_LISTEN_ADDR", cfg.HTTP.ListenAddr)
	cfg.HTTP.RateLimit = l.envInt("RCS_RATE_LIMIT", cfg.HTTP.RateLimit)
	cfg.HTTP.EventStream = l.envBool("RCS_EVENT_STREAM", cfg.HTTP.EventStream)
}
