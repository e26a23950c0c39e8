// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rcsshare/internal/domain/session/store"
)

const minimalYAML = `
dataDir: %s
signaling:
  url: wss://ims.example.net/ws
  localUri: sip:alice@ims.example.net
  domain: ims.example.net
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func minimalConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, sprintf(minimalYAML, t.TempDir()))
}

func TestLoadAppliesDefaultsAndDerivedPaths(t *testing.T) {
	path := minimalConfig(t)
	cfg, err := NewLoader(path, "1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "1.2.3", cfg.Telemetry.ServiceVersion)
	assert.Equal(t, cfg.Signaling.Domain, cfg.Telemetry.IMSDomain)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, store.BackendSqlite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(cfg.DataDir, "sessions.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(cfg.DataDir, "recovery-report.json"), cfg.Recovery.ReportPath)
	assert.Equal(t, 5*time.Second, cfg.Signaling.ByeTimeout)
	assert.Equal(t, time.Minute, cfg.Signaling.InviteTimeout)
	assert.Equal(t, "ring", cfg.Signaling.IncomingPolicy)
	assert.Equal(t, cfg.Store.Path, cfg.Store.Target())
}

func TestLoadInvitationSettings(t *testing.T) {
	path := writeConfig(t, sprintf(minimalYAML+`  inviteTimeout: 45s
  incomingPolicy: decline
`, t.TempDir()))
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Signaling.InviteTimeout)
	assert.Equal(t, "decline", cfg.Signaling.IncomingPolicy)

	t.Setenv("RCS_INVITE_TIMEOUT", "10s")
	t.Setenv("RCS_INCOMING_POLICY", "accept")
	cfg, err = NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Signaling.InviteTimeout)
	assert.Equal(t, "accept", cfg.Signaling.IncomingPolicy)

	t.Setenv("RCS_INCOMING_POLICY", "maybe")
	_, err = NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IncomingPolicy")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, sprintf(minimalYAML+`
store:
  backend: badger
retention:
  terminalTtl: 48h
`, t.TempDir()))
	t.Setenv("RCS_STORE_BACKEND", "postgres")
	t.Setenv("RCS_STORE_DSN", "postgres://rcs:secret@db/rcs")
	t.Setenv("RCS_RETENTION_TTL", "1h")
	t.Setenv("RCS_TELEMETRY_ENABLED", "yes")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, store.BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://rcs:secret@db/rcs", cfg.Store.Target())
	assert.Equal(t, time.Hour, cfg.Retention.TerminalTTL)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Contains(t, l.ConsumedEnvKeys, "RCS_STORE_DSN")
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("RCS_RETENTION_TTL", "forever")
	cfg, err := NewLoader(minimalConfig(t), "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Retention.TerminalTTL, cfg.Retention.TerminalTTL)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, sprintf(minimalYAML+"bogus: true\n", t.TempDir()))
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, sprintf(minimalYAML+"---\ndataDir: /tmp\n", t.TempDir()))
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("RCS_SIGNALING_URL", "ws://127.0.0.1:5060/")
	t.Setenv("RCS_LOCAL_URI", "sip:alice@ims.example.net")
	t.Setenv("RCS_DOMAIN", "ims.example.net")
	t.Setenv("RCS_DATA_DIR", t.TempDir())

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:5060/", cfg.Signaling.URL)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Backend = store.BackendPostgres
	cfg.Capability.Backend = "redis"
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	joined := verr.Error()
	for _, want := range []string{"Signaling.URL", "Log.Level", "store.dsn", "capability.redis.addr"} {
		assert.Contains(t, joined, want)
	}
}

func TestUnknownEnvKeys(t *testing.T) {
	t.Setenv("RCS_STORE_BAKEND", "typo")
	l := NewLoader(minimalConfig(t), "")
	_, err := l.Load()
	require.NoError(t, err)
	assert.Contains(t, l.UnknownEnvKeys(), "RCS_STORE_BAKEND")
	assert.NotContains(t, l.UnknownEnvKeys(), "RCS_STORE_BACKEND")
}
