// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rcsshare/internal/config"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
)

func TestPerformStartupChecks_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := config.AppConfig{DataDir: dir}
	cfg.Store.Backend = store.BackendBadger
	cfg.Store.Path = filepath.Join(dir, "sessions.badger")

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))

	info, err := os.Stat(cfg.Store.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(dir, ".write_test"))
	assert.True(t, os.IsNotExist(err))
}

func TestPerformStartupChecks_DataDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	err := PerformStartupChecks(context.Background(), config.AppConfig{DataDir: file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestPerformStartupChecks_MissingSqliteDir(t *testing.T) {
	cfg := config.AppConfig{DataDir: t.TempDir()}
	cfg.Store.Backend = store.BackendSqlite
	cfg.Store.Path = filepath.Join(t.TempDir(), "missing", "sessions.db")

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store directory")
}
