// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rcsshare/internal/config"
	"github.com/ManuGH/rcsshare/internal/domain/session/store"
	"github.com/ManuGH/rcsshare/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWritableDir(logger, cfg.DataDir, true); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	switch cfg.Store.Backend {
	case store.BackendSqlite:
		if err := checkWritableDir(logger, filepath.Dir(cfg.Store.Path), false); err != nil {
			return fmt.Errorf("store directory check failed: %w", err)
		}
	case store.BackendBadger:
		if err := checkWritableDir(logger, cfg.Store.Path, true); err != nil {
			return fmt.Errorf("store directory check failed: %w", err)
		}
	}
	if cfg.Recovery.ReportPath != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.Recovery.ReportPath), false); err != nil {
			return fmt.Errorf("recovery report directory check failed: %w", err)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string, create bool) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) && create:
		if err := os.MkdirAll(path, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	case os.IsNotExist(err):
		return fmt.Errorf("directory does not exist: %s", path)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str(log.FieldPath, path).Msg("directory is writable")
	return nil
}
