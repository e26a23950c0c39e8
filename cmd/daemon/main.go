// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/rcsshare/internal/config"
	"github.com/ManuGH/rcsshare/internal/daemon"
	"github.com/ManuGH/rcsshare/internal/health"
	rcslog "github.com/ManuGH/rcsshare/internal/log"
	"github.com/ManuGH/rcsshare/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		if run, ok := subcommands[os.Args[1]]; ok {
			os.Exit(run(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Usage = func() {
		printUsage(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	os.Exit(run(*configPath))
}

var subcommands = map[string]func(args []string) int{
	"config":      runConfigCLI,
	"storage":     runStorageCLI,
	"healthcheck": runHealthcheckCLI,
	"report":      runReportCLI,
}

func run(configPath string) int {
	rcslog.Configure(rcslog.Config{
		Level:   "info",
		Service: "rcsshare",
		Version: version.Version,
	})
	logger := rcslog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, source := resolveConfigPath(configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return 1
	}
	rcslog.SetLevel(cfg.Log.Level)
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")
	for _, key := range loader.UnknownEnvKeys() {
		logger.Warn().Str("key", key).Msg("unknown RCS_* environment variable ignored")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str("event", "startup.check_failed").Msg("pre-flight checks failed")
		return 1
	}

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("event", "bootstrap.failed").Msg("failed to assemble runtime")
		return 1
	}

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.HTTP.ListenAddr), daemon.Deps{
		Logger:  rcslog.WithComponent("ops"),
		Handler: rt.Handler,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create daemon manager")
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = rt.Close(closeCtx)
		return 1
	}

	holder := config.NewConfigHolder(cfg, loader, path)
	logger.Info().
		Str("event", "daemon.start").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("listen", cfg.HTTP.ListenAddr).
		Str("store", cfg.Store.Backend).
		Msg("starting rcsshare")

	if err := daemon.NewApp(logger, mgr, rt, holder).Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.exit").Msg("daemon stopped with error")
		return 1
	}
	logger.Info().Str("event", "daemon.exit").Msg("daemon stopped")
	return 0
}

// resolveConfigPath prefers an explicit path and otherwise picks up
// $RCS_DATA_DIR/config.yaml when it exists.
func resolveConfigPath(explicit string) (path, source string) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, "file"
	}
	dataDir := strings.TrimSpace(config.ParseString("RCS_DATA_DIR", config.DefaultDataDir))
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	auto := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto, "file(auto)"
	}
	return "", "env+defaults"
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  rcsshare [--config PATH]")
	_, _ = fmt.Fprintln(w, "  rcsshare --version")
	_, _ = fmt.Fprintln(w, "  rcsshare config validate|dump [flags]")
	_, _ = fmt.Fprintln(w, "  rcsshare storage verify [flags]")
	_, _ = fmt.Fprintln(w, "  rcsshare healthcheck [flags]")
	_, _ = fmt.Fprintln(w, "  rcsshare report [flags]")
}
