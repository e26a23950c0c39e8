// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/rcsshare/internal/config"
	"github.com/ManuGH/rcsshare/internal/persistence/sqlite"
)

func runStorageCLI(args []string) int {
	return storageCLI(args, os.Stdout, os.Stderr)
}

func storageCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(stdout)
		return 0
	}

	switch args[0] {
	case "verify":
		return storageVerify(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(stderr)
		return 2
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  rcsshare storage verify [--path PATH | --all] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --path string  Path to a session state SQLite file")
	_, _ = fmt.Fprintln(w, "  --all          Verify the session store in $RCS_DATA_DIR")
	_, _ = fmt.Fprintln(w, "  --mode string  Verification mode: quick (default) or full")
}

func storageVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rcsshare storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		path string
		mode string
		all  bool
	)
	fs.StringVar(&path, "path", "", "path to the SQLite database file")
	fs.StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	fs.BoolVar(&all, "all", false, "verify the session store in $RCS_DATA_DIR")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !all && path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --path or --all is required")
		return 2
	}
	vm, err := sqlite.ParseVerifyMode(mode)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v. Use 'quick' or 'full'.\n", err)
		return 2
	}

	var targets []string
	if all {
		dataDir := config.ParseString("RCS_DATA_DIR", "")
		if dataDir == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --all requires RCS_DATA_DIR to be set")
			return 2
		}
		targets = append(targets, filepath.Join(dataDir, "sessions.db"))
	} else {
		targets = append(targets, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	failed := false
	for _, target := range targets {
		if _, err := os.Stat(target); err != nil {
			if all && os.IsNotExist(err) {
				_, _ = fmt.Fprintf(stdout, "SKIP  %s (not found)\n", target)
				continue
			}
			_, _ = fmt.Fprintf(stderr, "FAIL  %s: %v\n", target, err)
			failed = true
			continue
		}
		problems, err := sqlite.VerifyIntegrity(ctx, target, vm)
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(stderr, "FAIL  %s: %v\n", target, err)
			failed = true
		case len(problems) > 0:
			_, _ = fmt.Fprintf(stderr, "CORRUPT %s\n", target)
			for _, p := range problems {
				_, _ = fmt.Fprintf(stderr, "  %s\n", p)
			}
			failed = true
		default:
			_, _ = fmt.Fprintf(stdout, "OK    %s (%s)\n", target, vm)
		}
	}
	if failed {
		return 1
	}
	return 0
}
