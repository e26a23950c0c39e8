// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ManuGH/rcsshare/internal/config"
	"github.com/ManuGH/rcsshare/internal/domain/session/manager"
	"github.com/ManuGH/rcsshare/internal/version"
)

func runReportCLI(args []string) int {
	return reportCLI(args, os.Stdout, os.Stderr)
}

// reportCLI prints the report the recovery pass left behind at startup.
func reportCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rcsshare report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		file   string
		cfgArg string
		asJSON bool
	)
	fs.StringVar(&file, "file", "", "path to the recovery report (default: recovery.reportPath)")
	fs.StringVar(&cfgArg, "config", "", "path to config file (YAML)")
	fs.BoolVar(&asJSON, "json", false, "print the raw report")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if file == "" {
		path, _ := resolveConfigPath(cfgArg)
		cfg, err := config.NewLoader(path, version.Version).Load()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
			return 1
		}
		file = cfg.Recovery.ReportPath
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read report: %v\n", err)
		return 1
	}
	if asJSON {
		_, _ = stdout.Write(raw)
		return 0
	}

	var rep manager.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: decode report %s: %v\n", file, err)
		return 1
	}
	printReport(stdout, rep)
	if rep.Aborted || rep.Failed > 0 {
		return 1
	}
	return 0
}

func printReport(w io.Writer, rep manager.Report) {
	_, _ = fmt.Fprintf(w, "Recovery pass at %s (%s)\n", rep.StartedAt.Format("2006-01-02 15:04:05Z07:00"), rep.Duration)
	_, _ = fmt.Fprintf(w, "  scanned:   %d\n", rep.Scanned)
	_, _ = fmt.Fprintf(w, "  recovered: %d\n", rep.Recovered)
	_, _ = fmt.Fprintf(w, "  failed:    %d\n", rep.Failed)
	if rep.Aborted {
		_, _ = fmt.Fprintf(w, "  aborted:   %s\n", rep.Error)
	}
	if len(rep.Records) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SESSION\tCONTACT\tFROM\tTO\tREASON\tERROR")
	for _, e := range rep.Records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.SessionID, e.Contact, e.From, e.To, e.Reason, e.Error)
	}
	_ = tw.Flush()
}
