package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"sensorstats/internal/analysis"
	"sensorstats/internal/config"
	"sensorstats/internal/ingest"
	"sensorstats/internal/logging"
	"sensorstats/internal/output"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.Default()
	display := ""

	fs := flag.NewFlagSet("sensorstats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	fs.StringVar(&display, "display", display, "console format: table, csv, json or none (default table on a terminal, none otherwise)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sensorstats [options] [file.csv|file.parquet|glob]\n\n")
		fmt.Fprintf(stderr, "Runs the sensor report tasks and writes taskN_output files.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  sensorstats sensor_data.csv\n")
		fmt.Fprintf(stderr, "  sensorstats -format json -out results 'readings/*.parquet'\n")
		fmt.Fprintf(stderr, "  sensorstats -temp-min 20 -temp-max 25 -top 10 -display table sensor_data.csv\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		cfg.Input = fs.Arg(0)
	}
	if display == "" {
		display = "none"
		if f, ok := stdout.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			display = config.FormatTable
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	var console output.Formatter
	if display != "none" {
		f, err := output.New(display, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		console = f
	}
	lvl, _ := logging.ParseLevel(cfg.LogLevel)
	logging.Configure(lvl, stderr)

	tbl, err := ingest.Load(cfg.Input, cfg.IngestOptions())
	if err == nil {
		err = ingest.ValidateSensorTable(tbl)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "Error: file '%s' not found\n", cfg.Input)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	report, err := analysis.Run(ctx, tbl, cfg, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := printReport(stdout, console, report); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.OutputDir != "" {
		if _, err := output.WriteResults(ctx, cfg.OutputDir, cfg.Format, report.Results); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "All tasks completed. Output files saved as %s\n", output.FileName("taskX", cfg.Format))
	}
	return 0
}

// printReport writes the per-task headings and counts, plus the tables when
// console is set.
func printReport(w io.Writer, console output.Formatter, report *analysis.Report) error {
	show := func(res analysis.Result) error {
		if console == nil {
			return nil
		}
		return console.Format(res.Table)
	}

	for i, res := range report.Results {
		fmt.Fprintf(w, "\n=== Task %d: %s ===\n", i+1, res.Title)
		switch res.Task {
		case analysis.TaskExplore:
			if console != nil {
				if err := console.Format(report.Preview); err != nil {
					return err
				}
			}
			fmt.Fprintf(w, "Total number of records: %d\n", report.TotalRows)
			fmt.Fprintf(w, "Distinct locations: %s\n", strings.Join(locations(report), ", "))
			continue
		case analysis.TaskRange:
			fmt.Fprintf(w, "Number of in-range records: %d\n", report.InRange)
			fmt.Fprintf(w, "Number of out-of-range records: %d\n", report.OutOfRange)
		case analysis.TaskHourly:
			if report.InvalidTimestamps > 0 {
				fmt.Fprintf(w, "Readings with an unparseable timestamp: %d\n", report.InvalidTimestamps)
			}
		}
		if err := show(res); err != nil {
			return fmt.Errorf("%s: %w", res.Task, err)
		}
	}
	return nil
}

func locations(report *analysis.Report) []string {
	col, err := report.Locations.Column(analysis.ColLocation)
	if err != nil {
		return nil
	}
	out := make([]string, col.Len())
	for i := range out {
		if col.IsNull(i) {
			out[i] = "null"
			continue
		}
		out[i] = col.Value(i).String()
	}
	return out
}
