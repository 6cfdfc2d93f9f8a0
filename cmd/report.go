// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/winsearch"
	"github.com/forensicanalysis/winsearch/config"
	"github.com/forensicanalysis/winsearch/engine"
	"github.com/forensicanalysis/winsearch/report"
)

const dirtyWarning = "WARNING: The database state is not clean."

type reportOptions struct {
	format    string
	outDir    string
	target    string
	cfgPath   string
	jsonArray bool
	verbose   bool
	logJSON   bool
}

// Report is the winsearch report commandline subcommand
func Report() *cobra.Command {
	opts := &reportOptions{}
	reportCmd := &cobra.Command{
		Use:   "report <path>...",
		Short: "Generate reports from Windows Search databases",
		Long: `Generate reports from Windows Search databases.

Every path is searched recursively for files named Windows.edb, Windows.db
or starting with s-1-. A path that is a file is processed regardless of its
name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(afero.NewOsFs(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}
	reportCmd.Flags().StringVar(&opts.format, "format", "", "output format (csv or json), overrides the config")
	reportCmd.Flags().StringVar(&opts.outDir, "outdir", "", "output directory, overrides the config")
	reportCmd.Flags().StringVar(&opts.target, "report-type", string(report.File), "write reports to a file per report (file) or to stdout (stdout)")
	reportCmd.Flags().StringVar(&opts.cfgPath, "cfg-path", "", "report config, the built-in config is used if empty")
	reportCmd.Flags().BoolVar(&opts.jsonArray, "json-array", false, "write json reports as arrays instead of json lines")
	reportCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages")
	reportCmd.Flags().BoolVar(&opts.logJSON, "log-json", false, "log in json format")
	return reportCmd
}

func loadConfig(fs afero.Fs, opts *reportOptions) (*config.ReportsCfg, error) {
	cfg := config.Default()
	if opts.cfgPath != "" {
		var err error
		if cfg, err = config.Load(fs, opts.cfgPath); err != nil {
			return nil, err
		}
	}
	err := cfg.Merge(config.ReportsCfg{OutputFormat: opts.format, OutputDir: opts.outDir})
	return cfg, err
}

func runReport(fs afero.Fs, stdout, stderr io.Writer, opts *reportOptions, args []string) error {
	logger := newLogger(stderr, opts.verbose, opts.logJSON)

	cfg, err := loadConfig(fs, opts)
	if err != nil {
		return err
	}
	if err := engine.Check(cfg); err != nil {
		logger.Warn("config contains invalid constraints", "error", err)
	}
	format, ok := report.ParseFormat(cfg.OutputFormat)
	if !ok {
		return fmt.Errorf("unknown output format %q", cfg.OutputFormat)
	}
	target, ok := report.ParseTarget(opts.target)
	if !ok {
		return fmt.Errorf("unknown report type %q", opts.target)
	}

	producer, err := report.NewProducer(fs, cfg.OutputDir, format, target, stdout)
	if err != nil {
		return err
	}
	if opts.jsonArray && target == report.File {
		producer.Layout = report.Array
	}
	defer producer.Close()

	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)
	processor := &winsearch.Processor{
		Config:  cfg,
		Reports: producer,
		Logger:  logger,
		OnDirty: func(db *winsearch.Database) error {
			warn.Fprintln(stderr, dirtyWarning)
			logger.Warn("unclean database", "path", db.Path, "state", db.State.String())
			if target == report.Stdout {
				return errors.Wrap(winsearch.ErrDirty, db.Path)
			}
			return nil
		},
	}

	summary := table.NewWriter()
	summary.SetOutputMirror(stderr)
	summary.SetStyle(table.StyleLight)
	summary.AppendHeader(table.Row{"Database", "Report", "Rows", "Output"})

	processed, failed := 0, 0
	for _, arg := range args {
		paths, err := winsearch.FindDatabases(fs, arg)
		if err != nil {
			fail.Fprintf(stderr, "%s: %s\n", arg, err)
			failed++
			continue
		}
		if len(paths) == 0 {
			logger.Warn("no Windows Search database found", "path", arg)
		}
		for _, path := range paths {
			result, err := processor.Process(path)
			if errors.Is(err, winsearch.ErrDirty) {
				return err
			}
			if err != nil {
				fail.Fprintf(stderr, "%s: %s\n", path, err)
				logger.Error("processing failed", "path", path, "error", err)
				failed++
				continue
			}
			processed++
			for _, s := range result.Reports {
				summary.AppendRow(table.Row{path, s.Title, humanize.Comma(int64(s.Rows)), s.Location})
			}
		}
	}

	if target == report.File && processed > 0 {
		summary.Render()
	}
	logger.Info("done", "processed", processed, "failed", failed)
	return nil
}
