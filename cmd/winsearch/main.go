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

// Package main implements the winsearch command line tool that extracts
// artifacts from Windows Search Indexer databases.
//
//	report    Generate reports from Windows.edb and Windows.db files
//	config    Print or validate the report config
//
// Usage
//
// Write one CSV file per report and database to the reports folder
//
//	winsearch report --outdir reports C:\ProgramData\Microsoft\Search\Data
//
// Print all rows as JSON lines tagged with their report
//
//	winsearch report --format json --report-type stdout Windows.db
//
// Start from the built-in config and check a modified copy
//
//	winsearch config > reports.yml
//	winsearch config --validate reports.yml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/winsearch/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "winsearch",
		Short:         "Extract artifacts from Windows Search databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(cmd.Report(), cmd.Config())
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
