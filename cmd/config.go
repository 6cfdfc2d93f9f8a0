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

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/winsearch/config"
	"github.com/forensicanalysis/winsearch/engine"
)

// Config is the winsearch config commandline subcommand
func Config() *cobra.Command {
	var validate string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the built-in report config or validate a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if validate == "" {
				_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
				return err
			}
			return validateConfig(afero.NewOsFs(), cmd.OutOrStdout(), validate)
		},
	}
	configCmd.Flags().StringVar(&validate, "validate", "", "validate the config file instead of printing the built-in config")
	return configCmd
}

func validateConfig(fs afero.Fs, w io.Writer, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}
	flaws, err := config.Validate(data)
	if err != nil {
		return err
	}
	for _, flaw := range flaws {
		color.New(color.FgRed).Fprintln(w, flaw)
	}
	if len(flaws) > 0 {
		return fmt.Errorf("%s: %d validation errors", path, len(flaws))
	}

	cfg, err := config.Parse(data)
	if err != nil {
		return err
	}
	if err := engine.Check(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "%s is valid, %d reports\n", path, len(cfg.Reports))
	return nil
}
