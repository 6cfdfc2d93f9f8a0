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

// Package config describes which reports are generated from a Windows Search
// database: the tables to read, the columns of every report and the
// constraints attached to them.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

//go:embed schema.json
var schemaData []byte

// ValueKind is the type a column is decoded as.
type ValueKind string

// Value kinds.
const (
	String         ValueKind = "String"
	Integer        ValueKind = "Integer"
	DateTime       ValueKind = "DateTime"
	GUID           ValueKind = "GUID"
	FileAttributes ValueKind = "FileAttributes"
)

// Column binds a report column to a column of one database backend.
type Column struct {
	Name       string      `yaml:"name" json:"name"`
	Constraint Constraints `yaml:"constraint,omitempty" json:"constraint,omitempty"`
}

// ColumnSpec is one column of a report. Title is the name shared by the
// ESE and the SQLite binding.
type ColumnSpec struct {
	Title string    `yaml:"title" json:"title"`
	Kind  ValueKind `yaml:"kind" json:"kind"`
	Edb   Column    `yaml:"edb" json:"edb"`
	Sql   Column    `yaml:"sql" json:"sql"` //nolint:revive,stylecheck
}

// ReportSpec describes one output report.
type ReportSpec struct {
	Title          string       `yaml:"title" json:"title"`
	OutputFilename string       `yaml:"output_filename" json:"output_filename"`
	Constraint     string       `yaml:"constraint,omitempty" json:"constraint,omitempty"`
	Columns        []ColumnSpec `yaml:"columns" json:"columns"`
}

// Column returns the column titled title.
func (r *ReportSpec) Column(title string) (ColumnSpec, bool) {
	for _, c := range r.Columns {
		if c.Title == title {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// ReportsCfg is the top level configuration.
type ReportsCfg struct {
	TableEdb     string       `yaml:"table_edb" json:"table_edb"`
	TableSql     string       `yaml:"table_sql" json:"table_sql"` //nolint:revive,stylecheck
	OutputFormat string       `yaml:"output_format" json:"output_format"`
	OutputDir    string       `yaml:"output_dir" json:"output_dir"`
	Reports      []ReportSpec `yaml:"reports" json:"reports"`
}

// Find returns the first column titled title in any report.
func (c *ReportsCfg) Find(title string) (ColumnSpec, bool) {
	for i := range c.Reports {
		if col, ok := c.Reports[i].Column(title); ok {
			return col, true
		}
	}
	return ColumnSpec{}, false
}

// Merge overwrites the settings of c with all non empty settings of
// overrides.
func (c *ReportsCfg) Merge(overrides ReportsCfg) error {
	return errors.Wrap(mergo.Merge(c, overrides, mergo.WithOverride), "merge config")
}

// DefaultYAML returns the built-in configuration.
func DefaultYAML() []byte {
	return bytes.Clone(defaultConfig)
}

// Default returns the parsed built-in configuration.
func Default() *ReportsCfg {
	cfg, err := Parse(defaultConfig)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and parses the configuration file at path.
func Load(fs afero.Fs, path string) (*ReportsCfg, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	return cfg, errors.Wrap(err, path)
}

// Parse validates and decodes a YAML configuration.
func Parse(data []byte) (*ReportsCfg, error) {
	flaws, err := Validate(data)
	if err != nil {
		return nil, err
	}
	if len(flaws) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(flaws, "; "))
	}

	cfg := &ReportsCfg{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate checks a YAML configuration against the config schema and returns
// all violations found.
func Validate(data []byte) (flaws []string, err error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if doc == nil {
		return []string{"config is empty"}, nil
	}
	element, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "convert config")
	}

	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(schemaData, schema); err != nil {
		return nil, errors.Wrap(err, "load config schema")
	}
	errs, err := schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate config: %s", verr))
	}
	return flaws, nil
}
