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

package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const minimal = `
table_edb: SystemIndex_PropertyStore
table_sql: SystemIndex_1_PropertyStore
output_format: json
output_dir: out
reports:
  - title: Files
    output_filename: Host
    constraint: "!Urls"
    columns:
      - title: Host
        kind: String
        edb: {name: System_ComputerName, constraint: auto_fill}
        sql: {name: 567, constraint: "optional, auto_fill"}
      - title: Path
        kind: String
        edb: {name: System_ItemPathDisplay, constraint: "regex_matches(^C:\\\\(Users|Windows))"}
        sql: {name: "39"}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "SystemIndex_PropertyStore", cfg.TableEdb)
	assert.Equal(t, "SystemIndex_1_PropertyStore", cfg.TableSql)
	assert.Equal(t, "json", cfg.OutputFormat)
	require.Len(t, cfg.Reports, 1)

	report := cfg.Reports[0]
	assert.Equal(t, "!Urls", report.Constraint)
	require.Len(t, report.Columns, 2)

	host := report.Columns[0]
	assert.Equal(t, String, host.Kind)
	assert.Equal(t, Constraints{AutoFill}, host.Edb.Constraint)
	assert.Equal(t, "567", host.Sql.Name)
	assert.Equal(t, Constraints{Optional, AutoFill}, host.Sql.Constraint)

	path, ok := report.Column("Path")
	require.True(t, ok)
	validator, ok := path.Edb.Constraint.Validator()
	require.True(t, ok)
	assert.Equal(t, `^C:\\(Users|Windows)`, RegexPattern(validator))
	_, ok = path.Sql.Constraint.Validator()
	assert.False(t, ok)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no reports", "table_edb: a\ntable_sql: b\nreports: []\n"},
		{"bad kind", "table_edb: a\ntable_sql: b\nreports:\n  - title: r\n    columns:\n      - {title: c, kind: Float, edb: {name: x}, sql: {name: y}}\n"},
		{"missing binding", "table_edb: a\ntable_sql: b\nreports:\n  - title: r\n    columns:\n      - {title: c, kind: String, edb: {name: x}}\n"},
		{"bad format", "table_edb: a\ntable_sql: b\noutput_format: xml\nreports:\n  - title: r\n    columns:\n      - {title: c, kind: String, edb: {name: x}, sql: {name: y}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Reports, 3)

	titles := []string{}
	for _, r := range cfg.Reports {
		titles = append(titles, r.Title)
		assert.Equal(t, "System_ComputerName", r.OutputFilename)
		_, ok := r.Column(r.OutputFilename)
		assert.True(t, ok, r.Title)
	}
	assert.Equal(t, []string{"File_Report", "Internet_History_Report", "Activity_History_Report"}, titles)

	itemType, ok := cfg.Reports[2].Column("System_ItemType")
	require.True(t, ok)
	assert.True(t, itemType.Edb.Constraint.Has(Hidden))
	validator, ok := itemType.Sql.Constraint.Validator()
	require.True(t, ok)
	assert.Equal(t, `"{Value}" == "ActivityHistoryItem"`, validator)

	flaws, err := Validate(DefaultYAML())
	require.NoError(t, err)
	assert.Empty(t, flaws)
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(minimal), 0o644))

	cfg, err := Load(fs, "/cfg.yaml")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)

	_, err = Load(fs, "/missing.yaml")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	require.NoError(t, cfg.Merge(ReportsCfg{OutputFormat: "csv"}))
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Len(t, cfg.Reports, 1)
}

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		name string
		args string
		want Constraints
	}{
		{"single", "hidden", Constraints{"hidden"}},
		{"list", "optional, auto_fill", Constraints{"optional", "auto_fill"}},
		{"regex with comma", "hidden, regex_matches(^a{1,2}$)", Constraints{"hidden", "regex_matches(^a{1,2}$)"}},
		{"quoted comma", `"{Value}" == "a,b", optional`, Constraints{`"{Value}" == "a,b"`, "optional"}},
		{"blank", " , ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitTokens(tt.args))
		})
	}
}

func TestConstraintsUnmarshal(t *testing.T) {
	var c struct {
		A Constraints `yaml:"a"`
		B Constraints `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: hidden, optional\nb: [auto_fill, ' regex_matches(x) ']\n"), &c))
	assert.Equal(t, Constraints{Hidden, Optional}, c.A)
	assert.Equal(t, Constraints{AutoFill, "regex_matches(x)"}, c.B)

	assert.Error(t, yaml.Unmarshal([]byte("a: {x: y}\n"), &c))
}

func TestRegexPattern(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{"plain", "regex_matches(^http)", "^http"},
		{"quoted", `regex_matches("^iehistory://")`, "^iehistory://"},
		{"expression", `"{Value}" == "x"`, ""},
		{"unterminated", "regex_matches(^http", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RegexPattern(tt.args))
		})
	}
}
