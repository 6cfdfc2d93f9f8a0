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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/winsearch/config"
)

func createDatabase(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "Windows.db")
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_NOMUTEX)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, sqlitex.ExecScript(conn, `
CREATE TABLE SystemIndex_1_PropertyStore (WorkId INTEGER, ColumnId INTEGER, Value BLOB);
CREATE TABLE SystemIndex_1_PropertyStore_Metadata (Id INTEGER, Name TEXT);
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (1, 'System.ComputerName');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (2, 'System.ItemPathDisplay');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (3, 'System.Link.TargetUrl');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (4, 'System.ItemType');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (5, 'System.Size');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (6, 'System.DateModified');
INSERT INTO SystemIndex_1_PropertyStore VALUES (1, 1, 'WKS-7');
INSERT INTO SystemIndex_1_PropertyStore VALUES (1, 5, x'0010000000000000');
INSERT INTO SystemIndex_1_PropertyStore VALUES (1, 6, x'801a71da9140d701');
INSERT INTO SystemIndex_1_PropertyStore VALUES (1, 2, 'C:\Users\a\doc.txt');
INSERT INTO SystemIndex_1_PropertyStore VALUES (2, 3, 'http://example.com/');
`))
}

func TestReportFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	createDatabase(t, in)
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o600))

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	opts := &reportOptions{format: "json", outDir: out, target: "file"}
	require.NoError(t, runReport(afero.NewOsFs(), stdout, stderr, opts, []string{in}))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Internet_History_Report")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.True(t, strings.HasPrefix(entry.Name(), "WKS-7_"), entry.Name())
		assert.Equal(t, ".json", filepath.Ext(entry.Name()))
		if strings.Contains(entry.Name(), "File_Report") {
			content, err := os.ReadFile(filepath.Join(out, entry.Name()))
			require.NoError(t, err)
			assert.Equal(t, `C:\Users\a\doc.txt`, gjson.GetBytes(content, "System_ItemPathDisplay").String())
			assert.Equal(t, int64(4096), gjson.GetBytes(content, "System_Size").Int())
			assert.Equal(t, "2021-05-04T03:02:01.0000000Z", gjson.GetBytes(content, "System_DateModified").String())
		}
	}
}

func TestReportStdout(t *testing.T) {
	in := t.TempDir()
	createDatabase(t, in)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	opts := &reportOptions{format: "json", target: "stdout"}
	require.NoError(t, runReport(afero.NewOsFs(), stdout, stderr, opts, []string{in}))

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "File_Report", gjson.Get(lines[0], "Report").String())
	assert.Equal(t, "Internet_History_Report", gjson.Get(lines[1], "Report").String())
	assert.Equal(t, "WKS-7", gjson.Get(lines[1], "System_ComputerName").String())
	assert.NotContains(t, stderr.String(), "Output")
}

func TestReportContinuesAfterFailure(t *testing.T) {
	in := t.TempDir()
	createDatabase(t, in)
	broken := filepath.Join(t.TempDir(), "Windows.db")
	require.NoError(t, os.WriteFile(broken, []byte("SQLite format 3\x00garbage"), 0o600))

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	opts := &reportOptions{format: "csv", target: "stdout"}
	require.NoError(t, runReport(afero.NewOsFs(), stdout, stderr, opts, []string{broken, in}))
	assert.Contains(t, stderr.String(), broken)
	assert.Contains(t, stdout.String(), `"File_Report",`)
}

func TestReportInvalidOptions(t *testing.T) {
	in := t.TempDir()
	tests := []struct {
		name string
		opts reportOptions
	}{
		{"format", reportOptions{format: "xml", target: "file"}},
		{"target", reportOptions{target: "pipe"}},
		{"config", reportOptions{target: "file", cfgPath: filepath.Join(in, "missing.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := runReport(afero.NewOsFs(), &bytes.Buffer{}, &bytes.Buffer{}, &opts, []string{in})
			assert.Error(t, err)
		})
	}
}

func TestValidateConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/default.yaml", config.DefaultYAML(), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/broken.yaml", []byte("reports: 3\n"), 0o644))
	cycle := strings.Replace(string(config.DefaultYAML()),
		"    output_filename: System_ComputerName\n    columns:",
		"    output_filename: System_ComputerName\n    constraint: \"!File_Report\"\n    columns:", 1)
	require.NoError(t, afero.WriteFile(fs, "/cycle.yaml", []byte(cycle), 0o644))

	out := &bytes.Buffer{}
	require.NoError(t, validateConfig(fs, out, "/default.yaml"))
	assert.Contains(t, out.String(), "is valid, 3 reports")

	assert.Error(t, validateConfig(fs, &bytes.Buffer{}, "/broken.yaml"))
	assert.Error(t, validateConfig(fs, &bytes.Buffer{}, "/cycle.yaml"))
	assert.Error(t, validateConfig(fs, &bytes.Buffer{}, "/missing.yaml"))
}

func TestConfigCommand(t *testing.T) {
	out := &bytes.Buffer{}
	c := Config()
	c.SetOut(out)
	c.SetArgs([]string{})
	require.NoError(t, c.Execute())
	assert.Equal(t, string(config.DefaultYAML()), out.String())
}
